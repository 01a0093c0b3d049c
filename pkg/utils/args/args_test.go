package args_test

import (
	"errors"
	"flag"
	"strconv"
	"testing"

	"github.com/opst/prodplan/pkg/utils/args"
)

type Even int

func AsEven(s string) (Even, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v%2 != 0 {
		return 0, errors.New("odd number")
	}
	return Even(v), nil
}

func (e Even) String() string {
	return strconv.Itoa(int(e))
}

func TestParser(t *testing.T) {
	type then struct {
		err   bool
		isSet bool
		value Even
	}
	theory := func(testee *args.Adapter[Even], cmdline []string, then then) func(*testing.T) {
		return func(t *testing.T) {
			f := flag.NewFlagSet("test", flag.ContinueOnError)
			f.Var(testee, "arg", "")

			err := f.Parse(cmdline)
			if (err != nil) != then.err {
				t.Errorf("error: %v", err)
			}
			if testee.IsSet() != then.isSet {
				t.Errorf("IsSet: actual %v, expected %v", testee.IsSet(), then.isSet)
			}
			if testee.Value() != then.value {
				t.Errorf("Value: actual %d, expected %d", testee.Value(), then.value)
			}
		}
	}

	t.Run("acceptable value", theory(
		args.Parser(AsEven), []string{"-arg", "12"},
		then{err: false, isSet: true, value: 12},
	))
	t.Run("unacceptable value", theory(
		args.Parser(AsEven), []string{"-arg", "13"},
		then{err: true, isSet: false, value: 0},
	))
	t.Run("not given", theory(
		args.Parser(AsEven), []string{},
		then{err: false, isSet: false, value: 0},
	))
	t.Run("not given, with default", theory(
		args.Parser(AsEven).Default(4), []string{},
		then{err: false, isSet: false, value: 4},
	))
}
