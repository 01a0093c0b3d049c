package try_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/opst/prodplan/pkg/utils/try"
)

type fataler struct {
	fatal  [][]any
	helper uint
}

func (f *fataler) Fatal(args ...any) {
	f.fatal = append(f.fatal, args)
}

func (f *fataler) Helper() {
	f.helper += 1
}

func TestEither(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		testee := try.To(42, nil)
		ftl := &fataler{}

		if actual := testee.OrFatal(ftl); actual != 42 {
			t.Errorf("OrFatal: %d", actual)
		}
		if len(ftl.fatal) != 0 || ftl.helper != 0 {
			t.Errorf("Fatal is called: %+v", ftl)
		}
		if actual := testee.OrDefault(1); actual != 42 {
			t.Errorf("OrDefault: %d", actual)
		}
		if v, err := testee.Get(); v != 42 || err != nil {
			t.Errorf("Get: (%d, %v)", v, err)
		}
	})

	t.Run("no good", func(t *testing.T) {
		expectedErr := errors.New("fake error")
		testee := try.To(42, expectedErr)
		ftl := &fataler{}

		if actual := testee.OrFatal(ftl); actual != 0 {
			t.Errorf("OrFatal: %d", actual)
		}
		if len(ftl.fatal) != 1 || ftl.fatal[0][0] != expectedErr || ftl.helper != 1 {
			t.Errorf("Fatal is not called as expected: %+v", ftl)
		}
		if actual := testee.OrDefault(1); actual != 1 {
			t.Errorf("OrDefault: %d", actual)
		}
		if v, err := testee.Get(); v != 0 || !errors.Is(err, expectedErr) {
			t.Errorf("Get: (%d, %v)", v, err)
		}
	})
}

func TestMap(t *testing.T) {
	t.Run("ok value is mapped", func(t *testing.T) {
		v, err := try.Map(try.To("12", nil), strconv.Atoi).Get()
		if v != 12 || err != nil {
			t.Errorf("(%d, %v)", v, err)
		}
	})

	t.Run("mapper error is kept", func(t *testing.T) {
		if _, err := try.Map(try.To("twelve", nil), strconv.Atoi).Get(); err == nil {
			t.Error("no error")
		}
	})

	t.Run("error is passed through", func(t *testing.T) {
		expectedErr := errors.New("fake error")
		called := false
		_, err := try.Map(try.To("12", expectedErr), func(s string) (int, error) {
			called = true
			return strconv.Atoi(s)
		}).Get()
		if !errors.Is(err, expectedErr) || called {
			t.Errorf("(called, err) = (%v, %v)", called, err)
		}
	})
}
