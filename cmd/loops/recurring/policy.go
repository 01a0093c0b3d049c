package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/opst/prodplan/pkg/loop"
)

// ParsePolicy parses "forever[:COOLDOWN]" or "backlog".
func ParsePolicy(s string) (Policy, error) {
	typ, param, ok := strings.Cut(s, ":")
	switch typ {
	case "forever":
		if !ok || param == "" {
			return Forever(0), nil
		}
		cooldown, err := time.ParseDuration(param)
		if err != nil {
			return nil, fmt.Errorf(`failed to parse %s as "forever:COOLDOWN": %w`, s, err)
		}
		if cooldown < 0 {
			return nil, fmt.Errorf("cooldown should not be negative: %s", s)
		}
		return Forever(cooldown), nil
	case "backlog":
		if ok {
			return nil, fmt.Errorf("backlog policy does not take parameters: %s", s)
		}
		return Backlog(), nil
	}
	return nil, fmt.Errorf("unknown policy name: %s (should be one of -- forever|backlog)", typ)
}

// Policy decides whether a loop continues or not.
type Policy interface {
	Next(updated bool, err error) loop.Next
	String() string
}

// Forever restarts the task immediately while it updates something.
// Otherwise, the task restarts after the cooldown.
//
// Errors are not stopping the loop.
func Forever(cooldown time.Duration) Policy {
	return forever(cooldown)
}

type forever time.Duration

func (f forever) String() string {
	return "forever:" + time.Duration(f).String()
}

func (f forever) Next(updated bool, _ error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Continue(time.Duration(f))
}

// Backlog restarts the task immediately while it updates something.
// Otherwise, the loop stops.
func Backlog() Policy {
	return backlog{}
}

type backlog struct{}

func (backlog) String() string {
	return "backlog"
}

func (backlog) Next(updated bool, _ error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Break(nil)
}

// UntilError stops the loop with the error when the task returns an error.
// Otherwise, it follows the base policy.
func UntilError(base Policy) Policy {
	return untilError{base: base}
}

type untilError struct {
	base Policy
}

func (u untilError) String() string {
	return u.base.String() + " (until error)"
}

func (u untilError) Next(updated bool, err error) loop.Next {
	if err != nil {
		return loop.Break(err)
	}
	return u.base.Next(updated, err)
}
