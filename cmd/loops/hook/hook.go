package hook

import (
	"context"
	"errors"
)

// Hook is called around a state change of T.
type Hook[T any] interface {
	// Before is called before the change is committed.
	//
	// When it returns error, the change is abandoned.
	Before(context.Context, T) error

	// After is called after the change is committed.
	After(context.Context, T) error
}

var ErrHookFailed = errors.New("hook failed")
