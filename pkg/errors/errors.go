// Package errors provides an error wrapper which remembers where it is wrapped.
//
//	return xe.Wrap(err)
//
// Messages of wrapped errors look like
//
//	@ pkg.Func (file.go:12) <- @ pkg.Inner (inner.go:34) <- original message
//
// Each "<-" is one wrapping point, outer first.
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Traced is an error with the frame where it is wrapped.
type Traced struct {
	Frame runtime.Frame
	Note  string
	err   error
}

func (e *Traced) Error() string {
	fn := e.Frame.Function
	if fn == "" {
		fn = "(unknown)"
	}
	where := fmt.Sprintf("@ %s (%s:%d)", fn, filepath.Base(e.Frame.File), e.Frame.Line)
	if e.Note != "" {
		where += " [" + e.Note + "]"
	}
	return where + " <- " + e.err.Error()
}

func (e *Traced) Unwrap() error {
	return e.err
}

// New is errors.New with the caller frame.
func New(text string) error {
	return trace("", errors.New(text))
}

// Wrap err with the caller frame. Wrap(nil) is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return trace("", err)
}

// WrapWithNote is Wrap, with a note telling what the caller was doing.
func WrapWithNote(note string, err error) error {
	if err == nil {
		return nil
	}
	return trace(note, err)
}

// trace should be called directly from the exported functions.
func trace(note string, err error) error {
	pcs := make([]uintptr, 1)
	// skip runtime.Callers, trace and the exported function.
	n := runtime.Callers(3, pcs)
	frame := runtime.Frame{Line: -1}
	if 0 < n {
		frame, _ = runtime.CallersFrames(pcs[:n]).Next()
	}
	return &Traced{Frame: frame, Note: note, err: err}
}
