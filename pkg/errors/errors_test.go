package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/opst/prodplan/pkg/errors"
)

var errRoot = errors.New("root cause")

func wrapHere(err error) error {
	return xe.Wrap(err)
}

func TestWrap(t *testing.T) {
	t.Run("it remembers the frame where it is wrapped", func(t *testing.T) {
		err := wrapHere(errRoot)
		_, thisFile, _, _ := runtime.Caller(0)

		var traced *xe.Traced
		if !errors.As(err, &traced) {
			t.Fatalf("not traced: %#v", err)
		}
		if !strings.HasSuffix(traced.Frame.Function, ".wrapHere") {
			t.Errorf("function: %s", traced.Frame.Function)
		}
		if traced.Frame.File != thisFile {
			t.Errorf("file: actual %s, expected %s", traced.Frame.File, thisFile)
		}
		if !strings.HasSuffix(err.Error(), "<- root cause") {
			t.Errorf("original message is lost: %s", err)
		}
	})

	t.Run("it is transparent for errors.Is", func(t *testing.T) {
		err := xe.Wrap(fmt.Errorf("outer: %w", wrapHere(errRoot)))
		if !errors.Is(err, errRoot) {
			t.Errorf("root is not found: %s", err)
		}
		if strings.Count(err.Error(), "<-") != 2 {
			t.Errorf("wrapping points: %s", err)
		}
	})

	t.Run("nil is nil", func(t *testing.T) {
		if err := xe.Wrap(nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := xe.WrapWithNote("note", nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("notes are shown", func(t *testing.T) {
		err := xe.WrapWithNote("while planning", errRoot)
		if !strings.Contains(err.Error(), "[while planning]") {
			t.Errorf("note is missing: %s", err)
		}
	})

	t.Run("New has the frame", func(t *testing.T) {
		err := xe.New("boom")
		if !strings.Contains(err.Error(), "TestWrap") || !strings.HasSuffix(err.Error(), "<- boom") {
			t.Errorf("unexpected message: %s", err)
		}
	})
}
