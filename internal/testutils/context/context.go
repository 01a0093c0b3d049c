package context

import (
	"context"
	"testing"
	"time"
)

// margin left between the context deadline and the test deadline, for clean-up.
const margin = time.Second

// ForTest returns a context which is done a little before t times out.
//
// The context is also cancelled when t finishes, even if the returned cancel is not called.
func ForTest(t testing.TB) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	type deadliner interface {
		Deadline() (time.Time, bool)
	}
	if d, ok := t.(deadliner); ok {
		if deadline, ok := d.Deadline(); ok {
			left := time.Until(deadline)
			m := margin
			if left < 10*m {
				m = left / 10
			}
			cancel()
			ctx, cancel = context.WithDeadline(context.Background(), deadline.Add(-m))
		}
	}
	t.Cleanup(cancel)
	return ctx, cancel
}
