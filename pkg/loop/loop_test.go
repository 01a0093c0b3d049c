package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/prodplan/pkg/loop"
	"github.com/opst/prodplan/pkg/utils/try"
)

func TestStart(t *testing.T) {
	t.Run("it repeats tasks with interval until context gets done", func(t *testing.T) {
		period := 10 * time.Millisecond
		ctx, cancel := context.WithTimeout(context.Background(), 10*period)
		defer cancel()

		actual, err := loop.Start(
			ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
				return v + 1, loop.Continue(period)
			},
		)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual < 1 || 10 < actual {
			t.Errorf("task run too much/less: %d", actual)
		}
	})

	t.Run("it passes deadlined context when WithTimeout is passed", func(t *testing.T) {
		timeout := 100 * time.Millisecond

		try.To(loop.Start(
			context.Background(), 1, func(ctx context.Context, v int) (int, loop.Next) {
				deadline, ok := ctx.Deadline()
				if !ok {
					t.Errorf("deadline is not set")
				} else if timeout < time.Until(deadline) {
					t.Errorf("unexpected deadline: %s", deadline)
				}

				if 3 <= v {
					return v + 1, loop.Break(nil)
				}
				return v + 1, loop.Continue(0)
			},
			loop.WithTimeout(timeout),
		)).OrFatal(t)
	})

	t.Run("contexts of iterations are released after each iteration", func(t *testing.T) {
		var last context.Context
		try.To(loop.Start(
			context.Background(), 1, func(ctx context.Context, v int) (int, loop.Next) {
				if last != nil && last.Err() == nil {
					t.Errorf("context of the last iteration is not cancelled")
				}
				last = ctx
				if 3 <= v {
					return v + 1, loop.Break(nil)
				}
				return v + 1, loop.Continue(0)
			},
			loop.WithTimeout(time.Minute),
		)).OrFatal(t)
	})

	t.Run("it passes deadline-free context when WithTimeout is not passed", func(t *testing.T) {
		try.To(loop.Start(
			context.Background(), 1, func(ctx context.Context, v int) (int, loop.Next) {
				if deadline, ok := ctx.Deadline(); ok {
					t.Errorf("deadline is set: %s", deadline)
				}
				if 3 <= v {
					return v + 1, loop.Break(nil)
				}
				return v + 1, loop.Continue(0)
			},
		)).OrFatal(t)
	})

	t.Run("when context has been done before starting, it does nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		actual, err := loop.Start(
			ctx, 1, func(ctx context.Context, v int) (int, loop.Next) {
				return v + 1, loop.Continue(0)
			},
		)
		if !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
		if actual != 1 {
			t.Errorf("loop does not honour context")
		}
	})

	for name, expectedErr := range map[string]error{
		"it repeats task until it breaks":            nil,
		"it repeats task until it breaks with error": errors.New("break!"),
	} {
		t.Run(name, func(t *testing.T) {
			expected := 10
			actual, err := loop.Start(context.Background(), 1, func(ctx context.Context, v int) (int, loop.Next) {
				v += 1
				if expected <= v {
					return v, loop.Break(expectedErr)
				}
				return v, loop.Continue(0)
			})

			if !errors.Is(err, expectedErr) {
				t.Errorf("error is unexpected one. (actual, expected) = (%v, %v) ", err, expectedErr)
			}
			if actual != expected {
				t.Errorf("repeats too much/less. (actual, expected) = (%d, %d)", actual, expected)
			}
		})
	}
}
