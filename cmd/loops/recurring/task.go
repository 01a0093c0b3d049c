package recurring

import (
	"context"

	"github.com/opst/prodplan/pkg/loop"
)

// Task is one cycle of a recurring loop.
//
// Returns
//
// - T: the value passed to the next cycle.
//
// - bool: true when the cycle did something, so more things to do can be left.
//
// - error: error in this cycle. How it is handled is up to the Policy.
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied makes a loop.Task deciding the next cycle by the policy.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, t T) (T, loop.Next) {
		next, updated, err := rt(ctx, t)
		return next, p.Next(updated, err)
	}
}
