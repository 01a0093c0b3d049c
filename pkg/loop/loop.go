// Package loop runs a task repeatedly.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells the loop what to do after a task.
//
// The zero value means "continue immediately".
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.quit:
		return "[break] without error"
	default:
		return fmt.Sprintf("[continue] interval: %s", n.interval)
	}
}

// Continue the loop after the interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break the loop. err can be nil.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one iteration of a loop.
//
// It receives the value returned by the last iteration (or the initial value),
// and returns the value for the next one with Next.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task repeatedly until it breaks or ctx is done.
//
// Args
//
// - ctx: When this gets done, the loop stops with ctx.Err().
// Running task is not interrupted by the loop itself, but sees ctx.
//
// - init: value passed to the first iteration.
//
// - task
//
// - options: options applied for each iteration.
//
// Returns
//
// - T: the value task returned at last. It is returned even if error is returned.
//
// - error: the error passed to Break, or ctx.Err().
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	value := init
	for {
		v, next := once(ctx, value, task, options)
		if next.err != nil {
			return v, next.err
		}
		if next.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

func once[T any](ctx context.Context, value T, task Task[T], options []Option) (T, Next) {
	it := &iteration{ctx: ctx, release: func() {}}
	for _, opt := range options {
		it = opt(it)
	}
	defer it.release()
	return task(it.ctx, value)
}

type iteration struct {
	ctx     context.Context
	release func()
}

type Option func(*iteration) *iteration

// WithTimeout sets timeout on the context passed to each iteration.
func WithTimeout(d time.Duration) Option {
	return func(it *iteration) *iteration {
		ctx, cancel := context.WithTimeout(it.ctx, d)
		release := it.release
		return &iteration{
			ctx: ctx,
			release: func() {
				cancel()
				release()
			},
		}
	}
}
