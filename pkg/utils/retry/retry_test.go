package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/prodplan/pkg/utils/retry"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func TestDo(t *testing.T) {
	type when struct {
		maxRetry int
		failures int
		err      error
	}
	type then struct {
		calls int
		value int
		err   error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			calls := 0
			value, err := retry.Do(
				context.Background(), retry.Static(0), when.maxRetry, isTransient,
				func(context.Context) (int, error) {
					calls += 1
					if calls <= when.failures {
						return calls, when.err
					}
					return calls, nil
				},
			)
			if !errors.Is(err, then.err) {
				t.Errorf("error: actual %v, expected %v", err, then.err)
			}
			if calls != then.calls {
				t.Errorf("calls: actual %d, expected %d", calls, then.calls)
			}
			if value != then.value {
				t.Errorf("value: actual %d, expected %d", value, then.value)
			}
		}
	}

	t.Run("success at first", theory(
		when{maxRetry: 3, failures: 0, err: errTransient},
		then{calls: 1, value: 1, err: nil},
	))
	t.Run("success after retries", theory(
		when{maxRetry: 3, failures: 2, err: errTransient},
		then{calls: 3, value: 3, err: nil},
	))
	t.Run("gives up after max retry", theory(
		when{maxRetry: 2, failures: 5, err: errTransient},
		then{calls: 3, value: 3, err: errTransient},
	))
	permanent := errors.New("permanent")
	t.Run("permanent errors are not retried", theory(
		when{maxRetry: 3, failures: 5, err: permanent},
		then{calls: 1, value: 1, err: permanent},
	))
}

func TestDo_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry.Do(ctx, retry.Static(time.Hour), 3, isTransient, func(context.Context) (struct{}, error) {
		calls += 1
		cancel()
		return struct{}{}, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: %d", calls)
	}
}

func TestExponential(t *testing.T) {
	backoff := retry.Exponential(time.Millisecond, 2, 4*time.Millisecond)
	for n := 1; n <= 5; n++ {
		start := time.Now()
		if err := backoff(context.Background(), n); err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); 50*time.Millisecond < elapsed {
			t.Errorf("retry #%d waits too long: %s", n, elapsed)
		}
	}
}
