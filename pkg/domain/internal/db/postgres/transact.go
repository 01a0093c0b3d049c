// Package postgres has queries shared by repositories on postgres.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	kpgerr "github.com/opst/prodplan/pkg/conn/db/postgres/errors"
	kpool "github.com/opst/prodplan/pkg/conn/db/postgres/pool"
	"github.com/opst/prodplan/pkg/utils/retry"
)

// Retry is how transactions are retried on concurrent modification.
type Retry struct {
	// how many times a transaction can be retried. 0 means "never retry".
	MaxRetry int

	Backoff retry.Backoff
}

func DefaultRetry() Retry {
	return Retry{
		MaxRetry: 3,
		Backoff:  retry.Exponential(50*time.Millisecond, 2, 2*time.Second),
	}
}

// Transact runs fn in a REPEATABLE READ transaction.
//
// When fn returns error, the transaction is rolled back.
// When the transaction fails by serialization failure or deadlock, it is retried from fn.
//
// Returns
//
// - error: error from fn (translated by kpgerr.Translate),
// or domain.ErrConcurrentModification when retries are exhausted.
func Transact(ctx context.Context, pool kpool.Pool, r Retry, fn func(context.Context, kpool.Tx) error) error {
	_, err := retry.Do(
		ctx, r.Backoff, r.MaxRetry, kpgerr.Retryable,
		func(ctx context.Context) (struct{}, error) {
			tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
			if err != nil {
				return struct{}{}, kpgerr.Translate(err)
			}
			defer tx.Rollback(ctx)

			if err := fn(ctx, tx); err != nil {
				return struct{}{}, kpgerr.Translate(err)
			}
			return struct{}{}, kpgerr.Translate(tx.Commit(ctx))
		},
	)
	return err
}
