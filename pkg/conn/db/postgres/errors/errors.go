// Package errors translates errors of postgres into domain errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/opst/prodplan/pkg/domain"
)

// Conflict is a unique violation.
type Conflict struct {
	Constraint string
	Detail     string
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("conflicts on %s: %s", c.Constraint, c.Detail)
}

func (c *Conflict) Unwrap() error {
	return domain.ErrConflict
}

// ConcurrentModification is a serialization failure or a deadlock.
type ConcurrentModification struct {
	Cause *pgconn.PgError
}

func (c *ConcurrentModification) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrConcurrentModification, c.Cause.Message)
}

func (c *ConcurrentModification) Unwrap() []error {
	return []error{domain.ErrConcurrentModification, c.Cause}
}

// Translate converts errors of postgres into domain errors.
//
// Errors which are not of postgres, or are translated already, are returned as they are.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if cm := new(ConcurrentModification); errors.As(err, &cm) {
		return err
	}
	pgerr := new(pgconn.PgError)
	if !errors.As(err, &pgerr) {
		return err
	}
	switch pgerr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return &ConcurrentModification{Cause: pgerr}
	case pgerrcode.UniqueViolation:
		return &Conflict{Constraint: pgerr.ConstraintName, Detail: pgerr.Detail}
	case pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return &domain.ValidationError{
			Subject:  pgerr.TableName,
			Problems: []string{pgerr.Message},
		}
	}
	return err
}

// Retryable reports the error is transient, and the transaction can be retried.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrConcurrentModification)
}
