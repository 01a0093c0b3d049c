package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// requested entity is not found.
	ErrMissing = errors.New("missing")

	// the entity conflicts with another one (for example, its natural key is used).
	ErrConflict = errors.New("conflict")

	// the rule text does not follow the selection rule grammar.
	ErrRuleSyntax = errors.New("selection rule syntax error")

	// the entity does not meet its requirements.
	ErrValidation = errors.New("validation error")

	// the entity has been updated by someone else concurrently.
	//
	// Operations caused this error can be retried in a new transaction.
	ErrConcurrentModification = errors.New("concurrent modification")

	// state transition is not allowed.
	ErrInvalidStateChanging = errors.New("invalid state changing")
)

// Missing tells which entity is not found.
type Missing struct {
	Table    string
	Identity string
}

func (m *Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m *Missing) Unwrap() error {
	return ErrMissing
}

// RuleSyntaxError is an error in a selection rule text.
type RuleSyntaxError struct {
	// the whole rule text
	Rule string

	// byte offset in Rule where the problem is found
	Offset int

	Reason string
}

func (e *RuleSyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Reason, e.Offset, e.Rule)
}

func (e *RuleSyntaxError) Unwrap() error {
	return ErrRuleSyntax
}

// ValidationError lists all problems found in Subject.
type ValidationError struct {
	Subject  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is invalid: %s", e.Subject, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StateChangingError tells which transition is refused.
type StateChangingError struct {
	Entity string
	From   string
	To     string
}

func (e *StateChangingError) Error() string {
	return fmt.Sprintf("%s: %s -> %s is not allowed", e.Entity, e.From, e.To)
}

func (e *StateChangingError) Unwrap() error {
	return ErrInvalidStateChanging
}
