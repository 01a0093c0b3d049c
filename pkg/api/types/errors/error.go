package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/opst/prodplan/pkg/domain"
)

// ErrorMessage is the body of error responses.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`

	// Problems found in a request, one per entry.
	Problems []string `json:"problems,omitempty"`

	Cause error `json:"-"`
}

func (e ErrorMessage) Error() string {
	b := new(strings.Builder)
	b.WriteString(e.Reason)
	if e.Advice != "" {
		fmt.Fprintf(b, " (%s)", e.Advice)
	}
	for _, p := range e.Problems {
		fmt.Fprintf(b, "\n - %s", p)
	}
	if e.Cause != nil {
		fmt.Fprintf(b, "\n caused by: %s", e.Cause)
	}
	return b.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type Option func(*ErrorMessage)

func WithAdvice(advice string) Option {
	return func(m *ErrorMessage) { m.Advice = advice }
}

func WithCause(err error) Option {
	return func(m *ErrorMessage) { m.Cause = err }
}

func WithProblems(problems ...string) Option {
	return func(m *ErrorMessage) { m.Problems = append(m.Problems, problems...) }
}

// New creates an HTTPError with ErrorMessage as its body.
//
// The message is also set as the internal error, so that it is logged.
func New(code int, reason string, opts ...Option) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, o := range opts {
		o(&msg)
	}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound() *echo.HTTPError {
	return New(http.StatusNotFound, "not found")
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return New(http.StatusBadRequest, "bad request", WithAdvice(advice), WithCause(err))
}

// FromDomain translates errors of domain operations to http errors.
//
//   - ErrMissing: 404
//   - ErrRuleSyntax, ErrValidation: 400
//   - ErrInvalidStateChanging, ErrConflict: 409
//   - otherwise: 500
func FromDomain(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrMissing):
		return New(http.StatusNotFound, "not found", WithAdvice(err.Error()), WithCause(err))
	case errors.Is(err, domain.ErrRuleSyntax):
		return New(http.StatusBadRequest, "malformed selection rule", WithAdvice(err.Error()), WithCause(err))
	case errors.Is(err, domain.ErrValidation):
		opts := []Option{WithCause(err)}
		if verr := new(domain.ValidationError); errors.As(err, &verr) {
			opts = append(opts, WithAdvice("fix "+verr.Subject), WithProblems(verr.Problems...))
		}
		return New(http.StatusBadRequest, "invalid request", opts...)
	case errors.Is(err, domain.ErrInvalidStateChanging):
		return New(http.StatusConflict, "the state can not be changed", WithAdvice(err.Error()), WithCause(err))
	case errors.Is(err, domain.ErrConflict):
		return New(http.StatusConflict, "conflicting", WithAdvice(err.Error()), WithCause(err))
	}
	return New(http.StatusInternalServerError, "unexpected error", WithCause(err))
}
