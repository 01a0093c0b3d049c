package try

// Fataler is something which has `Fatal`, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either is a pair of a value and an error.
//
// When the error is nil, the Either is "ok" and its value is valid.
// Otherwise, the value should not be used.
type Either[T any] struct {
	value T
	err   error
}

// To wraps a return value of a function returning (T, error).
func To[T any](value T, err error) Either[T] {
	return Either[T]{value: value, err: err}
}

func (e Either[T]) Get() (T, error) {
	if e.err != nil {
		return *new(T), e.err
	}
	return e.value, nil
}

// OrFatal returns the value when it is ok. Otherwise, it calls ftl.Fatal(err).
//
// If ftl has `Helper()` (like *testing.T), it is called before Fatal.
func (e Either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}

func (e Either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}

// Map converts the value when it is ok.
func Map[T, R any](e Either[T], mapper func(T) (R, error)) Either[R] {
	if e.err != nil {
		return Either[R]{err: e.err}
	}
	return To(mapper(e.value))
}
