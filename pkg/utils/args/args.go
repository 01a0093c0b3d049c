// Package args adapts parser functions to flag.Value.
package args

// Adapter is a flag.Value backed by a parser.
type Adapter[T interface{ String() string }] struct {
	parse      func(string) (T, error)
	value      T
	set        bool
	hasDefault bool
}

// Parser wraps a parser function as a flag.Value.
//
// Use it like:
//
//	loopType := args.Parser(domain.ParseLoopType)
//	flag.Var(loopType, "type", "loop type")
func Parser[T interface{ String() string }](parse func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parse: parse}
}

// Default sets the value used when the flag is not given.
func (a *Adapter[T]) Default(v T) *Adapter[T] {
	a.value = v
	a.hasDefault = true
	return a
}

func (a *Adapter[T]) String() string {
	if a == nil || !(a.set || a.hasDefault) {
		return ""
	}
	return a.value.String()
}

func (a *Adapter[T]) Set(s string) error {
	v, err := a.parse(s)
	if err != nil {
		return err
	}
	a.value = v
	a.set = true
	return nil
}

func (a *Adapter[T]) Value() T {
	return a.value
}

// IsSet reports whether the flag is given.
func (a *Adapter[T]) IsSet() bool {
	return a.set
}
