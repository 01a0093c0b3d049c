package utils

// Map applies mapper to each element of sli, in order.
//
// The result is never nil, even if sli is.
func Map[T any, R any](sli []T, mapper func(T) R) []R {
	ret := make([]R, 0, len(sli))
	for _, v := range sli {
		ret = append(ret, mapper(v))
	}
	return ret
}

// Filter returns elements which keep returns true for, keeping their order.
func Filter[T any](sli []T, keep func(T) bool) []T {
	ret := make([]T, 0, len(sli))
	for _, v := range sli {
		if keep(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// First returns the first element matching pred.
//
// When nothing matches, it returns (zero, false).
func First[T any](sli []T, pred func(T) bool) (T, bool) {
	for _, v := range sli {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
