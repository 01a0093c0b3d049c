package mocks

// CallLog records arguments of each call of a mocked method.
type CallLog[T any] []T

func (l CallLog[T]) Times() uint {
	return uint(len(l))
}

// Last returns arguments of the last call. It panics when not called.
func (l CallLog[T]) Last() T {
	return l[len(l)-1]
}
