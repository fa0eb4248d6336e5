package boundary

import (
	"fmt"
	"runtime/debug"

	"phash/internal/imagehash"
)

// PanicError carries a value recovered from a panicking hash computation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// capture runs fn and folds both its returned error and any panic into a
// single error result.
func capture[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v = zero
			err = &imagehash.Error{
				Op:       "recover",
				Category: imagehash.CategoryInternal,
				Err:      &PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()
	return fn()
}
