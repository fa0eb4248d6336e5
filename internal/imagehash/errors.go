package imagehash

import (
	"errors"
	"fmt"
)

// Category classifies why a hash computation failed.
type Category int

const (
	// CategoryResource means the image could not be read or decoded.
	CategoryResource Category = iota + 1

	// CategoryPrecondition means the input violates an algorithm invariant,
	// such as degenerate tuning parameters.
	CategoryPrecondition

	// CategoryInternal covers anything else, including recovered panics.
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryResource:
		return "resource"
	case CategoryPrecondition:
		return "precondition"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyPath       = errors.New("empty image path")
	ErrEmptyData       = errors.New("empty image data")
	ErrNotImage        = errors.New("content is not an image")
	ErrBadParams       = errors.New("invalid mh parameters")
	ErrKernelTooLarge  = errors.New("mh kernel larger than working plane")
	ErrNilImage        = errors.New("nil image")
	ErrDegenerateImage = errors.New("image has no pixels")
	ErrImageTooLarge   = errors.New("image dimensions exceed limit")
)

type Error struct {
	Err      error
	Op       string
	Category Category
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%v] %s: %v", e.Category, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, c Category, err error) *Error {
	return &Error{Op: op, Category: c, Err: err}
}

// AsError returns the first *Error in err's chain, or nil.
func AsError(err error) *Error {
	var he *Error
	if errors.As(err, &he) {
		return he
	}
	return nil
}

// IsCategory reports whether err carries category c. Errors that are not an
// *Error are treated as CategoryInternal.
func IsCategory(err error, c Category) bool {
	if err == nil {
		return false
	}
	return CategoryOf(err) == c
}

func CategoryOf(err error) Category {
	if he := AsError(err); he != nil {
		return he.Category
	}
	return CategoryInternal
}
