package stamp

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when the input is not a readable PDF document.
	ErrParse = errors.New("could not parse input document")

	// ErrSerialize is returned when the stamped document could not be written.
	ErrSerialize = errors.New("could not serialize output document")
)

// Error describes a failed stamping step. It always wraps either ErrParse or
// ErrSerialize, together with the underlying cause.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "stamp: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func parseError(op string, err error) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrParse, err)}
}

func serializeError(op string, err error) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrSerialize, err)}
}
