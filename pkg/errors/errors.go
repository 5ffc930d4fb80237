package errors

import "errors"

var (
	RecordNotFound     = errors.New("record not found")
	DuplicateRecord    = errors.New("duplicate record")
	InvalidCredentials = errors.New("invalid email or password")
	EmailTaken         = errors.New("email address is already registered")
	Unauthorized       = errors.New("unauthorized")
	Forbidden          = errors.New("forbidden")
	InvalidInput       = errors.New("invalid input")
)

// ValidationError reports a rejected request field. It matches InvalidInput
// with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == InvalidInput
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
