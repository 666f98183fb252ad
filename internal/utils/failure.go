package utils

import "errors"

type ErrorType int

const (
	ErrInternal ErrorType = iota
	ErrBadInput
	ErrNotAllowed
	ErrNotFound
	ErrTooLarge
)

func (t ErrorType) String() string {
	switch t {
	case ErrInternal:
		return "internal"
	case ErrBadInput:
		return "bad_input"
	case ErrNotAllowed:
		return "not_allowed"
	case ErrNotFound:
		return "not_found"
	case ErrTooLarge:
		return "too_large"
	}
	return "unknown"
}

// Failure is an error meant to be shown to the invoking user.
type Failure struct {
	Type    ErrorType
	Message string
	Data    map[string]any
}

// Internal wraps an unexpected error for display.
func Internal(message string, err error) Failure {
	return Failure{Type: ErrInternal, Message: message, Data: map[string]any{"error": err}}
}

func (f Failure) Error() string {
	return f.Message
}

// AsFailure reports whether err carries a Failure.
func AsFailure(err error) (Failure, bool) {
	var f Failure
	ok := errors.As(err, &f)
	return f, ok
}
