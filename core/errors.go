package core

import "github.com/pkg/errors"

var (
	// ErrPermissionDenied is returned when the caller's role claims do not
	// allow the attempted privileged operation. The operation never happened:
	// callers must not write an audit entry for it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStorageUnavailable signals a transient storage failure. It is the only
	// error in the taxonomy that is safe to retry blindly.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
