package core

import "github.com/pkg/errors"

// FieldError pins an error message to one struct field, typically a form
// field the client can highlight.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries per-field errors produced outside the validator,
// such as a uniqueness check against storage. The HTTP layer renders the
// Fields as a field-to-message map, same as translated validator errors.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// NewValidationError wraps err with the field errors it relates to.
func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals that the web server cannot recover and should stop.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown checks whether err, at its cause, is a shutdown error.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
