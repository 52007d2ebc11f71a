package domain

import (
	"errors"
	"fmt"
)

// ErrSourceMissing marks an absent data source. Callers recover locally by
// treating the result as empty; it is never fatal to a request.
var ErrSourceMissing = errors.New("data source missing")

// ValidationError is a rejected caller input: missing merchant or date on
// insert, an invalid acknowledgement action, out-of-range parameters.
// It is surfaced to the caller and not retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
