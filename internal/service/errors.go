package service

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when a non-admin caller touches another owner's
// token.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports a rejected input field. Validation fails fast,
// before the store is contacted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
