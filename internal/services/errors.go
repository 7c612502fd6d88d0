package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidCredentials is returned on failed logins without revealing whether
// the username exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidationError reports one or more rejected input fields. Handlers map it
// to a 400 response with the field messages attached.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// DuplicateError marks a uniqueness violation (name, barcode, username, email).
type DuplicateError struct {
	Message string
}

func (e *DuplicateError) Error() string {
	return e.Message
}
