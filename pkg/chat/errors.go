package chat

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrForbidden is returned for any access to a conversation the acting
	// user is not a party to. It never says whether the conversation exists.
	ErrForbidden = errors.New("forbidden")

	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound is reserved for lookups; mark-read and delete of an empty
	// conversation succeed with a zero count instead.
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects a request before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
