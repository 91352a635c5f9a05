// Package common defines sentinel errors shared by the repository, service and
// transport layers. Callers should match them with errors.Is.
package common

import "errors"

var (
	// Session errors.
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")

	// Login errors.
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountSuspended     = errors.New("account suspended")
	ErrInvalidExternalToken = errors.New("invalid external identity token")

	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Request errors.
	ErrValidation    = errors.New("validation error")
	ErrInvalidStatus = errors.New("invalid status")
	ErrForbidden     = errors.New("forbidden")

	// Storage or identity provider failure.
	ErrUpstream = errors.New("upstream failure")
)

// ValidationError carries a human readable message for a malformed payload.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid returns a ValidationError with the given message.
func Invalid(message string) error {
	return &ValidationError{Message: message}
}

// Message extracts the human readable part of err when it is a ValidationError.
func Message(err error) (string, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message, true
	}
	return "", false
}
