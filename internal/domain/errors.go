package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for collaborator operations
var (
	// ErrNotSignedIn indicates an authenticated call was attempted without a session
	ErrNotSignedIn = errors.New("user not signed in")

	// ErrServerOffline indicates the remote API or store is unreachable
	ErrServerOffline = errors.New("remote service is unreachable")

	// ErrAuthFailed indicates credentials were rejected
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotFound indicates the requested project does not exist
	ErrNotFound = errors.New("project not found")

	// ErrProfileNotFound indicates the requested profile document is absent
	ErrProfileNotFound = errors.New("profile not found")

	// ErrDeviceCodeExpired indicates the device-flow code was not claimed in time
	ErrDeviceCodeExpired = errors.New("device code expired")

	// ErrInvalidRecord indicates a stored record failed validation during mapping
	ErrInvalidRecord = errors.New("invalid record")
)

// AccountExistsError signals that the identity already exists under a
// different provider. It is recoverable: callers should offer account
// linking instead of resetting the session.
type AccountExistsError struct {
	Email    string
	Provider string
}

func (e *AccountExistsError) Error() string {
	return fmt.Sprintf("account for %s already exists under provider %s", e.Email, e.Provider)
}

// IsAccountExists reports whether err wraps an AccountExistsError.
func IsAccountExists(err error) bool {
	var target *AccountExistsError
	return errors.As(err, &target)
}
