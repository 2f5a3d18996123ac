package oauth

import (
	"fmt"
	"time"
)

// CallbackTimeoutError indicates the loopback listener did not receive a
// callback within the flow's ceiling.
type CallbackTimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *CallbackTimeoutError) Error() string {
	return fmt.Sprintf("no OAuth callback received within %s", e.Timeout)
}

// StateMismatchError indicates the callback carried a state value that does
// not match the one sent with the authorization request. The values are
// deliberately not included in the message.
type StateMismatchError struct{}

// Error implements the error interface.
func (e *StateMismatchError) Error() string {
	return "OAuth callback state does not match the authorization request"
}

// RedirectURIError indicates the configured redirect URI is not an
// acceptable loopback HTTP address.
type RedirectURIError struct {
	URI    string
	Reason string
}

// Error implements the error interface.
func (e *RedirectURIError) Error() string {
	return fmt.Sprintf("redirect URI %q rejected: %s", e.URI, e.Reason)
}

// AuthorizationError carries an error reported by the provider through the
// callback's error and error_description query parameters.
type AuthorizationError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}
