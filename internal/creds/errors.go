package creds

import "fmt"

// ReasonCredentialUnavailable is the stable rejection reason clients match
// on to decide they must re-authenticate. Never change it.
const ReasonCredentialUnavailable = "credential_unavailable"

// CredentialUnavailableError is returned when every configured resolution
// strategy failed. It is surfaced as an authentication error and is not
// retried automatically.
type CredentialUnavailableError struct {
	// LastErr is the error from the last strategy that was attempted.
	LastErr error
}

func (e *CredentialUnavailableError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("%s: %v", ReasonCredentialUnavailable, e.LastErr)
	}
	return ReasonCredentialUnavailable + ": no credential source configured"
}

// Reason returns the stable rejection reason.
func (e *CredentialUnavailableError) Reason() string { return ReasonCredentialUnavailable }

func (e *CredentialUnavailableError) Unwrap() error {
	return e.LastErr
}

// FilePermissionError is returned when a secret file is readable by group
// or other and strict permission checking is enabled.
type FilePermissionError struct {
	Path string
	Mode string
}

func (e *FilePermissionError) Error() string {
	return fmt.Sprintf("secret file %s has permissions %s: group/other read access is not allowed (set allowLooserPermissions to override)", e.Path, e.Mode)
}

// ScriptError is returned when the secret-retrieval command failed, timed
// out or exceeded the output ceiling.
type ScriptError struct {
	Command string
	Err     error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("secret script %q failed: %v", e.Command, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
