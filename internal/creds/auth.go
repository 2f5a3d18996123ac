package creds

import "time"

// Header names recognized as per-request credential carriers.
const (
	HeaderAuthorization = "Authorization"
	HeaderPrivateToken  = "Private-Token"
)

// SessionAuth is the effective credential for exactly one outbound call.
// It is immutable once constructed; fresher credentials replace the whole
// value rather than mutating it. The session manager computes one
// SessionAuth per dispatched request and passes it down the call stack
// explicitly.
type SessionAuth struct {
	// Token is the bearer secret, empty when no credential resolved.
	Token string

	// BaseURL optionally overrides the configured upstream base URL for
	// this call only.
	BaseURL string

	// SourceHeader records which inbound header carried the token, for
	// diagnostics. Empty for tokens that did not arrive over HTTP.
	SourceHeader string

	// ResolvedAt is when this value was constructed.
	ResolvedAt time.Time
}

// HasToken reports whether a bearer token is present.
func (a SessionAuth) HasToken() bool {
	return a.Token != ""
}
