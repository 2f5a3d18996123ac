package server

import (
	"fmt"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"
)

// Stable rejection reasons. Clients branch on these strings to decide
// between "retry later", "re-initialize" and "re-authenticate", so they
// must never change.
const (
	ReasonCapacityExceeded = "capacity_exceeded"
	ReasonRateLimited      = "rate_limited"
	ReasonUnknownSession   = "unknown_session"
	ReasonNotInitialized   = "not_initialized"
)

// CapacityExceededError is returned when admission control rejects a new
// connection. No resource has been allocated when this is returned.
type CapacityExceededError struct {
	Limit   int
	Current int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s: %d/%d sessions in use, retry later", ReasonCapacityExceeded, e.Current, e.Limit)
}

// Reason returns the stable rejection reason.
func (e *CapacityExceededError) Reason() string { return ReasonCapacityExceeded }

// RateLimitedError is returned when a session exceeds its request ceiling
// within the current window. The request was rejected before queuing.
type RateLimitedError struct {
	SessionID string
	Limit     int
	Window    time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: session %s exceeded %d requests per %s, back off until the window resets",
		ReasonRateLimited, logging.TruncateSessionID(e.SessionID), e.Limit, e.Window)
}

// Reason returns the stable rejection reason.
func (e *RateLimitedError) Reason() string { return ReasonRateLimited }

// SessionNotFoundError is returned when a request references a session id
// the manager has never seen. Not retryable without re-initializing.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("%s: session %s not found, re-initialize", ReasonUnknownSession, logging.TruncateSessionID(e.SessionID))
}

// Reason returns the stable rejection reason.
func (e *SessionNotFoundError) Reason() string { return ReasonUnknownSession }

// NotInitializedError is returned for a non-initiating request that carries
// no session id. The client must send an initialize request first.
type NotInitializedError struct{}

func (e *NotInitializedError) Error() string {
	return ReasonNotInitialized + ": no session established, send an initialize request first"
}

// Reason returns the stable rejection reason.
func (e *NotInitializedError) Reason() string { return ReasonNotInitialized }
