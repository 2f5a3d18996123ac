package server

import (
	"sync"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
)

// StreamSession is one logical client connection over the streamable HTTP
// transport. It starts out pending (no id); the id is assigned when the
// transport completes its handshake.
//
// Requests on one session are strictly serialized: the queue is drained by
// a single drainer, one item at a time, in arrival order. A failing item
// never blocks the items behind it.
type StreamSession struct {
	mu sync.Mutex

	id         string
	createdAt  time.Time
	lastAccess time.Time
	closed     bool

	// active counts requests currently being executed (not merely queued),
	// so the idle sweep can tell "connected but inactive" from "mid-request".
	active int

	// override is the most recent per-request credential observed on this
	// session. Replaced wholesale when a fresher one arrives.
	override creds.SessionAuth

	rate rateWindow

	queue    []func()
	draining bool
}

func newStreamSession(now time.Time) *StreamSession {
	return &StreamSession{
		createdAt:  now,
		lastAccess: now,
	}
}

// ID returns the session id, empty while the session is pending.
func (s *StreamSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Touch updates the last-access timestamp.
func (s *StreamSession) Touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// SetAuthOverride replaces the session's per-request credential.
func (s *StreamSession) SetAuthOverride(auth creds.SessionAuth) {
	s.mu.Lock()
	s.override = auth
	s.mu.Unlock()
}

// AuthOverride returns the most recent per-request credential.
func (s *StreamSession) AuthOverride() creds.SessionAuth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

// Closed reports whether the session has been closed.
func (s *StreamSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// allowRequest applies the rate limit. Rejections happen before queuing,
// so they never touch the active counter.
func (s *StreamSession) allowRequest(now time.Time, limit int, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.rate.allow(now, limit, window)
}

// enqueue appends work to the session's FIFO queue and starts a drainer if
// none is running. Exactly one queued item executes at a time; order is
// arrival order. Returns false if the session is already closed.
func (s *StreamSession) enqueue(work func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, work)
	start := !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
	return true
}

// drain executes queued work one item at a time until the queue empties.
func (s *StreamSession) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		work := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		work()
	}
}

// beginWork marks one request as in flight.
func (s *StreamSession) beginWork(now time.Time) {
	s.mu.Lock()
	s.active++
	s.lastAccess = now
	s.mu.Unlock()
}

// endWork marks one request as finished.
func (s *StreamSession) endWork(now time.Time) {
	s.mu.Lock()
	s.active--
	s.lastAccess = now
	s.mu.Unlock()
}

// idleSince reports whether the session has no in-flight work and has been
// untouched since before the cutoff.
func (s *StreamSession) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == 0 && s.lastAccess.Before(cutoff)
}

// close marks the session closed and drops any queued work. Idempotent.
func (s *StreamSession) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}

// EventStreamSession is one logical client connection over the legacy SSE
// transport. The transport assigns the id at creation, so there is no
// pending phase, and notifications are pushed outside any request queue.
type EventStreamSession struct {
	mu sync.Mutex

	id         string
	createdAt  time.Time
	lastAccess time.Time
	closed     bool
}

func newEventStreamSession(id string, now time.Time) *EventStreamSession {
	return &EventStreamSession{
		id:         id,
		createdAt:  now,
		lastAccess: now,
	}
}

// ID returns the session id.
func (s *EventStreamSession) ID() string { return s.id }

// Touch updates the last-access timestamp.
func (s *EventStreamSession) Touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *EventStreamSession) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess.Before(cutoff)
}

func (s *EventStreamSession) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
