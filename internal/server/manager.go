package server

import (
	"context"
	"sync"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"
)

// Close reasons reported through the session-closed hook.
const (
	CloseReasonIdleTimeout     = "idle_timeout"
	CloseReasonTransportError  = "transport_error"
	CloseReasonShutdown        = "shutdown"
	CloseReasonClientGone      = "client_disconnect"
	CloseReasonHandshakeFailed = "handshake_failed"
)

// minSweepInterval keeps the background sweep from spinning when the idle
// timeout is very short.
const minSweepInterval = time.Second

// Health is a read-only snapshot of the manager's pools.
type Health struct {
	ActiveSessions      int  `json:"activeSessions"`
	PendingSessions     int  `json:"pendingSessions"`
	EventStreamSessions int  `json:"eventStreamSessions"`
	MaxSessions         int  `json:"maxSessions"`
	AtCapacity          bool `json:"atCapacity"`
}

// Manager owns the lifecycle of every client connection across both
// transports: admission, pending-session bookkeeping, per-session dispatch
// ordering, rate limiting, idle reclamation, and credential propagation.
//
// All session tables are private to the manager; callers go through its
// lifecycle methods.
type Manager struct {
	mu sync.RWMutex

	sessions     map[string]*StreamSession
	pending      map[*StreamSession]struct{}
	eventStreams map[string]*EventStreamSession

	maxSessions       int
	idleTimeout       time.Duration
	requestsPerMinute int
	rateWindow        time.Duration

	resolver *creds.Resolver

	onCreated []func(sessionID string)
	onClosed  []func(sessionID, reason string)

	stopSweep chan struct{}
	sweepOnce sync.Once

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager creates a manager and starts its idle-sweep loop. Callers
// must call Shutdown to stop the loop.
func NewManager(maxSessions int, idleTimeout time.Duration, requestsPerMinute int, resolver *creds.Resolver) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}

	m := &Manager{
		sessions:          make(map[string]*StreamSession),
		pending:           make(map[*StreamSession]struct{}),
		eventStreams:      make(map[string]*EventStreamSession),
		maxSessions:       maxSessions,
		idleTimeout:       idleTimeout,
		requestsPerMinute: requestsPerMinute,
		rateWindow:        DefaultRateWindow,
		resolver:          resolver,
		stopSweep:         make(chan struct{}),
		now:               time.Now,
	}

	go m.sweepLoop()
	return m
}

// OnSessionCreated registers a hook fired when a session becomes
// addressable. Hooks run synchronously; keep them cheap.
func (m *Manager) OnSessionCreated(fn func(sessionID string)) {
	m.mu.Lock()
	m.onCreated = append(m.onCreated, fn)
	m.mu.Unlock()
}

// OnSessionClosed registers a hook fired when a session closes, with the
// close reason.
func (m *Manager) OnSessionClosed(fn func(sessionID, reason string)) {
	m.mu.Lock()
	m.onClosed = append(m.onClosed, fn)
	m.mu.Unlock()
}

// CheckCapacity reports whether a new connection would currently be
// admitted, without allocating anything.
func (m *Manager) CheckCapacity() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkCapacityLocked()
}

func (m *Manager) checkCapacityLocked() error {
	current := len(m.sessions) + len(m.pending) + len(m.eventStreams)
	if !Admitted(len(m.sessions), len(m.pending), len(m.eventStreams), m.maxSessions) {
		return &CapacityExceededError{Limit: m.maxSessions, Current: current}
	}
	return nil
}

// CreatePending admits a new streamable session and tracks it in the
// pending set. It counts against capacity but is invisible to lookup until
// the handshake assigns an id. On a capacity rejection nothing is
// allocated.
func (m *Manager) CreatePending() (*StreamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCapacityLocked(); err != nil {
		logging.Warn("SessionManager", "Admission rejected: %v", err)
		return nil, err
	}

	s := newStreamSession(m.now())
	m.pending[s] = struct{}{}
	logging.Debug("SessionManager", "Pending session admitted (pending: %d)", len(m.pending))
	return s, nil
}

// Activate moves a pending session into the addressable table under the id
// the transport handshake produced. The move is atomic: the session is
// never simultaneously pending and addressable.
func (m *Manager) Activate(s *StreamSession, sessionID string) error {
	if sessionID == "" {
		return &NotInitializedError{}
	}

	m.mu.Lock()
	delete(m.pending, s)
	s.mu.Lock()
	s.id = sessionID
	s.lastAccess = m.now()
	s.mu.Unlock()
	m.sessions[sessionID] = s
	created := append([]func(string){}, m.onCreated...)
	m.mu.Unlock()

	logging.Debug("SessionManager", "Session activated: %s", logging.TruncateSessionID(sessionID))
	for _, fn := range created {
		fn(sessionID)
	}
	return nil
}

// FailPending tears down a session whose handshake never produced an id.
// The teardown is silent: the session was never addressable, so there is
// no public close path to notify. An addressable session that fails during
// initialization goes through CloseSession instead, which does surface the
// close.
func (m *Manager) FailPending(s *StreamSession) {
	m.mu.Lock()
	delete(m.pending, s)
	m.mu.Unlock()

	s.close()
	logging.Debug("SessionManager", "Pending session discarded after handshake failure")
}

// Get returns the addressable session for an id.
func (m *Manager) Get(sessionID string) (*StreamSession, error) {
	if sessionID == "" {
		return nil, &NotInitializedError{}
	}

	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, &SessionNotFoundError{SessionID: sessionID}
	}
	return s, nil
}

// Dispatch queues work on a session and blocks until that work has run.
// The contract per session is strict FIFO, one at a time: the work runs
// only after everything queued before it finished (success or failure).
//
// Before queuing, the session's rate limit is applied; a rejection here
// never reaches the queue or the active-request counter.
//
// Immediately before the work runs, the effective credential for this one
// call is resolved (session override first, then the configured chain) and
// attached to the work's context. It is scoped to this dispatch only.
func (m *Manager) Dispatch(ctx context.Context, sessionID string, work func(ctx context.Context) error) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	if !s.allowRequest(m.now(), m.requestsPerMinute, m.rateWindow) {
		logging.Warn("SessionManager", "Rate limit exceeded for session %s", logging.TruncateSessionID(sessionID))
		return &RateLimitedError{SessionID: sessionID, Limit: m.requestsPerMinute, Window: m.rateWindow}
	}

	done := make(chan error, 1)
	queued := s.enqueue(func() {
		s.beginWork(m.now())
		defer s.endWork(m.now())

		workCtx := ctx
		if m.resolver != nil {
			auth, err := m.resolver.Resolve(ctx, s.AuthOverride())
			if err != nil {
				done <- err
				return
			}
			workCtx = creds.WithSessionAuth(ctx, auth)
		}

		done <- work(workCtx)
	})
	if !queued {
		return &SessionNotFoundError{SessionID: sessionID}
	}

	return <-done
}

// CloseSession closes an addressable session and removes it from the
// table. Close failures inside hooks or transports are the caller's
// concern; the session is removed regardless.
func (m *Manager) CloseSession(sessionID, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	closed := append([]func(string, string){}, m.onClosed...)
	m.mu.Unlock()

	if !ok {
		return
	}

	s.close()
	logging.Debug("SessionManager", "Session closed: %s (%s)", logging.TruncateSessionID(sessionID), reason)
	for _, fn := range closed {
		fn(sessionID, reason)
	}
}

// RegisterEventStream admits a legacy SSE session. The transport assigns
// the id up front, so the session is addressable immediately.
func (m *Manager) RegisterEventStream(sessionID string) error {
	m.mu.Lock()
	if err := m.checkCapacityLocked(); err != nil {
		m.mu.Unlock()
		logging.Warn("SessionManager", "Event stream admission rejected: %v", err)
		return err
	}
	m.eventStreams[sessionID] = newEventStreamSession(sessionID, m.now())
	created := append([]func(string){}, m.onCreated...)
	m.mu.Unlock()

	logging.Debug("SessionManager", "Event stream registered: %s", logging.TruncateSessionID(sessionID))
	for _, fn := range created {
		fn(sessionID)
	}
	return nil
}

// TouchEventStream refreshes an event stream's last-access time.
func (m *Manager) TouchEventStream(sessionID string) {
	m.mu.RLock()
	s, ok := m.eventStreams[sessionID]
	m.mu.RUnlock()
	if ok {
		s.Touch(m.now())
	}
}

// CloseEventStream closes a legacy session.
func (m *Manager) CloseEventStream(sessionID, reason string) {
	m.mu.Lock()
	s, ok := m.eventStreams[sessionID]
	if ok {
		delete(m.eventStreams, sessionID)
	}
	closed := append([]func(string, string){}, m.onClosed...)
	m.mu.Unlock()

	if !ok {
		return
	}

	s.close()
	logging.Debug("SessionManager", "Event stream closed: %s (%s)", logging.TruncateSessionID(sessionID), reason)
	for _, fn := range closed {
		fn(sessionID, reason)
	}
}

// SweepIdle closes every session whose last access predates the idle
// timeout and that has no in-flight work. Sessions mid-request survive
// regardless of age. Returns the number of sessions closed.
func (m *Manager) SweepIdle() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.RLock()
	var idleStreams []string
	for id, s := range m.sessions {
		if s.idleSince(cutoff) {
			idleStreams = append(idleStreams, id)
		}
	}
	var idleEvents []string
	for id, s := range m.eventStreams {
		if s.idleSince(cutoff) {
			idleEvents = append(idleEvents, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idleStreams {
		m.CloseSession(id, CloseReasonIdleTimeout)
	}
	for _, id := range idleEvents {
		m.CloseEventStream(id, CloseReasonIdleTimeout)
	}

	closed := len(idleStreams) + len(idleEvents)
	if closed > 0 {
		logging.Info("SessionManager", "Idle sweep closed %d sessions", closed)
	}
	return closed
}

// Health reports current pool counts. Read-only.
func (m *Manager) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := len(m.sessions) + len(m.pending) + len(m.eventStreams)
	return Health{
		ActiveSessions:      len(m.sessions),
		PendingSessions:     len(m.pending),
		EventStreamSessions: len(m.eventStreams),
		MaxSessions:         m.maxSessions,
		AtCapacity:          sum >= m.maxSessions,
	}
}

// sweepLoop runs SweepIdle periodically until Shutdown.
func (m *Manager) sweepLoop() {
	interval := m.idleTimeout / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.SweepIdle()
		case <-m.stopSweep:
			return
		}
	}
}

// Shutdown closes every tracked session concurrently and stops the sweep
// loop. Individual close failures are logged inside the close paths and
// never abort the shutdown.
func (m *Manager) Shutdown() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })

	m.mu.Lock()
	streams := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		streams = append(streams, id)
	}
	events := make([]string, 0, len(m.eventStreams))
	for id := range m.eventStreams {
		events = append(events, id)
	}
	for s := range m.pending {
		s.close()
	}
	m.pending = make(map[*StreamSession]struct{})
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range streams {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.CloseSession(id, CloseReasonShutdown)
		}(id)
	}
	for _, id := range events {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.CloseEventStream(id, CloseReasonShutdown)
		}(id)
	}
	wg.Wait()

	logging.Info("SessionManager", "Session manager stopped")
}
