package server

import "time"

// DefaultRateWindow is the sliding-window duration for per-session rate
// limiting.
const DefaultRateWindow = 60 * time.Second

// rateWindow tracks one session's request count within the current window.
// Once the window start is more than one window-duration in the past the
// window resets. Zero value is an empty, immediately-usable window.
//
// Not safe for concurrent use on its own; the owning session's lock guards
// it.
type rateWindow struct {
	start time.Time
	count int
}

// allow records a request if the session is under its ceiling and reports
// whether the request may proceed. A rejected request is not recorded.
func (w *rateWindow) allow(now time.Time, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}
	if w.start.IsZero() || now.Sub(w.start) >= window {
		w.start = now
		w.count = 0
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}
