package server

// Admitted reports whether a new connection may be created given the
// current pool sizes. All three pools count against the same cap: active
// streamable sessions, pending sessions still in handshake, and event
// stream sessions. The boundary case sum == max is full, not admissible.
func Admitted(streamable, pending, eventStream, max int) bool {
	return streamable+pending+eventStream < max
}
