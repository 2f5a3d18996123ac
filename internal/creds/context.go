package creds

import "context"

type sessionAuthKey struct{}

// WithSessionAuth attaches the credentials resolved for one call to the
// request context. The value is scoped to that single dispatch; nothing is
// stored globally.
func WithSessionAuth(ctx context.Context, auth SessionAuth) context.Context {
	return context.WithValue(ctx, sessionAuthKey{}, auth)
}

// SessionAuthFromContext returns the credentials resolved for this call, if
// the dispatch layer attached any.
func SessionAuthFromContext(ctx context.Context) (SessionAuth, bool) {
	auth, ok := ctx.Value(sessionAuthKey{}).(SessionAuth)
	return auth, ok
}
