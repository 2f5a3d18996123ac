// Package oauth holds the cryptographic primitives shared by the
// interactive OAuth flow: PKCE verifier/challenge generation and random
// state parameters.
//
// The flow orchestration itself (loopback callback server, token exchange,
// token persistence) lives in internal/oauth; this package stays dependency
// free so it can be reused by tooling.
package oauth
