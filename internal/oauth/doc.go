// Package oauth implements the interactive GitLab OAuth flow used as a
// credential source by the resolution pipeline.
//
// The flow is authorization-code with PKCE (S256). Tokens are persisted to
// a single owner-only JSON file and refreshed via the refresh-token grant
// before the interactive flow is escalated to. GetAccessToken is
// single-flighted: concurrent callers share one in-flight resolution
// instead of opening multiple browser windows.
package oauth
