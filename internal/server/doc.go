// Package server owns the MCP-facing surface: transport setup
// (streamable HTTP, SSE, stdio), session lifecycle and admission control,
// per-session request ordering and rate limiting, and the middleware that
// resolves credentials for each tool call before it reaches a handler.
//
// Session state lives in one Manager instance with explicit lifecycle
// methods; there is no package-level registry.
package server
