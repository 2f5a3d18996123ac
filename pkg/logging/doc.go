// Package logging provides leveled, structured logging built on the
// standard library's slog package.
//
// Every log entry carries a subsystem tag so operators can filter the
// output of one component (for example "SessionManager" or
// "CredentialResolver") without grepping message text. Logging is
// fire-and-forget: the helpers never block the caller and never return
// errors.
//
// Session identifiers must always pass through TruncateSessionID before
// being logged; full IDs are treated as secrets.
package logging
