package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError describes a single rejected configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Reason)
}

// Validate checks a loaded configuration for values the server cannot run
// with. It returns the first problem found.
func Validate(cfg Config) error {
	switch cfg.Server.Transport {
	case MCPTransportStreamableHTTP, MCPTransportSSE, MCPTransportStdio:
	default:
		return &ValidationError{
			Field:  "server.transport",
			Reason: fmt.Sprintf("unknown transport %q (expected %s, %s or %s)", cfg.Server.Transport, MCPTransportStreamableHTTP, MCPTransportSSE, MCPTransportStdio),
		}
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Reason: fmt.Sprintf("port %d out of range", cfg.Server.Port)}
	}
	if cfg.Server.MaxSessions <= 0 {
		return &ValidationError{Field: "server.maxSessions", Reason: "must be positive"}
	}
	if cfg.Server.RequestsPerMinute <= 0 {
		return &ValidationError{Field: "server.requestsPerMinute", Reason: "must be positive"}
	}
	if cfg.Server.SessionIdleTimeout.Duration() <= 0 {
		return &ValidationError{Field: "server.sessionIdleTimeout", Reason: "must be positive"}
	}

	if _, err := url.ParseRequestURI(cfg.GitLab.BaseURL); err != nil {
		return &ValidationError{Field: "gitlab.baseURL", Reason: fmt.Sprintf("not a valid URL: %v", err)}
	}

	if cfg.Auth.OAuth.Enabled() {
		if err := validateRedirectURI(cfg.Auth.OAuth.RedirectURI); err != nil {
			return err
		}
		if cfg.Auth.OAuth.TokenFile == "" {
			return &ValidationError{Field: "auth.oauth.tokenFile", Reason: "required when OAuth is enabled"}
		}
	}

	if cfg.Auth.TokenScript.Enabled() && cfg.Auth.TokenScript.Timeout.Duration() <= 0 {
		return &ValidationError{Field: "auth.tokenScript.timeout", Reason: "must be positive"}
	}

	if cfg.Auth.Cookies.Enabled() && !strings.HasPrefix(cfg.Auth.Cookies.WarmupPath, "/") {
		return &ValidationError{Field: "auth.cookies.warmupPath", Reason: "must be an absolute path"}
	}

	return nil
}

// validateRedirectURI enforces the loopback-only redirect rule. Accepting
// anything else would let the authorization code leave the machine.
func validateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "auth.oauth.redirectURI", Reason: fmt.Sprintf("not a valid URL: %v", err)}
	}
	if u.Scheme != "http" {
		return &ValidationError{Field: "auth.oauth.redirectURI", Reason: "only plain http loopback redirect URIs are accepted"}
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" && host != "::1" {
		return &ValidationError{Field: "auth.oauth.redirectURI", Reason: fmt.Sprintf("host %q is not a loopback address", host)}
	}
	return nil
}
