package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MCPTransportStreamableHTTP is the streamable HTTP transport.
	MCPTransportStreamableHTTP = "streamable-http"
	// MCPTransportSSE is the Server-Sent Events transport.
	MCPTransportSSE = "sse"
	// MCPTransportStdio is the standard I/O transport.
	MCPTransportStdio = "stdio"
)

// Config is the top-level configuration structure for the server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	GitLab GitLabConfig `yaml:"gitlab"`
	Auth   AuthConfig   `yaml:"auth"`
}

// ServerConfig defines the MCP transport surface and the session limits
// enforced by the session manager.
type ServerConfig struct {
	Host      string `yaml:"host,omitempty"`      // Host to bind to (default: localhost)
	Port      int    `yaml:"port,omitempty"`      // Port for the HTTP transports (default: 8080)
	Transport string `yaml:"transport,omitempty"` // Transport to use (default: streamable-http)

	// MaxSessions caps the number of concurrent sessions across all
	// transports. New connections beyond the cap are rejected before any
	// transport resource is allocated.
	MaxSessions int `yaml:"maxSessions,omitempty"`

	// SessionIdleTimeout is how long a session may sit without activity
	// before the idle sweep closes it.
	SessionIdleTimeout Duration `yaml:"sessionIdleTimeout,omitempty"`

	// RequestsPerMinute is the per-session request ceiling within one
	// rate-limit window.
	RequestsPerMinute int `yaml:"requestsPerMinute,omitempty"`
}

// GitLabConfig describes the upstream GitLab instance.
type GitLabConfig struct {
	BaseURL string `yaml:"baseURL,omitempty"` // GitLab instance URL (default: https://gitlab.com)

	// Token is the statically configured personal access token. It is the
	// lowest-priority credential source; every other source in the
	// resolution chain wins over it.
	Token string `yaml:"token,omitempty"`

	RequestTimeout Duration `yaml:"requestTimeout,omitempty"` // Timeout for upstream API calls
}

// AuthConfig groups the optional credential sources consulted by the
// resolution pipeline, in their priority order.
type AuthConfig struct {
	OAuth       OAuthConfig       `yaml:"oauth,omitempty"`
	TokenScript TokenScriptConfig `yaml:"tokenScript,omitempty"`
	TokenFile   TokenFileConfig   `yaml:"tokenFile,omitempty"`
	Cookies     CookieConfig      `yaml:"cookies,omitempty"`
}

// OAuthConfig configures the interactive authorization-code-with-PKCE flow.
// OAuth is considered enabled when ClientID is non-empty.
type OAuthConfig struct {
	ClientID     string   `yaml:"clientID,omitempty"`
	ClientSecret string   `yaml:"clientSecret,omitempty"` // Only for confidential clients
	Scopes       []string `yaml:"scopes,omitempty"`       // Default: [api]

	// RedirectURI must be a loopback HTTP URI; anything else is rejected
	// when the flow starts.
	RedirectURI string `yaml:"redirectURI,omitempty"`

	// TokenFile is where the obtained token is persisted (0600).
	TokenFile string `yaml:"tokenFile,omitempty"`

	// OpenBrowser controls whether the authorization URL is opened in the
	// user's browser automatically.
	OpenBrowser bool `yaml:"openBrowser,omitempty"`
}

// Enabled reports whether the OAuth source is configured.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != ""
}

// TokenScriptConfig configures an external command that prints a credential.
type TokenScriptConfig struct {
	Command  string   `yaml:"command,omitempty"`  // Shell command; empty disables the source
	Timeout  Duration `yaml:"timeout,omitempty"`  // Subprocess deadline (default: 10s)
	CacheTTL Duration `yaml:"cacheTTL,omitempty"` // How long a retrieved secret is reused (default: 5m)
}

// Enabled reports whether the script source is configured.
func (c TokenScriptConfig) Enabled() bool {
	return c.Command != ""
}

// TokenFileConfig configures a secret file credential source.
type TokenFileConfig struct {
	Path string `yaml:"path,omitempty"` // Empty disables the source

	// AllowLooserPermissions skips the group/other-readable permission
	// check. Off by default.
	AllowLooserPermissions bool `yaml:"allowLooserPermissions,omitempty"`
}

// Enabled reports whether the file source is configured.
func (c TokenFileConfig) Enabled() bool {
	return c.Path != ""
}

// CookieConfig configures browser-cookie based sessions.
type CookieConfig struct {
	JarPath string `yaml:"jarPath,omitempty"` // Netscape-format cookie file; empty disables cookies

	// WarmupPath is requested once per API root to establish server-side
	// session state before real cookie-authenticated calls go out.
	WarmupPath string `yaml:"warmupPath,omitempty"`

	// BypassHeaders enables browser-like compatibility headers on outgoing
	// requests (user agent, locale, cache-control).
	BypassHeaders bool `yaml:"bypassHeaders,omitempty"`
}

// Enabled reports whether cookie-based sessions are configured.
func (c CookieConfig) Enabled() bool {
	return c.JarPath != ""
}

// Duration wraps time.Duration so YAML values can be written in the usual
// "30s" / "5m" form.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
