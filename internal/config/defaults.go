package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for the session manager and upstream client.
const (
	DefaultHost               = "localhost"
	DefaultPort               = 8080
	DefaultMaxSessions        = 100
	DefaultSessionIdleTimeout = 30 * time.Minute
	DefaultRequestsPerMinute  = 120
	DefaultGitLabBaseURL      = "https://gitlab.com"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultScriptTimeout      = 10 * time.Second
	DefaultScriptCacheTTL     = 5 * time.Minute
	DefaultWarmupPath         = "/api/v4/user"
	DefaultRedirectURI        = "http://127.0.0.1:7171/callback"
)

// GetDefaultConfig returns the configuration used when no config file is
// present. Environment variables GITLAB_TOKEN and GITLAB_BASE_URL seed the
// GitLab section so the server is usable with zero configuration files.
func GetDefaultConfig() Config {
	cfg := Config{
		Server: ServerConfig{
			Host:               DefaultHost,
			Port:               DefaultPort,
			Transport:          MCPTransportStreamableHTTP,
			MaxSessions:        DefaultMaxSessions,
			SessionIdleTimeout: Duration(DefaultSessionIdleTimeout),
			RequestsPerMinute:  DefaultRequestsPerMinute,
		},
		GitLab: GitLabConfig{
			BaseURL:        DefaultGitLabBaseURL,
			RequestTimeout: Duration(DefaultRequestTimeout),
		},
		Auth: AuthConfig{
			OAuth: OAuthConfig{
				Scopes:      []string{"api"},
				RedirectURI: DefaultRedirectURI,
				TokenFile:   defaultTokenFilePath(),
				OpenBrowser: true,
			},
			TokenScript: TokenScriptConfig{
				Timeout:  Duration(DefaultScriptTimeout),
				CacheTTL: Duration(DefaultScriptCacheTTL),
			},
			Cookies: CookieConfig{
				WarmupPath: DefaultWarmupPath,
			},
		},
	}

	if v := os.Getenv("GITLAB_TOKEN"); v != "" {
		cfg.GitLab.Token = v
	}
	if v := os.Getenv("GITLAB_BASE_URL"); v != "" {
		cfg.GitLab.BaseURL = v
	}

	return cfg
}

const userConfigDir = ".config/gitlab-mcp"

// defaultTokenFilePath returns the default OAuth token location under the
// user config directory. Falls back to a relative path when the home
// directory cannot be determined.
func defaultTokenFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(userConfigDir, "oauth_token.json")
	}
	return filepath.Join(homeDir, userConfigDir, "oauth_token.json")
}

// GetDefaultConfigPath returns the directory searched for config.yaml when
// no explicit path is given.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return userConfigDir
	}
	return filepath.Join(homeDir, userConfigDir)
}
