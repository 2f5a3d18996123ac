package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Transport != MCPTransportStreamableHTTP {
		t.Errorf("Transport = %q, want %q", cfg.Server.Transport, MCPTransportStreamableHTTP)
	}
	if cfg.Server.MaxSessions != DefaultMaxSessions {
		t.Errorf("MaxSessions = %d, want %d", cfg.Server.MaxSessions, DefaultMaxSessions)
	}
	if cfg.GitLab.BaseURL != DefaultGitLabBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.GitLab.BaseURL, DefaultGitLabBaseURL)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  port: 9090
  transport: sse
  maxSessions: 5
  sessionIdleTimeout: 10m
  requestsPerMinute: 30
gitlab:
  baseURL: https://gitlab.example.com
  token: glpat-test
auth:
  tokenScript:
    command: "pass show gitlab"
    timeout: 3s
    cacheTTL: 1m
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Transport != MCPTransportSSE {
		t.Errorf("Transport = %q, want sse", cfg.Server.Transport)
	}
	if cfg.Server.SessionIdleTimeout.Duration() != 10*time.Minute {
		t.Errorf("SessionIdleTimeout = %v, want 10m", cfg.Server.SessionIdleTimeout.Duration())
	}
	if cfg.GitLab.Token != "glpat-test" {
		t.Errorf("Token = %q, want glpat-test", cfg.GitLab.Token)
	}
	if !cfg.Auth.TokenScript.Enabled() {
		t.Error("expected token script source to be enabled")
	}
	if cfg.Auth.TokenScript.Timeout.Duration() != 3*time.Second {
		t.Errorf("script timeout = %v, want 3s", cfg.Auth.TokenScript.Timeout.Duration())
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"bad transport", func(c *Config) { c.Server.Transport = "websocket" }, true},
		{"zero max sessions", func(c *Config) { c.Server.MaxSessions = 0 }, true},
		{"negative rpm", func(c *Config) { c.Server.RequestsPerMinute = -1 }, true},
		{"bad base URL", func(c *Config) { c.GitLab.BaseURL = "not a url" }, true},
		{"oauth https redirect rejected", func(c *Config) {
			c.Auth.OAuth.ClientID = "abc"
			c.Auth.OAuth.RedirectURI = "https://example.com/callback"
		}, true},
		{"oauth non-loopback rejected", func(c *Config) {
			c.Auth.OAuth.ClientID = "abc"
			c.Auth.OAuth.RedirectURI = "http://example.com/callback"
		}, true},
		{"oauth loopback accepted", func(c *Config) {
			c.Auth.OAuth.ClientID = "abc"
			c.Auth.OAuth.RedirectURI = "http://127.0.0.1:7171/callback"
		}, false},
		{"relative warmup path", func(c *Config) {
			c.Auth.Cookies.JarPath = "/tmp/cookies.txt"
			c.Auth.Cookies.WarmupPath = "api/v4/user"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
