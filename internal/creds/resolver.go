package creds

import (
	"context"
	"net/http"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/config"
	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"
)

// TokenProvider yields an OAuth access token, refreshing or escalating to
// the interactive flow as needed. Implemented by the oauth package.
type TokenProvider interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// Resolver is the credential resolution pipeline. Given an outgoing call
// it produces the effective SessionAuth, consulting sources in priority
// order: per-request override, TTL cache, OAuth, secret script, secret
// file, statically configured token.
type Resolver struct {
	defaultToken string
	baseURL      string
	cacheTTL     time.Duration

	cache   *Cache
	oauth   TokenProvider  // nil when OAuth is not configured
	script  *ScriptSource  // nil when no script is configured
	file    *FileSource    // nil when no file is configured
	cookies *CookieRuntime // nil when cookies are not configured

	bypassHeaders bool

	// now is replaceable in tests.
	now func() time.Time
}

// NewResolver builds the pipeline from configuration. oauth may be nil
// when the OAuth source is disabled.
func NewResolver(cfg config.Config, oauth TokenProvider) (*Resolver, error) {
	r := &Resolver{
		defaultToken:  cfg.GitLab.Token,
		baseURL:       cfg.GitLab.BaseURL,
		cacheTTL:      cfg.Auth.TokenScript.CacheTTL.Duration(),
		cache:         &Cache{},
		bypassHeaders: cfg.Auth.Cookies.BypassHeaders,
		now:           time.Now,
	}

	if cfg.Auth.OAuth.Enabled() {
		r.oauth = oauth
	}
	if cfg.Auth.TokenScript.Enabled() {
		r.script = NewScriptSource(cfg.Auth.TokenScript.Command, cfg.Auth.TokenScript.Timeout.Duration())
	}
	if cfg.Auth.TokenFile.Enabled() {
		r.file = NewFileSource(cfg.Auth.TokenFile.Path, !cfg.Auth.TokenFile.AllowLooserPermissions)
	}
	if cfg.Auth.Cookies.Enabled() {
		rt, err := NewCookieRuntime(cfg.Auth.Cookies.JarPath, cfg.Auth.Cookies.WarmupPath, cfg.GitLab.RequestTimeout.Duration())
		if err != nil {
			return nil, err
		}
		r.cookies = rt
	}

	return r, nil
}

// Resolve produces the effective credential for one outbound call. The
// override is the most recent per-request credential observed on the
// session; when it carries a token it wins outright. Cookie maintenance
// (jar freshness, warm-up) runs regardless of which branch resolves the
// token, because cookie state applies to the transport, not the bearer.
func (r *Resolver) Resolve(ctx context.Context, override SessionAuth) (SessionAuth, error) {
	root := r.baseURL
	if override.BaseURL != "" {
		root = override.BaseURL
	}

	r.maintainCookies(ctx, root)

	if override.HasToken() {
		return SessionAuth{
			Token:        override.Token,
			BaseURL:      root,
			SourceHeader: override.SourceHeader,
			ResolvedAt:   r.now(),
		}, nil
	}

	if secret, ok := r.cache.Get(r.now()); ok {
		return SessionAuth{Token: secret, BaseURL: root, ResolvedAt: r.now()}, nil
	}

	var lastErr error

	if r.oauth != nil {
		token, err := r.oauth.GetAccessToken(ctx)
		if err == nil {
			return SessionAuth{Token: token, BaseURL: root, ResolvedAt: r.now()}, nil
		}
		lastErr = err
		logging.Warn("CredentialResolver", "OAuth source failed: %v", err)
	}

	if r.script != nil {
		secret, err := r.script.Resolve(ctx)
		if err == nil {
			r.cache.Set(secret, r.cacheTTL, r.now())
			return SessionAuth{Token: secret, BaseURL: root, ResolvedAt: r.now()}, nil
		}
		lastErr = err
		logging.Warn("CredentialResolver", "Script source failed: %v", err)
	}

	if r.file != nil {
		secret, err := r.file.Resolve()
		if err == nil {
			r.cache.Set(secret, r.cacheTTL, r.now())
			return SessionAuth{Token: secret, BaseURL: root, ResolvedAt: r.now()}, nil
		}
		lastErr = err
		logging.Warn("CredentialResolver", "File source failed: %v", err)
	}

	if r.defaultToken != "" {
		return SessionAuth{Token: r.defaultToken, BaseURL: root, ResolvedAt: r.now()}, nil
	}

	// With cookie sessions active an empty bearer token is a valid outcome:
	// the jar itself authenticates the transport.
	if r.cookies != nil && lastErr == nil {
		return SessionAuth{BaseURL: root, ResolvedAt: r.now()}, nil
	}

	return SessionAuth{}, &CredentialUnavailableError{LastErr: lastErr}
}

// maintainCookies keeps the jar fresh and the target root warmed. Both
// steps are best-effort and never block the real call.
func (r *Resolver) maintainCookies(ctx context.Context, root string) {
	if r.cookies == nil {
		return
	}
	if err := r.cookies.EnsureFresh(ctx); err != nil {
		logging.Warn("CredentialResolver", "Cookie jar refresh failed: %v", err)
		return
	}
	r.cookies.WarmRoot(ctx, root)
}

// HTTPClient returns the cookie-carrying HTTP client when cookie sessions
// are active, nil otherwise. The remote-API client uses it so cookies ride
// along on real calls.
func (r *Resolver) HTTPClient() *http.Client {
	if r.cookies == nil {
		return nil
	}
	return r.cookies.Client()
}

// Browser-like compatibility headers applied in bypass mode.
const (
	compatUserAgent    = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	compatLocale       = "en-US,en;q=0.9"
	compatCacheControl = "no-cache"
)

// ApplyCompatHeaders sets browser-like headers when bypass mode is on.
// Headers the caller already set are never overwritten.
func (r *Resolver) ApplyCompatHeaders(h http.Header) {
	if !r.bypassHeaders {
		return
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", compatUserAgent)
	}
	if h.Get("Accept-Language") == "" {
		h.Set("Accept-Language", compatLocale)
	}
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", compatCacheControl)
	}
}

// Close releases pipeline resources (the cookie watcher).
func (r *Resolver) Close() error {
	if r.cookies != nil {
		return r.cookies.Close()
	}
	return nil
}
