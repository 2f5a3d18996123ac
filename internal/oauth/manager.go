package oauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/config"
	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"
	pkgoauth "github.com/mcpland/gitlab-mcp-sub000/pkg/oauth"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// CallbackTimeout is the ceiling on waiting for the loopback callback.
const CallbackTimeout = 180 * time.Second

// Manager drives token acquisition against a GitLab instance. Resolution
// order per request: stored valid token, refresh-token grant, interactive
// authorization-code flow with PKCE.
type Manager struct {
	cfg      config.OAuthConfig
	endpoint oauth2.Config
	store    *TokenStore

	group singleflight.Group

	// openBrowser is swappable so tests never spawn a real browser.
	openBrowser func(url string) error
}

// NewManager creates a manager for the GitLab instance at baseURL. The
// authorize and token endpoints are derived from the base URL the way
// GitLab exposes them.
func NewManager(cfg config.OAuthConfig, baseURL string) (*Manager, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("oauth is not configured: clientID is empty")
	}

	store, err := NewTokenStore(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(baseURL, "/")
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"api"}
	}

	return &Manager{
		cfg:   cfg,
		store: store,
		endpoint: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/oauth/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
		openBrowser: OpenBrowser,
	}, nil
}

// GetAccessToken returns a usable access token, acquiring one if needed.
// Concurrent callers collapse into a single resolution attempt; nobody
// triggers a second refresh or a second interactive flow while one is in
// flight.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	v, err, _ := m.group.Do("token", func() (interface{}, error) {
		return m.resolveToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// resolveToken walks the stored / refresh / interactive ladder.
func (m *Manager) resolveToken(ctx context.Context) (string, error) {
	stored, err := m.store.Load()
	if err != nil {
		logging.Warn("OAuthManager", "Stored token unreadable, starting fresh: %v", err)
	}

	now := time.Now()
	if stored.ValidAt(now) {
		return stored.AccessToken, nil
	}

	if stored != nil && stored.RefreshToken != "" {
		token, err := m.refresh(ctx, stored.RefreshToken)
		if err == nil {
			return token.AccessToken, nil
		}
		logging.Info("OAuthManager", "Refresh-token grant failed, escalating to interactive flow: %v", err)
	}

	token, err := m.interactiveFlow(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// refresh exchanges a refresh token for a new access token and persists
// the result.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := m.endpoint.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh-token grant failed: %w", err)
	}

	if err := m.store.Save(token); err != nil {
		return nil, err
	}
	logging.Info("OAuthManager", "Access token refreshed, expires %s", token.Expiry.Format(time.RFC3339))
	return token, nil
}

// interactiveFlow runs the full authorization-code exchange: loopback
// listener, PKCE pair, browser hand-off, callback wait, code exchange.
func (m *Manager) interactiveFlow(ctx context.Context) (*oauth2.Token, error) {
	cb, err := NewCallbackServer(m.cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	flowCtx, cancel := context.WithTimeout(ctx, CallbackTimeout)
	defer cancel()

	if err := cb.Start(flowCtx); err != nil {
		return nil, err
	}
	defer cb.Stop()

	pkce, err := pkgoauth.GeneratePKCE()
	if err != nil {
		return nil, err
	}
	state, err := pkgoauth.GenerateState()
	if err != nil {
		return nil, err
	}

	authURL := m.endpoint.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.CodeChallengeMethod),
	)

	logging.Info("OAuthManager", "Authorization required, open this URL in your browser: %s", authURL)
	if m.cfg.OpenBrowser {
		if err := m.openBrowser(authURL); err != nil {
			logging.Warn("OAuthManager", "Could not open browser automatically: %v", err)
		}
	}

	result, err := cb.WaitForCallback(flowCtx)
	if err != nil {
		if flowCtx.Err() != nil && ctx.Err() == nil {
			return nil, &CallbackTimeoutError{Timeout: CallbackTimeout}
		}
		return nil, err
	}

	if result.IsError() {
		return nil, &AuthorizationError{Code: result.Error, Description: result.ErrorDescription}
	}
	if result.State != state {
		return nil, &StateMismatchError{}
	}
	if result.Code == "" {
		return nil, &AuthorizationError{Code: "invalid_callback", Description: "no authorization code in callback"}
	}

	token, err := m.endpoint.Exchange(ctx, result.Code,
		oauth2.SetAuthURLParam("code_verifier", pkce.CodeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange failed: %w", err)
	}

	if err := m.store.Save(token); err != nil {
		return nil, err
	}
	logging.Info("OAuthManager", "Interactive authentication complete, token stored at %s", m.store.Path())
	return token, nil
}

// ClearToken removes the persisted token so the next request starts over.
func (m *Manager) ClearToken() error {
	return m.store.Delete()
}
