package gitlab

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// APIError is the structured form of an upstream API failure. The status
// code lets callers tell auth failures apart from missing resources.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab api error (status %d): %s", e.StatusCode, e.Message)
}

// wrapAPIError converts a client-go response/error pair into an APIError.
func wrapAPIError(resp *gitlab.Response, err error) error {
	if err == nil {
		return nil
	}
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	return &APIError{StatusCode: status, Message: err.Error()}
}

// ClientFactory builds an upstream client for one call from the credentials
// resolved for that call.
type ClientFactory struct {
	defaultBaseURL string
	requestTimeout time.Duration

	// cookieClient carries the browser cookie jar when cookie sessions are
	// active; nil otherwise.
	cookieClient *http.Client

	// applyHeaders decorates outgoing requests (browser-compat headers in
	// cookie bypass mode). May be nil.
	applyHeaders func(http.Header)
}

// NewClientFactory creates a factory. resolver supplies the cookie-aware
// HTTP client and header decoration; it may be nil in tests.
func NewClientFactory(defaultBaseURL string, requestTimeout time.Duration, resolver *creds.Resolver) *ClientFactory {
	f := &ClientFactory{
		defaultBaseURL: defaultBaseURL,
		requestTimeout: requestTimeout,
	}
	if resolver != nil {
		f.cookieClient = resolver.HTTPClient()
		f.applyHeaders = resolver.ApplyCompatHeaders
	}
	return f
}

// compatTransport injects the factory's extra headers into every request.
type compatTransport struct {
	base         http.RoundTripper
	applyHeaders func(http.Header)
}

func (t *compatTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.applyHeaders(req.Header)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// httpClient assembles the HTTP client used by one upstream client: the
// cookie jar when active, the configured timeout, and header decoration.
func (f *ClientFactory) httpClient() *http.Client {
	client := &http.Client{Timeout: f.requestTimeout}
	if f.cookieClient != nil {
		client.Jar = f.cookieClient.Jar
	}
	if f.applyHeaders != nil {
		client.Transport = &compatTransport{applyHeaders: f.applyHeaders}
	}
	return client
}

// ClientFor builds a client authenticated as the given call's credentials.
// A token that arrived via the Private-Token header keeps that auth scheme;
// everything else is sent as a bearer token.
func (f *ClientFactory) ClientFor(auth creds.SessionAuth) (*gitlab.Client, error) {
	baseURL := auth.BaseURL
	if baseURL == "" {
		baseURL = f.defaultBaseURL
	}

	opts := []gitlab.ClientOptionFunc{
		gitlab.WithBaseURL(baseURL),
		gitlab.WithHTTPClient(f.httpClient()),
	}

	var client *gitlab.Client
	var err error
	if auth.SourceHeader == creds.HeaderPrivateToken {
		client, err = gitlab.NewClient(auth.Token, opts...)
	} else {
		client, err = gitlab.NewOAuthClient(auth.Token, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client for %s: %w", baseURL, err)
	}
	return client, nil
}
