package server

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
)

func TestExtractAuthHeaders(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantToken  string
		wantSource string
		wantFound  bool
	}{
		{
			name:       "bearer token",
			headers:    map[string]string{"Authorization": "Bearer glpat-abc"},
			wantToken:  "glpat-abc",
			wantSource: creds.HeaderAuthorization,
			wantFound:  true,
		},
		{
			name:       "private token",
			headers:    map[string]string{"Private-Token": "glpat-xyz"},
			wantToken:  "glpat-xyz",
			wantSource: creds.HeaderPrivateToken,
			wantFound:  true,
		},
		{
			name:       "authorization wins over private token",
			headers:    map[string]string{"Authorization": "Bearer a", "Private-Token": "b"},
			wantToken:  "a",
			wantSource: creds.HeaderAuthorization,
			wantFound:  true,
		},
		{
			name:      "no auth headers",
			headers:   map[string]string{},
			wantFound: false,
		},
		{
			name:      "empty bearer ignored",
			headers:   map[string]string{"Authorization": "Bearer "},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, "http://localhost/mcp", nil)
			if err != nil {
				t.Fatal(err)
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			ctx := extractAuthHeaders(context.Background(), req)
			auth, found := authOverrideFromContext(ctx)
			if found != tt.wantFound {
				t.Fatalf("override found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			if auth.Token != tt.wantToken || auth.SourceHeader != tt.wantSource {
				t.Errorf("override = %+v, want token %q from %s", auth, tt.wantToken, tt.wantSource)
			}
		})
	}
}

func TestErrorReasonsAreStable(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{&CapacityExceededError{Limit: 10, Current: 10}, "capacity_exceeded"},
		{&RateLimitedError{SessionID: "s", Limit: 60, Window: DefaultRateWindow}, "rate_limited"},
		{&SessionNotFoundError{SessionID: "s"}, "unknown_session"},
		{&NotInitializedError{}, "not_initialized"},
	}

	for _, tt := range tests {
		if !strings.HasPrefix(tt.err.Error(), tt.reason) {
			t.Errorf("%T message %q does not start with stable reason %q", tt.err, tt.err.Error(), tt.reason)
		}
	}
}

func TestSessionIDsTruncatedInErrors(t *testing.T) {
	long := strings.Repeat("a", 64)
	err := &SessionNotFoundError{SessionID: long}
	if strings.Contains(err.Error(), long) {
		t.Error("full session ID leaked into an error message")
	}
}
