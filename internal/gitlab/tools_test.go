package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

// fakeGitLab serves a minimal slice of the v4 API and records the auth
// headers it saw.
func fakeGitLab(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var seen http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/projects/group%2Fproj") || strings.HasSuffix(r.URL.Path, "/projects/group/proj"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": 7, "path_with_namespace": "group/proj",
			})
		case strings.Contains(r.URL.Path, "/issues"):
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": 101, "iid": 1, "title": "first issue"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &seen
}

func TestHandleGetProject(t *testing.T) {
	ts, seen := fakeGitLab(t)
	tools := NewTools(NewClientFactory(ts.URL, 5*time.Second, nil), 0)

	ctx := creds.WithSessionAuth(context.Background(), creds.SessionAuth{
		Token:   "bearer-token",
		BaseURL: ts.URL,
	})

	result, err := tools.handleGetProject(ctx, newCallRequest(map[string]interface{}{
		"project": "group/proj",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "group/proj")
	assert.Equal(t, "Bearer bearer-token", seen.Get("Authorization"))
}

func TestHandleGetProject_PrivateTokenHeader(t *testing.T) {
	ts, seen := fakeGitLab(t)
	tools := NewTools(NewClientFactory(ts.URL, 5*time.Second, nil), 0)

	ctx := creds.WithSessionAuth(context.Background(), creds.SessionAuth{
		Token:        "glpat-secret",
		BaseURL:      ts.URL,
		SourceHeader: creds.HeaderPrivateToken,
	})

	result, err := tools.handleGetProject(ctx, newCallRequest(map[string]interface{}{
		"project": "group/proj",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "glpat-secret", seen.Get("Private-Token"))
}

func TestHandleGetProject_NoCredentials(t *testing.T) {
	ts, _ := fakeGitLab(t)
	tools := NewTools(NewClientFactory(ts.URL, 5*time.Second, nil), 0)

	result, err := tools.handleGetProject(context.Background(), newCallRequest(map[string]interface{}{
		"project": "group/proj",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListProjectIssues(t *testing.T) {
	ts, _ := fakeGitLab(t)
	tools := NewTools(NewClientFactory(ts.URL, 5*time.Second, nil), 0)

	ctx := creds.WithSessionAuth(context.Background(), creds.SessionAuth{
		Token:   "tok",
		BaseURL: ts.URL,
	})

	result, err := tools.handleListProjectIssues(ctx, newCallRequest(map[string]interface{}{
		"project": "group/proj",
		"state":   "opened",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "first issue")
}

func TestRenderTruncatesAtCeiling(t *testing.T) {
	tools := NewTools(NewClientFactory("https://gitlab.com", time.Second, nil), 64)

	big := map[string]string{"payload": strings.Repeat("x", 1024)}
	result, err := tools.render(big)
	require.NoError(t, err)

	text := resultText(t, result)
	assert.True(t, strings.HasSuffix(text, truncationMarker))
	assert.LessOrEqual(t, len(text), 64+len(truncationMarker))
}

func TestArgumentHelpers(t *testing.T) {
	req := newCallRequest(map[string]interface{}{
		"page":   float64(3),
		"labels": " bug, backend ,,",
	})

	assert.Equal(t, 3, intArg(req, "page", 1))
	assert.Equal(t, 20, intArg(req, "per_page", 20))

	_, err := requireIntArg(req, "issue_iid")
	assert.Error(t, err)

	labels := labelOptions(req)
	require.NotNil(t, labels)
	assert.Equal(t, []string{"bug", "backend"}, []string(*labels))
}
