package gitlab

import (
	"testing"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFor_DefaultBaseURL(t *testing.T) {
	f := NewClientFactory("https://gitlab.example.com", 5*time.Second, nil)

	client, err := f.ClientFor(creds.SessionAuth{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "gitlab.example.com", client.BaseURL().Host)
	assert.Contains(t, client.BaseURL().Path, "/api/v4")
}

func TestClientFor_PerCallBaseURLOverride(t *testing.T) {
	f := NewClientFactory("https://gitlab.example.com", 5*time.Second, nil)

	client, err := f.ClientFor(creds.SessionAuth{
		Token:   "tok",
		BaseURL: "https://self-hosted.example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "self-hosted.example.org", client.BaseURL().Host)
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "404 Project Not Found"}
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "Project Not Found")
}
