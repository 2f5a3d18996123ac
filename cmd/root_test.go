package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
	"github.com/mcpland/gitlab-mcp-sub000/internal/oauth"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "credential unavailable maps to auth required",
			err:  &creds.CredentialUnavailableError{},
			want: ExitCodeAuthRequired,
		},
		{
			name: "wrapped credential unavailable maps to auth required",
			err:  fmt.Errorf("serve: %w", &creds.CredentialUnavailableError{LastErr: errors.New("script failed")}),
			want: ExitCodeAuthRequired,
		},
		{
			name: "authorization error maps to auth failed",
			err:  &oauth.AuthorizationError{Code: "access_denied"},
			want: ExitCodeAuthFailed,
		},
		{
			name: "callback timeout maps to auth failed",
			err:  &oauth.CallbackTimeoutError{Timeout: 180 * time.Second},
			want: ExitCodeAuthFailed,
		},
		{
			name: "generic error maps to general failure",
			err:  errors.New("boom"),
			want: ExitCodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestVersionCommandOutput(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("")

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	if got := out.String(); !strings.Contains(got, "gitlab-mcp version 1.2.3") {
		t.Errorf("version output = %q, want it to contain %q", got, "gitlab-mcp version 1.2.3")
	}
}
