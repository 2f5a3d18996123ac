package cmd

import (
	"errors"
	"os"

	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
	"github.com/mcpland/gitlab-mcp-sub000/internal/oauth"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands. These follow common conventions so the
// server can be supervised from scripts.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates a credential is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// rootCmd represents the base command for the gitlab-mcp application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gitlab-mcp",
	Short: "MCP server exposing GitLab to AI assistants",
	Long: `gitlab-mcp runs a Model Context Protocol server in front of a GitLab
instance. It manages concurrent client sessions over streamable HTTP,
SSE, or stdio transports and resolves GitLab credentials per call from
a configurable chain of sources (per-request headers, OAuth, token
scripts, token files, browser cookies).`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles subcommands and flags.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gitlab-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var unavailable *creds.CredentialUnavailableError
	if errors.As(err, &unavailable) {
		return ExitCodeAuthRequired
	}

	var authErr *oauth.AuthorizationError
	if errors.As(err, &authErr) {
		return ExitCodeAuthFailed
	}
	var timeout *oauth.CallbackTimeoutError
	if errors.As(err, &timeout) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
