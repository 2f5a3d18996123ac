package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/config"
	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
	"github.com/mcpland/gitlab-mcp-sub000/internal/gitlab"
	"github.com/mcpland/gitlab-mcp-sub000/internal/oauth"
	"github.com/mcpland/gitlab-mcp-sub000/internal/server"
	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory path.
// When empty, the default user configuration directory is used.
var serveConfigPath string

// serveTransport overrides the configured MCP transport
// (streamable-http, sse, or stdio).
var serveTransport string

// servePort overrides the configured listen port for the HTTP transports.
var servePort int

// serveCmd starts the MCP server and blocks until the process receives
// SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GitLab MCP server",
	Long: `Starts the MCP server on the configured transport and serves GitLab
tools to connected clients.

Sessions are admitted against a configurable capacity limit, rate limited
per session, and swept after the configured idle timeout. Credentials for
upstream GitLab calls are resolved per call from the configured sources:
per-request headers, OAuth (authorization code + PKCE), a token script, a
token file, browser cookies, or the static token.

Configuration is read from config.yaml in the configuration directory
(default: ~/.config/gitlab-mcp, override with --config-path). Missing
configuration falls back to defaults plus the GITLAB_TOKEN and
GITLAB_BASE_URL environment variables.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	configPath := serveConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serveTransport != "" {
		cfg.Server.Transport = serveTransport
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := logging.LevelInfo
	if serveDebug {
		logLevel = logging.LevelDebug
	}
	// Stdout belongs to the protocol on the stdio transport; logs always
	// go to stderr.
	logging.Init(logLevel, os.Stderr)

	var tokenProvider creds.TokenProvider
	if cfg.Auth.OAuth.Enabled() {
		oauthMgr, err := oauth.NewManager(cfg.Auth.OAuth, cfg.GitLab.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize OAuth: %w", err)
		}
		tokenProvider = oauthMgr
	}

	resolver, err := creds.NewResolver(cfg, tokenProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize credential resolution: %w", err)
	}

	srv := server.NewServer(cfg, resolver)
	gitlab.NewTools(
		gitlab.NewClientFactory(cfg.GitLab.BaseURL, cfg.GitLab.RequestTimeout.Duration(), resolver),
		0,
	).Register(srv.MCP())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	<-ctx.Done()
	logging.Info("Serve", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Override the configured transport (streamable-http, sse, stdio)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the configured listen port")
}
