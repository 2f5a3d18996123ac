package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/internal/config"
	"github.com/mcpland/gitlab-mcp-sub000/internal/creds"
	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServerName and ServerVersion identify this server in the MCP handshake.
const (
	ServerName    = "gitlab-mcp"
	ServerVersion = "1.0.0"
)

// Server wires the MCP server, the configured transport, the session
// manager and the credential pipeline together.
type Server struct {
	cfg      config.Config
	manager  *Manager
	resolver *creds.Resolver

	mcp        *mcpserver.MCPServer
	sseServer  *mcpserver.SSEServer
	streamable *mcpserver.StreamableHTTPServer
	stdio      *mcpserver.StdioServer

	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewServer builds the MCP server with session hooks and the dispatch
// middleware installed. Tool registration happens through MCP() before
// Start.
func NewServer(cfg config.Config, resolver *creds.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		manager: NewManager(
			cfg.Server.MaxSessions,
			cfg.Server.SessionIdleTimeout.Duration(),
			cfg.Server.RequestsPerMinute,
			resolver,
		),
	}

	hooks := &mcpserver.Hooks{}
	hooks.AddOnRequestInitialization(s.onRequestInitialization)
	hooks.AddOnRegisterSession(s.onRegisterSession)
	hooks.AddOnUnregisterSession(s.onUnregisterSession)

	s.mcp = mcpserver.NewMCPServer(
		ServerName,
		ServerVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithHooks(hooks),
		mcpserver.WithToolHandlerMiddleware(s.dispatchMiddleware),
	)

	s.registerHealthTool()
	return s
}

// MCP exposes the underlying MCP server for tool registration.
func (s *Server) MCP() *mcpserver.MCPServer {
	return s.mcp
}

// Manager exposes the session manager for introspection.
func (s *Server) Manager() *Manager {
	return s.manager
}

// onRequestInitialization gates new connections. Rejecting here means no
// session or transport resource is ever allocated for the caller.
func (s *Server) onRequestInitialization(ctx context.Context, id any, message any) error {
	if err := s.manager.CheckCapacity(); err != nil {
		return err
	}
	return nil
}

// onRegisterSession adopts a transport-created session into the manager.
// SSE sessions carry their id from creation; streamable sessions pass
// through the pending set and activate under the handshake id.
func (s *Server) onRegisterSession(ctx context.Context, session mcpserver.ClientSession) {
	sessionID := session.SessionID()

	if s.cfg.Server.Transport == config.MCPTransportSSE {
		if err := s.manager.RegisterEventStream(sessionID); err != nil {
			logging.Warn("Server", "Event stream %s rejected: %v", logging.TruncateSessionID(sessionID), err)
		}
		return
	}

	pending, err := s.manager.CreatePending()
	if err != nil {
		logging.Warn("Server", "Session %s rejected: %v", logging.TruncateSessionID(sessionID), err)
		return
	}
	if sessionID == "" {
		// Handshake never produced an id; the pending entry must not leak.
		s.manager.FailPending(pending)
		return
	}
	if err := s.manager.Activate(pending, sessionID); err != nil {
		s.manager.FailPending(pending)
		logging.Error("Server", err, "Failed to activate session %s", logging.TruncateSessionID(sessionID))
	}
}

// onUnregisterSession closes the manager's view of a departed session.
func (s *Server) onUnregisterSession(ctx context.Context, session mcpserver.ClientSession) {
	sessionID := session.SessionID()
	if s.cfg.Server.Transport == config.MCPTransportSSE {
		s.manager.CloseEventStream(sessionID, CloseReasonClientGone)
		return
	}
	s.manager.CloseSession(sessionID, CloseReasonClientGone)
}

// dispatchMiddleware routes every tool call through the session manager:
// rate limit, FIFO queue, credential resolution, then the real handler.
// Manager rejections surface as tool error results carrying their stable
// reason string.
func (s *Server) dispatchMiddleware(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clientSession := mcpserver.ClientSessionFromContext(ctx)
		if clientSession == nil {
			return mcp.NewToolResultError((&NotInitializedError{}).Error()), nil
		}
		sessionID := clientSession.SessionID()
		override, _ := authOverrideFromContext(ctx)

		// SSE and stdio are not queue-ordered: SSE is push-oriented with
		// no request serialization, and stdio is a single implicit session.
		if s.cfg.Server.Transport != config.MCPTransportStreamableHTTP {
			if s.cfg.Server.Transport == config.MCPTransportSSE {
				s.manager.TouchEventStream(sessionID)
			}
			auth, err := s.resolver.Resolve(ctx, override)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return next(creds.WithSessionAuth(ctx, auth), request)
		}

		if sess, err := s.manager.Get(sessionID); err == nil && override.HasToken() {
			sess.SetAuthOverride(override)
		}

		var result *mcp.CallToolResult
		err := s.manager.Dispatch(ctx, sessionID, func(workCtx context.Context) error {
			var handlerErr error
			result, handlerErr = next(workCtx, request)
			return handlerErr
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return result, nil
	}
}

// registerHealthTool exposes the manager's pool counts as a read-only tool.
func (s *Server) registerHealthTool() {
	s.mcp.AddTool(mcp.NewTool("session_health",
		mcp.WithDescription("Report active, pending and event-stream session counts and whether capacity is reached"),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.MarshalIndent(s.manager.Health(), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize health: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

// Start launches the configured transport. Non-blocking; transport errors
// after startup are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("server already started")
	}
	s.ctx, s.cancelFunc = context.WithCancel(ctx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	switch s.cfg.Server.Transport {
	case config.MCPTransportSSE:
		logging.Info("Server", "Starting MCP server with SSE transport on %s", addr)
		baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
		s.sseServer = mcpserver.NewSSEServer(
			s.mcp,
			mcpserver.WithBaseURL(baseURL),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
			mcpserver.WithKeepAlive(true),
			mcpserver.WithKeepAliveInterval(30*time.Second),
			mcpserver.WithSSEContextFunc(extractAuthHeaders),
		)
		sseServer := s.sseServer
		go func() {
			if err := sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Server", err, "SSE server error")
			}
		}()

	case config.MCPTransportStdio:
		logging.Info("Server", "Starting MCP server with stdio transport")
		s.stdio = mcpserver.NewStdioServer(s.mcp)
		stdioServer := s.stdio
		serverCtx := s.ctx
		go func() {
			if err := stdioServer.Listen(serverCtx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Server", err, "Stdio server error")
			}
		}()

	case config.MCPTransportStreamableHTTP:
		fallthrough
	default:
		logging.Info("Server", "Starting MCP server with streamable-http transport on %s", addr)
		s.streamable = mcpserver.NewStreamableHTTPServer(
			s.mcp,
			mcpserver.WithHTTPContextFunc(extractAuthHeaders),
		)
		streamableServer := s.streamable
		go func() {
			if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Server", err, "Streamable HTTP server error")
			}
		}()
	}

	return nil
}

// Stop shuts down the transport, then the session manager, then the
// credential pipeline. Transport shutdown is bounded.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancelFunc := s.cancelFunc
	sseServer := s.sseServer
	streamableServer := s.streamable
	s.mu.Unlock()

	logging.Info("Server", "Stopping MCP server")

	if cancelFunc != nil {
		cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if sseServer != nil {
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server", err, "Error shutting down SSE server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server", err, "Error shutting down streamable HTTP server")
		}
	}
	// The stdio server stops on context cancellation.

	s.manager.Shutdown()
	if s.resolver != nil {
		if err := s.resolver.Close(); err != nil {
			logging.Warn("Server", "Error closing credential pipeline: %v", err)
		}
	}
	return nil
}

type authOverrideKey struct{}

// extractAuthHeaders lifts per-request credentials from the inbound HTTP
// request into the context. Authorization (Bearer) wins over Private-Token
// when both are present.
func extractAuthHeaders(ctx context.Context, r *http.Request) context.Context {
	if raw := r.Header.Get(creds.HeaderAuthorization); raw != "" {
		token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
		if token != "" {
			return context.WithValue(ctx, authOverrideKey{}, creds.SessionAuth{
				Token:        token,
				SourceHeader: creds.HeaderAuthorization,
				ResolvedAt:   time.Now(),
			})
		}
	}
	if token := r.Header.Get(creds.HeaderPrivateToken); token != "" {
		return context.WithValue(ctx, authOverrideKey{}, creds.SessionAuth{
			Token:        token,
			SourceHeader: creds.HeaderPrivateToken,
			ResolvedAt:   time.Now(),
		})
	}
	return ctx
}

// authOverrideFromContext returns the per-request credential extracted from
// the inbound HTTP request, if any.
func authOverrideFromContext(ctx context.Context) (creds.SessionAuth, bool) {
	auth, ok := ctx.Value(authOverrideKey{}).(creds.SessionAuth)
	return auth, ok
}
