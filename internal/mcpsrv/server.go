// Package mcpsrv exposes the prompt library to AI-agent clients over the
// MCP streamable-HTTP transport. Authentication happens in the HTTP
// middleware wrapping the transport; tool handlers receive the caller's
// identity through the per-call AuthInfo and never re-authenticate.
package mcpsrv

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/promptvault/promptvault/internal/prompts"
)

const (
	serverName    = "promptvault"
	serverVersion = "1.0.0"

	// EndpointPath is where the streamable HTTP transport is mounted.
	EndpointPath = "/mcp"
)

// Server wires the prompt store into an MCP server.
type Server struct {
	mcp    *server.MCPServer
	store  prompts.Store
	log    *slog.Logger
	scopes []string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the slog logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithAdvertisedScopes sets the scopes echoed into each call's AuthInfo.
func WithAdvertisedScopes(scopes []string) Option {
	return func(s *Server) { s.scopes = append([]string(nil), scopes...) }
}

// New builds the MCP server and registers the prompt tools.
func New(store prompts.Store, opts ...Option) *Server {
	s := &Server{store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// Handler returns the streamable HTTP transport for this server. The caller
// is responsible for wrapping it in the protocol-path authenticator
// middleware; the context bridge reads the identity that middleware attached.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithEndpointPath(EndpointPath),
		server.WithHTTPContextFunc(s.httpContextFunc),
	)
}
