// Package mcp exposes task submission and polling as MCP tools over the
// streamable HTTP transport.
package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/service"
)

// ServerConfig holds the identity advertised to MCP clients.
type ServerConfig struct {
	Name    string
	Version string
	APIKey  string
}

// Tasks is the subset of the task service the MCP tools call into.
type Tasks interface {
	Submit(ctx context.Context, req service.SubmitRequest) (string, error)
	Poll(taskID string) task.Poll
	Health() service.Health
}

// ServerDeps holds the services backing the MCP tools.
type ServerDeps struct {
	Tasks Tasks
}

// Server wraps an MCP server registered with the task tools and resources.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates an MCP server and registers its tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP endpoint guarded by the API key.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}
