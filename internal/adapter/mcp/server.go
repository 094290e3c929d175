// Package mcp exposes TaskPad tasks as Model Context Protocol tools
// over the streamable HTTP transport.
package mcp

import (
	"context"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/taskpad/internal/domain/task"
	"github.com/Strob0t/taskpad/internal/domain/user"
	"github.com/Strob0t/taskpad/internal/middleware"
)

// TaskManager is the task surface the tools operate on.
type TaskManager interface {
	List(ctx context.Context, view task.View) ([]task.Task, error)
	Create(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error)
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Name    string
	Version string
	APIKey  string
	// UserID is the account tool calls act as. Empty means the local user.
	UserID string
}

// ServerDeps are the collaborators tools call into. Nil deps make the
// corresponding tools return an error result.
type ServerDeps struct {
	Tasks TaskManager
	Now   func() time.Time
}

// Server wraps an mcp-go server and its HTTP transport.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	http      *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if cfg.UserID == "" {
		cfg.UserID = user.LocalUserID
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.http = mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithHTTPContextFunc(s.userContext),
		mcpserver.WithStateLess(true),
	)
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the API-key guarded HTTP handler for mounting at /mcp.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, s.http)
}

// userContext makes every tool call act as the configured user.
func (s *Server) userContext(ctx context.Context, _ *http.Request) context.Context {
	return s.withUser(ctx)
}

func (s *Server) withUser(ctx context.Context) context.Context {
	if u := middleware.UserFromContext(ctx); u != nil {
		return ctx
	}
	return middleware.WithUser(ctx, &user.User{ID: s.cfg.UserID})
}
