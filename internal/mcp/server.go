// Package mcp implements a Model Context Protocol server exposing the
// prunefang reducer as an MCP tool over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "prunefang"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"
)

// ToolNameReduce identifies the reduction tool.
const ToolNameReduce = "prunefang_reduce"

// reduceToolDescription documents the tool for MCP clients.
const reduceToolDescription = "Reduce a failing test case to a minimal variant that still " +
	"satisfies an interestingness test command. Accepts inline source code, a language " +
	"identifier, and the test command argv (exit 0 = still interesting)."

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger
}

// Server wraps the MCP SDK server with the prunefang tool registration.
type Server struct {
	inner *mcpsdk.Server
	log   *slog.Logger
}

// NewServer creates a new MCP server with the reduce tool registered.
func NewServer(deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		&mcpsdk.ServerOptions{},
	)

	srv := &Server{
		inner: inner,
		log:   log,
	}

	mcpsdk.AddTool(srv.inner, &mcpsdk.Tool{
		Name:        ToolNameReduce,
		Description: reduceToolDescription,
	}, srv.handleReduce)

	return srv
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}
