package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/prunefang/internal/mcp"
)

// NewMCPCommand creates the mcp command serving the reducer over stdio.
func NewMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the reducer as an MCP tool over stdio",
		Long: `MCP starts a Model Context Protocol server on stdin/stdout exposing the
prunefang_reduce tool. Clients submit inline source code, a language
identifier, and a test command, and receive the reduced variant.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server := mcp.NewServer(mcp.ServerDeps{Logger: slog.Default()})

			return server.Run(cmd.Context())
		},
	}
}
