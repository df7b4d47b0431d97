package main

import (
	"github.com/spf13/cobra"

	"github.com/condlab/chainmatch/internal/manager"
	"github.com/condlab/chainmatch/pkg/mcp"
)

var mcpFlags struct {
	base string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Expose the matching engine to MCP clients over stdio. Sessions are
resolved the same way as for the REST server: one per subdirectory of
the base directory.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpFlags.base, "base", "./data", "Base directory of metadata snapshots")
}

func runMCP(cmd *cobra.Command, args []string) error {
	return mcp.Run(cmd.Context(), manager.NewSessionManager(mcpFlags.base))
}
