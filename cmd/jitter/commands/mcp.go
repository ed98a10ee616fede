package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/jitter/mcpserver"
)

// McpCmd serves discovery tools over MCP on stdio
var McpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve jitter tools over the Model Context Protocol (stdio)",
	Long: `Run an MCP server on stdin and stdout exposing:

  jitter_context   context bundle for a function
  jitter_aliases   direct aliases of a function variable
  jitter_pending   pending functions in the source root
  jitter_symbols   symbols declared for live substitution

Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine(cmd)
		if err != nil {
			return err
		}
		return mcpserver.New(eng).Serve()
	},
}
