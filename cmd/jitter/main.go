package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/cmd/jitter/commands"
	"github.com/teranos/jitter/logger"
)

var rootCmd = &cobra.Command{
	Use:   "jitter",
	Short: "jitter - context for functions that are not written yet",
	Long: `jitter - Just-in-time implementation of pending Go functions.

When a pending function is reached, jitter finds its declaration, the
types its signature uses, the collaborators its doc comment names and the
call path that led there, and renders them as one context bundle. A
generator turns the bundle into an implementation that can be installed
into the running program.

Available commands:
  context  - Render the context bundle for a function
  aliases  - List variables bound to a function
  pending  - List functions that are not implemented yet
  generate - Generate an implementation for a pending function
  watch    - Re-render a bundle whenever the source changes
  mcp      - Serve discovery over the Model Context Protocol
  am       - Manage jitter configuration ("I am")

Examples:
  jitter pending
  jitter context example.com/app/tax.Rate
  jitter generate example.com/app/tax.Rate --yes
  jitter am show`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json")
		if !jsonLogs {
			if cfg, err := am.Load(); err == nil {
				jsonLogs = cfg.Log.JSON
			}
		}
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logger.SetVerbosity(verbosity)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output JSON")
	rootCmd.PersistentFlags().String("root", "", "Source root to analyse (overrides source.root)")

	rootCmd.AddCommand(commands.ContextCmd)
	rootCmd.AddCommand(commands.AliasesCmd)
	rootCmd.AddCommand(commands.PendingCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.McpCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
