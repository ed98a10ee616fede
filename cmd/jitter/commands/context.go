package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/bundle"
	"github.com/teranos/jitter/display"
)

// ContextCmd renders the discovery bundle for a function
var ContextCmd = &cobra.Command{
	Use:   "context <qualified-name>",
	Short: "Show the context bundle for a function",
	Long: `Build the context bundle for a function without running it: its
signature and doc, every type the signature refers to, and the
collaborators named with @ annotations in its doc.

Examples:
  jitter context example.com/calc/interpreter.Interpret
  jitter context example.com/shop/cart.Cart.Total --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

var contextFormat string

func init() {
	ContextCmd.Flags().StringVar(&contextFormat, "format", "", "Output format: text, json, yaml (default: bundle.format)")
}

func runContext(cmd *cobra.Command, args []string) error {
	eng, cfg, err := newEngine(cmd)
	if err != nil {
		return err
	}

	d, err := eng.DiscoverSymbol(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	format := contextFormat
	if format == "" {
		format = cfg.Bundle.Format
		if display.ShouldOutputJSON(cmd) {
			format = am.FormatJSON
		}
	}
	return bundle.Encode(cmd.OutOrStdout(), d.Bundle, format)
}
