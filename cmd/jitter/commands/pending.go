package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jitter/display"
)

// PendingCmd lists the stubs waiting for an implementation
var PendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List functions that are not implemented yet",
	Long: `List every pending function under the source root, sorted by file and
line. A function is pending when its body calls a Pending hook or panics
with a "not implemented" message.`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

type pendingEntry struct {
	Symbol string `json:"symbol"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	snap, err := openSnapshot(cfg)
	if err != nil {
		return err
	}
	funcs, err := snap.PendingFuncs(cmd.Context())
	if err != nil {
		return err
	}

	entries := make([]pendingEntry, 0, len(funcs))
	for _, fn := range funcs {
		entries = append(entries, pendingEntry{Symbol: fn.QualifiedName(), File: fn.File.Rel, Line: fn.File.LineOf(fn.Pos())})
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Nothing pending")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Symbol, fmt.Sprintf("%s:%d", e.File, e.Line)})
	}
	return display.Table(cmd.OutOrStdout(), []string{"Function", "Location"}, rows)
}
