package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jitter/display"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/source"
)

// AliasesCmd lists the direct aliases of a function variable
var AliasesCmd = &cobra.Command{
	Use:   "aliases <qualified-name>",
	Short: "List package variables bound directly to a function",
	Long: `Scan the source root for package-level variables initialised straight
from a function, such as

  var rate = tax.Rate

These are the scopes a live install has to update.`,
	Args: cobra.ExactArgs(1),
	RunE: runAliases,
}

func runAliases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scope, names := source.SplitQualified(args[0])
	if len(names) != 1 {
		return errors.WithHint(errors.NewInvalidRequestError("%s is not a package-level name", args[0]),
			"write it as import/path.Name")
	}

	snap, err := openSnapshot(cfg)
	if err != nil {
		return err
	}
	aliases, err := snap.Aliases(cmd.Context(), scope, names[0])
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		if aliases == nil {
			aliases = []source.Alias{}
		}
		return display.WriteJSON(cmd.OutOrStdout(), aliases)
	}
	if len(aliases) == 0 {
		pterm.Info.WithWriter(cmd.OutOrStdout()).Printfln("No aliases of %s", args[0])
		return nil
	}

	rows := make([][]string, 0, len(aliases))
	for _, a := range aliases {
		rows = append(rows, []string{a.Scope, a.Local, fmt.Sprintf("%s:%d", a.File, a.Line), a.Via})
	}
	return display.Table(cmd.OutOrStdout(), []string{"Scope", "Local", "Location", "Via"}, rows)
}
