package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/engine"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/gencache"
	"github.com/teranos/jitter/generator"
	"github.com/teranos/jitter/logger"
)

// GenerateCmd asks the configured backend for an implementation
var GenerateCmd = &cobra.Command{
	Use:   "generate <qualified-name>",
	Short: "Generate a candidate implementation for a pending function",
	Long: `Build the context bundle for a function, hand its rendering to the
configured generation backend and print the accepted candidate.

Candidates are cached by the digest of the rendering, so an unchanged
bundle never reaches the backend twice. Declining a candidate drops it
from the cache.

Nothing is written to disk; redirect the output where it belongs.

Examples:
  jitter generate example.com/calc/interpreter.Interpret
  jitter generate example.com/calc/interpreter.Interpret --yes > impl.go.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	generateYes     bool
	generateNoCache bool
)

func init() {
	GenerateCmd.Flags().BoolVarP(&generateYes, "yes", "y", false, "Accept the candidate without asking")
	GenerateCmd.Flags().BoolVar(&generateNoCache, "no-cache", false, "Bypass the generation cache")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	eng, cfg, err := newEngine(cmd)
	if err != nil {
		return err
	}

	d, err := eng.DiscoverSymbol(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	gen, closeGen, err := buildGenerator(cfg, !generateNoCache)
	if err != nil {
		return err
	}
	defer closeGen()

	appr := engine.AutoApprove
	if !generateYes {
		appr = confirmApprover(cmd)
	}

	spinner, _ := pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).Start("Generating " + d.Target)
	out, err := eng.Resolve(cmd.Context(), d, gen, &stopSpinner{spinner: spinner, next: appr})
	if spinner != nil && spinner.IsActive {
		_ = spinner.Stop()
	}
	if err != nil {
		if errors.Is(err, errors.ErrDeclined) {
			pterm.Warning.WithWriter(cmd.ErrOrStderr()).Println("Candidate declined")
			return nil
		}
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

// buildGenerator creates the configured backend, behind the cache when
// enabled. A cache that cannot be opened is skipped with a warning.
func buildGenerator(cfg *am.Config, useCache bool) (engine.Generator, func(), error) {
	gen, err := generator.FromConfig(cfg.Generator)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Cache.Enabled || !useCache {
		return gen, func() {}, nil
	}

	store, err := gencache.Open(cfg.Cache.Path)
	if err != nil {
		logger.Warnw("Generation cache unavailable", logger.FieldFile, cfg.Cache.Path, logger.FieldError, err)
		return gen, func() {}, nil
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Debugw("Closing generation cache", logger.FieldError, err)
		}
	}
	return gencache.Wrap(gen, store, fmt.Sprint(gen)), closeStore, nil
}

// confirmApprover shows the candidate and asks before accepting it
func confirmApprover(cmd *cobra.Command) engine.Approver {
	return engine.ApproverFunc(func(ctx context.Context, target, candidate string) (string, error) {
		pterm.DefaultBox.WithTitle(target).WithWriter(cmd.ErrOrStderr()).Println(strings.TrimRight(candidate, "\n"))

		ok, err := pterm.DefaultInteractiveConfirm.
			WithDefaultText("Use this implementation?").
			WithDefaultValue(false).
			Show()
		if err != nil {
			return "", errors.Wrap(err, "read confirmation")
		}
		if !ok {
			return "", errors.Wrapf(errors.ErrDeclined, "%s", target)
		}
		return candidate, nil
	})
}

// stopSpinner clears the spinner before the approver writes anything
type stopSpinner struct {
	spinner *pterm.SpinnerPrinter
	next    engine.Approver
}

func (s *stopSpinner) Approve(ctx context.Context, target, candidate string) (string, error) {
	if s.spinner != nil && s.spinner.IsActive {
		_ = s.spinner.Stop()
	}
	return s.next.Approve(ctx, target, candidate)
}
