package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/engine"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/source"
)

// loadConfig loads and validates the configuration, then applies --root
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cfg.Source.Root = root
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	cfg.Source.Root = am.ExpandHome(cfg.Source.Root)
	return cfg, nil
}

func newEngine(cmd *cobra.Command) (*engine.Engine, *am.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(engine.OptionsFromConfig(cfg), nil), cfg, nil
}

func openSnapshot(cfg *am.Config) (*source.Snapshot, error) {
	snap, err := source.Open(cfg.Source.Root, source.WithTests(cfg.Source.IncludeTests))
	if err != nil {
		return nil, errors.Wrapf(err, "open source root %s", cfg.Source.Root)
	}
	return snap, nil
}
