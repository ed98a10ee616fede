package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage jitter configuration",
	Long: `am - Manage jitter configuration ("I am")

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/jitter/config.toml)
3. User config (~/.jitter/am.toml)
4. Project config (jitter.toml, searched upward from the working directory)
5. Environment variables (JITTER_* prefix, e.g. JITTER_CAPTURE_MAX_DEPTH)

Examples:
  jitter am show                    # Show current configuration
  jitter am show --format json      # Show configuration in JSON format
  jitter am get capture.max_depth   # Get a specific config value
  jitter am validate                # Validate current configuration
  jitter am init                    # Write a starter jitter.toml here`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective jitter configuration from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., source.root, generator.command)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade, the files that were found, and the
source of every effective setting.`,
	RunE: runAmWhere,
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter jitter.toml",
	Long:  "Write the default configuration to ./jitter.toml, or to path. An existing file is rotated to .back1 first.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAmInit,
}

var (
	configFormat string
	initForce    bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	out := cmd.OutOrStdout()

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# jitter configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# jitter configuration\n%s", string(data))

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if !am.GetViper().IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(out, "  2. [SYSTEM]   /etc/jitter/config.toml")
	fmt.Fprintln(out, "  3. [USER]     ~/.jitter/am.toml")
	fmt.Fprintln(out, "  4. [PROJECT]  jitter.toml (searches up directories)")
	fmt.Fprintln(out, "  5. [ENV]      JITTER_* environment variables")
	fmt.Fprintln(out)

	if len(intro.Files) == 0 {
		fmt.Fprintln(out, "No config files found")
	} else {
		fmt.Fprintln(out, "Files found:")
		for _, f := range intro.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}

	// Group settings by the file (or source) that set them
	type group struct {
		source   am.ConfigSource
		path     string
		settings []am.SettingInfo
	}
	groups := make(map[string]*group)
	for _, s := range intro.Settings {
		key := s.SourcePath
		if key == "" {
			key = string(s.Source)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{source: s.Source, path: s.SourcePath}
			groups[key] = g
		}
		g.settings = append(g.settings, s)
	}

	order := []am.ConfigSource{am.SourceDefault, am.SourceSystem, am.SourceUser, am.SourceProject, am.SourceEnvironment}
	fmt.Fprintln(out, "\nActive configuration:")
	for _, source := range order {
		var level []*group
		for _, g := range groups {
			if g.source == source {
				level = append(level, g)
			}
		}
		sort.Slice(level, func(i, j int) bool { return level[i].path < level[j].path })

		for _, g := range level {
			switch {
			case g.path != "" && source != am.SourceEnvironment:
				fmt.Fprintf(out, "\n%s: %d settings from %s\n", source, len(g.settings), g.path)
			case source == am.SourceEnvironment:
				fmt.Fprintf(out, "\n%s: %d settings from environment variables\n", source, len(g.settings))
			default:
				fmt.Fprintf(out, "\n%s: %d settings\n", source, len(g.settings))
			}
			for _, s := range g.settings {
				value := fmt.Sprintf("%v", s.Value)
				if len(value) > 50 {
					value = value[:47] + "..."
				}
				fmt.Fprintf(out, "  %s = %s\n", s.Key, value)
			}
		}
	}
	return nil
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := am.ProjectConfigName
	if len(args) == 1 {
		path = args[0]
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return errors.WithHint(errors.Newf("%s already exists", path), "pass --force to overwrite it (the old file is kept as .back1)")
	}
	if err := am.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
	return nil
}
