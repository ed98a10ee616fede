package am

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
)

// DefaultConfig returns the configuration produced by SetDefaults alone
func DefaultConfig() Config {
	return Config{
		Source:    SourceConfig{Root: "."},
		Capture:   CaptureConfig{MaxDepth: DefaultMaxDepth, IncludeArgs: true, EntryFunctions: []string{}},
		Bundle:    BundleConfig{Format: FormatText, MaxArgDepth: DefaultMaxArgDepth},
		Generator: GeneratorConfig{TimeoutSeconds: DefaultTimeoutSeconds},
		Cache:     CacheConfig{Enabled: true, Path: "~/.jitter/cache.db"},
	}
}

// WriteConfig persists cfg as TOML at configPath, rotating existing backups first
func WriteConfig(configPath string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	if w := GetGlobalWatcher(); w != nil {
		w.MarkOwnWrite()
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", configPath)
	}
	return nil
}

// WriteDefault writes a starter config to configPath
func WriteDefault(configPath string) error {
	return WriteConfig(configPath, DefaultConfig())
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Deletion failures don't block the save
		logger.Warnw("Failed to delete old backup", logger.FieldFile, back3, logger.FieldError, err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}
