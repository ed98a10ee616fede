package am

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teranos/jitter/errors"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/jitter/config.toml
	SourceUser        ConfigSource = "user"        // ~/.jitter/am.toml
	SourceProject     ConfigSource = "project"     // jitter.toml found upward from the working directory
	SourceEnvironment ConfigSource = "environment" // JITTER_* env vars
)

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key" yaml:"key"`
	Value      interface{}  `json:"value" yaml:"value"`
	Source     ConfigSource `json:"source" yaml:"source"`
	SourcePath string       `json:"source_path,omitempty" yaml:"source_path,omitempty"` // File path or env var name
}

// ConfigIntrospection lists every effective setting with its origin
type ConfigIntrospection struct {
	Files    []string      `json:"files" yaml:"files"` // files consulted, lowest precedence first
	Settings []SettingInfo `json:"settings" yaml:"settings"`
}

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string
}

// ConfigSources maps flattened keys to the file that last set them.
// Filled while the config files are merged.
var ConfigSources = make(map[string]SourceInfo)

// GetConfigIntrospection returns the effective settings and where each came from
func GetConfigIntrospection() (*ConfigIntrospection, error) {
	if _, err := Load(); err != nil {
		return nil, errors.Wrap(err, "failed to load config for introspection")
	}
	v := GetViper()

	intro := &ConfigIntrospection{Settings: make([]SettingInfo, 0)}
	for _, p := range ConfigPaths() {
		if _, err := os.Stat(p); err == nil {
			intro.Files = append(intro.Files, p)
		}
	}
	flattenSettingsWithSources(v.AllSettings(), "", intro, ConfigSources)
	return intro, nil
}

func sourceForPath(path string) ConfigSource {
	switch {
	case strings.HasPrefix(path, "/etc/"):
		return SourceSystem
	case filepath.Base(path) == ProjectConfigName:
		return SourceProject
	default:
		return SourceUser
	}
}

func markSettingsFromSource(settings map[string]interface{}, prefix string, info SourceInfo) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			markSettingsFromSource(nested, fullKey, info)
			continue
		}
		ConfigSources[fullKey] = info
	}
}

func flattenSettingsWithSources(settings map[string]interface{}, prefix string, intro *ConfigIntrospection, sourceMap map[string]SourceInfo) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			flattenSettingsWithSources(nested, fullKey, intro, sourceMap)
			continue
		}

		info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sourceMap[fullKey]; ok {
			info = si
		}

		envKey := "JITTER_" + strings.ToUpper(strings.ReplaceAll(fullKey, ".", "_"))
		if _, ok := os.LookupEnv(envKey); ok {
			info = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		intro.Settings = append(intro.Settings, SettingInfo{
			Key:        fullKey,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
}
