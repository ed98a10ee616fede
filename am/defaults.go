package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.root", ".")
	v.SetDefault("source.include_tests", false)

	v.SetDefault("capture.max_depth", DefaultMaxDepth)
	v.SetDefault("capture.include_args", true)
	v.SetDefault("capture.entry_functions", []string{})

	v.SetDefault("bundle.format", FormatText)
	v.SetDefault("bundle.max_arg_depth", DefaultMaxArgDepth)

	v.SetDefault("generator.command", "") // no backend until configured
	v.SetDefault("generator.endpoint", "")
	v.SetDefault("generator.model", "")
	v.SetDefault("generator.api_key_env", "")
	v.SetDefault("generator.allow_private", false)
	v.SetDefault("generator.timeout_seconds", DefaultTimeoutSeconds)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "~/.jitter/cache.db")

	v.SetDefault("log.json", false)
}
