package am

// Config represents the jitter configuration
type Config struct {
	Source    SourceConfig    `mapstructure:"source" toml:"source" json:"source" yaml:"source"`
	Capture   CaptureConfig   `mapstructure:"capture" toml:"capture" json:"capture" yaml:"capture"`
	Bundle    BundleConfig    `mapstructure:"bundle" toml:"bundle" json:"bundle" yaml:"bundle"`
	Generator GeneratorConfig `mapstructure:"generator" toml:"generator" json:"generator" yaml:"generator"`
	Cache     CacheConfig     `mapstructure:"cache" toml:"cache" json:"cache" yaml:"cache"`
	Log       LogConfig       `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// SourceConfig configures the source root scanned for declarations and aliases
type SourceConfig struct {
	Root         string `mapstructure:"root" toml:"root" json:"root" yaml:"root"`                               // Directory containing go.mod (default: ".")
	IncludeTests bool   `mapstructure:"include_tests" toml:"include_tests" json:"include_tests" yaml:"include_tests"` // Scan _test.go files for aliases and stubs
}

// CaptureConfig configures call-stack reconstruction
type CaptureConfig struct {
	MaxDepth       int      `mapstructure:"max_depth" toml:"max_depth" json:"max_depth" yaml:"max_depth"`                         // Caller frames kept (negative = unbounded, 0 = none)
	IncludeArgs    bool     `mapstructure:"include_args" toml:"include_args" json:"include_args" yaml:"include_args"`             // Render live argument values in bundles
	EntryFunctions []string `mapstructure:"entry_functions" toml:"entry_functions" json:"entry_functions" yaml:"entry_functions"` // Extra runtime function names that end a walk
}

// BundleConfig configures bundle output
type BundleConfig struct {
	Format      string `mapstructure:"format" toml:"format" json:"format" yaml:"format"`                         // text, json or yaml
	MaxArgDepth int    `mapstructure:"max_arg_depth" toml:"max_arg_depth" json:"max_arg_depth" yaml:"max_arg_depth"` // Nesting depth for argument dumps
}

// GeneratorConfig configures the external text-generation backend.
// At most one of Command and Endpoint is set.
type GeneratorConfig struct {
	Command        string `mapstructure:"command" toml:"command" json:"command" yaml:"command"`                                 // Shell-quoted command; receives the rendering on stdin
	Endpoint       string `mapstructure:"endpoint" toml:"endpoint" json:"endpoint" yaml:"endpoint"`                             // OpenAI-compatible base URL (Ollama, LocalAI, OpenRouter)
	Model          string `mapstructure:"model" toml:"model" json:"model" yaml:"model"`                                         // Model name sent to Endpoint
	APIKeyEnv      string `mapstructure:"api_key_env" toml:"api_key_env" json:"api_key_env" yaml:"api_key_env"`                 // Env var holding a bearer token for Endpoint
	AllowPrivate   bool   `mapstructure:"allow_private" toml:"allow_private" json:"allow_private" yaml:"allow_private"`         // Permit loopback and private-network endpoints
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"` // 0 = no timeout
}

// CacheConfig configures the generation cache
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
}

// Supported bundle formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Default values
const (
	DefaultMaxDepth       = 16
	DefaultMaxArgDepth    = 3
	DefaultTimeoutSeconds = 120
	DefaultDirPermissions = 0750
	ProjectConfigName     = "jitter.toml"
)
