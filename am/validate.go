package am

import "github.com/teranos/jitter/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Source.Root == "" {
		return errors.New("source.root cannot be empty (omit for the current directory)")
	}

	switch c.Bundle.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return errors.Newf("bundle.format must be one of text, json, yaml, got %q", c.Bundle.Format)
	}

	if c.Bundle.MaxArgDepth < 1 {
		return errors.Newf("bundle.max_arg_depth must be >= 1, got %d", c.Bundle.MaxArgDepth)
	}

	// Generator timeout: 0 = no timeout, negative = invalid
	if c.Generator.TimeoutSeconds < 0 {
		return errors.Newf("generator.timeout_seconds must be >= 0, got %d", c.Generator.TimeoutSeconds)
	}

	if c.Generator.Command != "" && c.Generator.Endpoint != "" {
		return errors.New("set either generator.command or generator.endpoint, not both")
	}
	if c.Generator.Endpoint != "" && c.Generator.Model == "" {
		return errors.New("generator.model is required with generator.endpoint")
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.New("cache.path cannot be empty when cache is enabled")
	}

	return nil
}
