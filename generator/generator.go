// Package generator turns a rendered context bundle into candidate source
// text. Backends are either a local command fed the rendering on stdin or
// an OpenAI-compatible chat endpoint.
package generator

import (
	"context"
	"os"
	"time"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/bundle"
	"github.com/teranos/jitter/errors"
)

// Generator produces a candidate implementation for the bundle's target.
// rendered is the canonical text of b.
type Generator interface {
	Generate(ctx context.Context, b *bundle.Bundle, rendered string) (string, error)
}

// Func adapts a function to Generator
type Func func(ctx context.Context, b *bundle.Bundle, rendered string) (string, error)

// Generate calls f
func (f Func) Generate(ctx context.Context, b *bundle.Bundle, rendered string) (string, error) {
	return f(ctx, b, rendered)
}

// ErrNoBackend means neither generator.command nor generator.endpoint is configured
var ErrNoBackend = errors.New("no generation backend configured")

// FromConfig builds the configured backend
func FromConfig(cfg am.GeneratorConfig) (Generator, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch {
	case cfg.Command != "" && cfg.Endpoint != "":
		return nil, errors.New("set either generator.command or generator.endpoint, not both")
	case cfg.Command != "":
		return NewCommand(cfg.Command, timeout)
	case cfg.Endpoint != "":
		apiKey := ""
		if cfg.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.APIKeyEnv)
		}
		return NewChat(ChatConfig{
			Endpoint:     cfg.Endpoint,
			Model:        cfg.Model,
			APIKey:       apiKey,
			AllowPrivate: cfg.AllowPrivate,
			Timeout:      timeout,
		})
	default:
		return nil, errors.WithHint(ErrNoBackend,
			"set generator.command (e.g. \"llm -m gpt-4o\") or generator.endpoint and generator.model in jitter.toml")
	}
}
