package gencache

import (
	"context"

	"github.com/teranos/jitter/bundle"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/generator"
	"github.com/teranos/jitter/logger"
)

// Cached is a Generator that consults the store before the backend
type Cached struct {
	next    generator.Generator
	store   *Store
	backend string
}

// Wrap puts the store in front of next. backend names next in stored rows.
func Wrap(next generator.Generator, store *Store, backend string) *Cached {
	return &Cached{next: next, store: store, backend: backend}
}

// Generate returns the stored candidate for a byte-identical rendering, or
// asks the backend and stores its answer. Cache failures are logged and
// never stop a generation.
func (c *Cached) Generate(ctx context.Context, b *bundle.Bundle, rendered string) (string, error) {
	key := Key(rendered)
	target := b.Target.QualifiedName
	log := logger.LoggerFromContext(logger.WithComponent(ctx, "gencache"))

	hit, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		log.Infow("Cache hit", logger.FieldTarget, target, "key", short(key), "hits", hit.Hits)
		return hit.Text, nil
	case !errors.IsNotFoundError(err):
		log.Warnw("Cache lookup failed", logger.FieldTarget, target, logger.FieldError, err)
	}

	out, err := c.next.Generate(ctx, b, rendered)
	if err != nil {
		return "", err
	}

	if err := c.store.Put(ctx, Candidate{Key: key, Target: target, Backend: c.backend, Text: out}); err != nil {
		log.Warnw("Cache store failed", logger.FieldTarget, target, logger.FieldError, err)
	}
	return out, nil
}

// Forget drops the candidate for rendered, so the next Generate asks the
// backend again. Used when an operator declines a cached candidate.
func (c *Cached) Forget(ctx context.Context, rendered string) error {
	return c.store.Delete(ctx, Key(rendered))
}
