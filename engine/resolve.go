package engine

import (
	"context"
	"strings"

	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/generator"
	"github.com/teranos/jitter/live"
	"github.com/teranos/jitter/logger"
)

// Generator turns a bundle into a candidate implementation
type Generator = generator.Generator

// Approver decides whether a candidate may be used. It may return an
// edited candidate. Rejection is reported with errors.ErrDeclined.
type Approver interface {
	Approve(ctx context.Context, target, candidate string) (string, error)
}

// ApproverFunc adapts a function to an Approver
type ApproverFunc func(ctx context.Context, target, candidate string) (string, error)

// Approve calls f
func (f ApproverFunc) Approve(ctx context.Context, target, candidate string) (string, error) {
	return f(ctx, target, candidate)
}

// AutoApprove accepts every non-empty candidate unchanged
var AutoApprove Approver = ApproverFunc(func(ctx context.Context, target, candidate string) (string, error) {
	if strings.TrimSpace(candidate) == "" {
		return "", errors.Wrapf(errors.ErrDeclined, "%s: empty candidate", target)
	}
	return candidate, nil
})

// forgetter is implemented by generators that remember their answers
type forgetter interface {
	Forget(ctx context.Context, rendered string) error
}

// Resolve asks gen for an implementation of d's target and puts it to
// appr. The accepted candidate text is returned; writing it anywhere is
// up to the caller. A declined candidate is forgotten by generators that
// cache, so asking again reaches the backend.
func (e *Engine) Resolve(ctx context.Context, d *Discovery, gen Generator, appr Approver) (string, error) {
	if gen == nil {
		return "", errors.Wrap(generator.ErrNoBackend, d.Target)
	}
	if appr == nil {
		appr = AutoApprove
	}
	ctx = logger.WithTriggerID(ctx, d.ID)
	log := logger.ChildLogger(e.log, logger.FieldTriggerID, d.ID)

	candidate, err := gen.Generate(ctx, d.Bundle, d.Text)
	if err != nil {
		return "", errors.Wrapf(err, "generate %s", d.Target)
	}

	accepted, err := appr.Approve(ctx, d.Target, candidate)
	if err != nil {
		if errors.Is(err, errors.ErrDeclined) {
			if f, ok := gen.(forgetter); ok {
				if ferr := f.Forget(ctx, d.Text); ferr != nil {
					log.Warnw("Could not forget declined candidate", logger.FieldTarget, d.Target, logger.FieldError, ferr)
				}
			}
			log.Infow("Candidate declined", logger.FieldTarget, d.Target)
		}
		return "", err
	}

	log.Infow("Candidate accepted", logger.FieldTarget, d.Target, "bytes", len(accepted))
	return accepted, nil
}

// Install makes impl the implementation of qualified and brings every
// loaded alias of it up to date. Aliases are found by scanning the source
// root; the registry covers the ones a scan cannot see.
func (e *Engine) Install(ctx context.Context, qualified string, impl interface{}) (*live.SubstitutionRecord, error) {
	snap, err := e.open()
	if err != nil {
		e.log.Warnw("Alias scan unavailable, using registry only", logger.FieldSymbol, qualified, logger.FieldError, err)
		return live.NewPatcher(e.reg, nil).Install(ctx, qualified, impl)
	}
	return live.NewPatcher(e.reg, snap).Install(ctx, qualified, impl)
}
