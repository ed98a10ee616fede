// Package engine runs discovery for a triggering event and hands the
// result to generation and live substitution.
//
// Discovery is synchronous and owns nothing past its return: every run
// opens its own source snapshot and resolver, so two triggers in flight at
// once never share a memo.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/annotation"
	"github.com/teranos/jitter/bundle"
	"github.com/teranos/jitter/callstack"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/live"
	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/resolve"
	"github.com/teranos/jitter/source"
)

// Options controls a discovery run
type Options struct {
	Root           string
	IncludeTests   bool
	MaxDepth       int // negative = unbounded
	IncludeArgs    bool
	MaxArgDepth    int
	EntryFunctions []string
}

// OptionsFromConfig reads the source, capture and bundle sections of cfg
func OptionsFromConfig(cfg *am.Config) Options {
	return Options{
		Root:           cfg.Source.Root,
		IncludeTests:   cfg.Source.IncludeTests,
		MaxDepth:       cfg.Capture.MaxDepth,
		IncludeArgs:    cfg.Capture.IncludeArgs,
		MaxArgDepth:    cfg.Bundle.MaxArgDepth,
		EntryFunctions: cfg.Capture.EntryFunctions,
	}
}

// Engine composes the resolver, reconstructor, extractor and assembler,
// and installs accepted implementations through a live registry
type Engine struct {
	opts Options
	reg  *live.Registry
	log  *zap.SugaredLogger
}

// New creates an engine. A nil reg means live.DefaultRegistry().
func New(opts Options, reg *live.Registry) *Engine {
	if reg == nil {
		reg = live.DefaultRegistry()
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.MaxArgDepth < 1 {
		opts.MaxArgDepth = am.DefaultMaxArgDepth
	}
	return &Engine{opts: opts, reg: reg, log: logger.ComponentLogger("engine")}
}

// Options returns the options the engine was created with
func (e *Engine) Options() Options { return e.opts }

// Registry returns the registry installs go through
func (e *Engine) Registry() *live.Registry { return e.reg }

// Trigger is a call-site event. Frames are innermost first and Frames[0]
// is the pending function itself. Target may be left empty, in which case
// it is found from Frames[0].
type Trigger struct {
	ID     string
	Target string
	Frames []callstack.Frame
	Args   []interface{}
}

// Discovery is the result of one run
type Discovery struct {
	ID       string         `json:"id" yaml:"id"`
	Target   string         `json:"target" yaml:"target"`
	Bundle   *bundle.Bundle `json:"bundle" yaml:"bundle"`
	Text     string         `json:"-" yaml:"-"`
	Duration time.Duration  `json:"duration" yaml:"duration"`
}

// Discover assembles the bundle for a trigger. Only failures that leave
// nothing to describe are returned: an unreadable source root, or a
// target that cannot be located. Everything past that is best effort and
// lands on the bundle as unresolved entries.
func (e *Engine) Discover(ctx context.Context, t Trigger) (*Discovery, error) {
	start := time.Now()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	ctx = logger.WithTriggerID(ctx, t.ID)
	log := logger.ChildLogger(e.log, logger.FieldTriggerID, t.ID)

	snap, err := e.open()
	if err != nil {
		return nil, err
	}
	res := resolve.New(snap)

	target, err := e.target(ctx, res, t)
	if err != nil {
		log.Warnw("Trigger target not found", logger.FieldTarget, t.Target, logger.FieldError, err)
		return nil, err
	}
	log.Debugw("Discovery started", logger.FieldTarget, target.QualifiedName, logger.FieldRoot, snap.Root)

	if _, err := res.ResolveSignature(ctx, target); err != nil {
		// already recorded as unresolved
		log.Debugw("Signature partly unresolved", logger.FieldTarget, target.QualifiedName, logger.FieldError, err)
	}

	var trail callstack.Trail
	if len(t.Frames) > 0 {
		rec := callstack.New(snap, callstack.WithEntryFunctions(e.opts.EntryFunctions...))
		trail = rec.Capture(t.Frames, e.opts.MaxDepth)
	} else {
		trail.MaxDepth = e.opts.MaxDepth
	}

	refs, diags := annotation.NewExtractor(res).Extract(ctx, target)

	opts := []bundle.Option{
		bundle.WithUnresolved(res.Unresolved()),
		bundle.WithDiagnostics(diags),
	}
	if e.opts.IncludeArgs && len(t.Args) > 0 {
		opts = append(opts, bundle.WithArguments(bundle.DescribeArguments(target.Params, t.Args, e.opts.MaxArgDepth)))
	}
	b := bundle.Assemble(target, trail, res.Types(), refs, opts...)

	d := &Discovery{
		ID:       t.ID,
		Target:   target.QualifiedName,
		Bundle:   b,
		Text:     bundle.Render(b),
		Duration: time.Since(start),
	}
	log.Infow("Discovery complete",
		logger.FieldTarget, d.Target,
		logger.FieldTypes, len(b.Types),
		logger.FieldFrames, len(b.Stack),
		logger.FieldCount, len(b.Collaborators),
		logger.FieldTruncated, b.Truncated,
		logger.FieldDurationMS, d.Duration.Milliseconds())
	return d, nil
}

// DiscoverSymbol runs a static discovery for a named function. There is
// no call stack and there are no argument values.
func (e *Engine) DiscoverSymbol(ctx context.Context, qualified string) (*Discovery, error) {
	return e.Discover(ctx, Trigger{Target: qualified})
}

func (e *Engine) open() (*source.Snapshot, error) {
	snap, err := source.Open(e.opts.Root, source.WithTests(e.opts.IncludeTests))
	if err != nil {
		return nil, errors.Wrapf(err, "open source root %s", e.opts.Root)
	}
	return snap, nil
}

func (e *Engine) target(ctx context.Context, res *resolve.Resolver, t Trigger) (*resolve.Declaration, error) {
	if t.Target != "" {
		d, err := res.ResolveDeclaration(ctx, t.Target)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve target")
		}
		if d.Kind != resolve.KindFunction {
			return nil, errors.WithHint(
				errors.Newf("%s is a %s, not a function", d.QualifiedName, d.Kind),
				"discovery targets functions and methods")
		}
		return d, nil
	}

	if len(t.Frames) == 0 {
		return nil, errors.NewInvalidRequestError("trigger names no target and carries no frames")
	}
	f := t.Frames[0]
	snap := res.Snapshot()
	if !snap.Contains(f.File) {
		return nil, errors.WithHint(
			errors.NewUnresolvable("trigger %s at %s:%d is outside source root %s", f.Function, f.File, f.Line, snap.Root),
			"set source.root to the module that contains the pending function")
	}
	fn, err := snap.EnclosingFunc(f.File, f.Line)
	if err != nil {
		return nil, errors.Wrapf(err, "locate trigger %s", f.Function)
	}
	return resolve.FuncDeclaration(fn), nil
}
