package live

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/source"
)

// AliasLocation is a scope binding that was brought up to date
type AliasLocation struct {
	Scope  string `json:"scope" yaml:"scope"`
	Local  string `json:"local" yaml:"local"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Source string `json:"source" yaml:"source"` // "scan" or "registry"
}

// PatchFailure is one aliasing scope that could not be updated
type PatchFailure struct {
	Scope  string `json:"scope" yaml:"scope"`
	Local  string `json:"local,omitempty" yaml:"local,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// SubstitutionRecord reports what an install changed
type SubstitutionRecord struct {
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Scope    string          `json:"scope" yaml:"scope"`
	State    State           `json:"state" yaml:"state"`
	Old      string          `json:"old" yaml:"old"`
	New      string          `json:"new" yaml:"new"`
	Patched  []AliasLocation `json:"patched" yaml:"patched"`
	Failures []PatchFailure  `json:"failures,omitempty" yaml:"failures,omitempty"`
	Skipped  []string        `json:"skipped,omitempty" yaml:"skipped,omitempty"` // scopes not loaded
}

// Err summarises the failures as one ErrPartialPatch, or nil
func (r *SubstitutionRecord) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	f := r.Failures[0]
	return errors.Wrapf(errors.ErrPartialPatch, "%s: %d aliasing scope(s) not updated, first %s: %s",
		r.Symbol, len(r.Failures), f.Scope, f.Reason)
}

// AliasScanner finds package-level variables bound directly to a symbol.
// *source.Snapshot satisfies it.
type AliasScanner interface {
	Aliases(ctx context.Context, importPath, name string) ([]source.Alias, error)
}

// Patcher installs implementations into a registry
type Patcher struct {
	reg  *Registry
	scan AliasScanner
	log  *zap.SugaredLogger
}

// NewPatcher creates a patcher. scan may be nil, in which case only
// registered bindings are considered.
func NewPatcher(reg *Registry, scan AliasScanner) *Patcher {
	return &Patcher{reg: reg, scan: scan, log: logger.ComponentLogger("live")}
}

// Install makes impl the implementation of qualified. The declared variable
// is rebound first; then every loaded scope bound as an alias of qualified
// and still holding a replaced implementation of it is updated. A scope that cannot be updated is
// recorded as a failure and the rest carry on. Installing the value that is
// already current changes nothing.
//
// An unknown symbol or an impl of the wrong type is rejected before
// anything is written.
func (p *Patcher) Install(ctx context.Context, qualified string, impl interface{}) (*SubstitutionRecord, error) {
	// The scan reads source and runs outside the lock
	var aliases []source.Alias
	var scanErr error
	if p.scan != nil {
		if scope, names := source.SplitQualified(qualified); len(names) == 1 {
			aliases, scanErr = p.scan.Aliases(ctx, scope, names[0])
		}
	}

	r := p.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	sym, ok := r.symbols[qualified]
	if !ok {
		return nil, errors.NewUnknownSymbol(qualified)
	}
	owner := sym.owner
	want := owner.value().Type()

	iv := reflect.ValueOf(impl)
	if !iv.IsValid() || iv.Kind() != reflect.Func || iv.IsNil() {
		return nil, errors.Wrapf(errors.ErrSignatureMismatch, "%s: implementation must be a non-nil %s, got %T", qualified, want, impl)
	}
	if !iv.Type().AssignableTo(want) {
		return nil, errors.Wrapf(errors.ErrSignatureMismatch, "%s: have %s, want %s", qualified, iv.Type(), want)
	}

	next := reflect.New(want).Elem()
	next.Set(iv)
	nextID := identity(next)

	cur := owner.value()
	curID := identity(cur)
	rec := &SubstitutionRecord{
		Symbol:  qualified,
		Scope:   owner.scope,
		Old:     describe(cur),
		New:     describe(next),
		Patched: []AliasLocation{},
	}

	if curID != nextID {
		if !sym.replaced(curID) {
			sym.history = append(sym.history, curID)
		}
		cur.Set(next)
	}
	sym.state = StateInstalled
	rec.State = sym.state

	handled := map[*binding]bool{owner: true}
	update := func(b *binding, loc AliasLocation) *PatchFailure {
		handled[b] = true
		id := identity(b.value())
		switch {
		case id == nextID:
			return nil
		case !sym.replaced(id):
			return &PatchFailure{Scope: loc.Scope, Local: loc.Local, File: loc.File, Line: loc.Line,
				Reason: "holds an implementation this symbol never had"}
		case !next.Type().AssignableTo(b.value().Type()):
			return &PatchFailure{Scope: loc.Scope, Local: loc.Local, File: loc.File, Line: loc.Line,
				Reason: fmt.Sprintf("binding type %s does not accept %s", b.value().Type(), want)}
		}
		b.value().Set(next)
		rec.Patched = append(rec.Patched, loc)
		return nil
	}

	if scanErr != nil {
		rec.Failures = append(rec.Failures, PatchFailure{Scope: owner.scope, Reason: "alias scan: " + scanErr.Error()})
	}

	skipped := make(map[string]bool)
	for _, a := range aliases {
		if len(r.scopes[a.Scope]) == 0 {
			if !skipped[a.Scope] {
				skipped[a.Scope] = true
				rec.Skipped = append(rec.Skipped, a.Scope)
			}
			continue
		}
		b := r.scopes[a.Scope][a.Local]
		if b == nil {
			rec.Failures = append(rec.Failures, PatchFailure{Scope: a.Scope, Local: a.Local, File: a.File, Line: a.Line,
				Reason: "scope is loaded but never bound " + a.Local})
			continue
		}
		if handled[b] {
			continue
		}
		if b.of != qualified {
			handled[b] = true
			rec.Failures = append(rec.Failures, PatchFailure{Scope: a.Scope, Local: a.Local, File: a.File, Line: a.Line,
				Reason: "bound as an alias of " + b.of})
			continue
		}
		if f := update(b, AliasLocation{Scope: a.Scope, Local: a.Local, File: a.File, Line: a.Line, Source: "scan"}); f != nil {
			rec.Failures = append(rec.Failures, *f)
		}
	}

	// Bindings the scan could not see, such as copies made in init
	for _, scope := range sortedKeys(r.scopes) {
		locals := r.scopes[scope]
		for _, local := range sortedKeys(locals) {
			b := locals[local]
			if handled[b] || b.of != qualified || !sym.replaced(identity(b.value())) {
				continue
			}
			if f := update(b, AliasLocation{Scope: scope, Local: local, Source: "registry"}); f != nil {
				rec.Failures = append(rec.Failures, *f)
			}
		}
	}

	sort.SliceStable(rec.Patched, func(i, j int) bool {
		if rec.Patched[i].Scope != rec.Patched[j].Scope {
			return rec.Patched[i].Scope < rec.Patched[j].Scope
		}
		return rec.Patched[i].Local < rec.Patched[j].Local
	})

	p.log.Infow("Installed implementation",
		logger.FieldSymbol, qualified,
		logger.FieldPatched, len(rec.Patched),
		logger.FieldFailures, len(rec.Failures),
		"skipped", len(rec.Skipped))
	for _, f := range rec.Failures {
		p.log.Warnw("Aliasing scope not updated",
			logger.FieldSymbol, qualified,
			logger.FieldScope, f.Scope,
			logger.FieldAlias, f.Local,
			logger.FieldReason, f.Reason)
	}
	return rec, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
