package annotation

import (
	"context"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/resolve"
	"github.com/teranos/jitter/source"
)

// SelfReferential is the reason given for an annotation that resolves to
// the pending target itself
const SelfReferential = "self-referential: refers to the pending target"

// Reference is a collaborator named in a target's documentation. Target is
// nil when the annotation could not be resolved; Reason then says why.
type Reference struct {
	Raw     string               `json:"raw" yaml:"raw"`
	Path    string               `json:"path" yaml:"path"`
	Member  string               `json:"member,omitempty" yaml:"member,omitempty"`
	Kind    resolve.Kind         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Target  *resolve.Declaration `json:"target,omitempty" yaml:"target,omitempty"`
	Alias   string               `json:"alias,omitempty" yaml:"alias,omitempty"`
	Pending bool                 `json:"pending,omitempty" yaml:"pending,omitempty"`
	Reason  string               `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Resolved reports whether the reference has a target
func (r Reference) Resolved() bool { return r.Target != nil }

// Extractor resolves the annotations of a declaration through a Resolver
type Extractor struct {
	res  *resolve.Resolver
	snap *source.Snapshot
	log  *zap.SugaredLogger
}

// NewExtractor creates an Extractor that shares res's run and memo
func NewExtractor(res *resolve.Resolver) *Extractor {
	return &Extractor{
		res:  res,
		snap: res.Snapshot(),
		log:  logger.ComponentLogger("annotation"),
	}
}

// Extract parses target's documentation and resolves each annotation in
// order of appearance. Functions and types that resolve have their own
// types pulled into the resolver's set; packages are listed, not
// recursed. The same declaration named twice is kept once.
func (e *Extractor) Extract(ctx context.Context, target *resolve.Declaration) ([]Reference, []Diagnostic) {
	tokens, diags := Parse(target.Doc)
	for _, d := range diags {
		e.log.Debugw("Malformed annotation", logger.FieldTarget, target.QualifiedName, logger.FieldReason, d.Message, "raw", d.Raw)
	}

	aliases := newAliasTable()
	seen := make(map[string]bool)
	var refs []Reference

	for _, tok := range tokens {
		ref := e.resolveToken(ctx, tok)

		key := "raw:" + ref.Raw
		if ref.Target != nil {
			key = ref.Target.QualifiedName
			if key == target.QualifiedName {
				ref.Target, ref.Kind, ref.Pending = nil, "", false
				ref.Reason = SelfReferential
				key = "raw:" + ref.Raw
			}
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if ref.Target != nil {
			e.follow(ctx, ref.Target)
			ref.Alias = aliases.aliasFor(ref.Target, target.Package, e.snap)
		}

		e.log.Debugw("Collaborator",
			logger.FieldTarget, target.QualifiedName,
			logger.FieldSymbol, ref.Raw,
			logger.FieldAlias, ref.Alias,
			logger.FieldReason, ref.Reason)
		refs = append(refs, ref)
	}
	return refs, diags
}

// resolveToken tries each package reading of the path in turn, then falls
// back to treating the last segment as a symbol, then the last two as
// Recv.Method
func (e *Extractor) resolveToken(ctx context.Context, tok Token) Reference {
	ref := Reference{Raw: tok.Raw, Path: tok.Path, Member: tok.Member}

	for _, pkg := range e.candidates(tok.Path) {
		if !e.snap.HasPackage(pkg) {
			continue
		}
		q := pkg
		if tok.Member != "" {
			q = pkg + "." + tok.Member
		}
		return e.bind(ctx, ref, q)
	}

	if tok.Member == "" {
		for _, n := range []int{1, 2} {
			prefix, symbol, ok := splitSymbol(tok.Path, n)
			if !ok {
				break
			}
			for _, pkg := range e.candidates(prefix) {
				if e.snap.HasPackage(pkg) {
					return e.bind(ctx, ref, pkg+"."+symbol)
				}
			}
		}
	}

	ref.Reason = "no package or symbol named " + tok.Path + " in module " + e.snap.ModulePath
	return ref
}

// splitSymbol cuts the last n segments off p as a dotted symbol name. The
// segments inside the symbol must be joined by dots.
func splitSymbol(p string, n int) (prefix, symbol string, ok bool) {
	end := len(p)
	i := -1
	for k := 0; k < n; k++ {
		i = strings.LastIndexAny(p[:end], "./")
		if i <= 0 || (k < n-1 && p[i] != '.') {
			return "", "", false
		}
		end = i
	}
	return p[:i], p[i+1:], true
}

func (e *Extractor) bind(ctx context.Context, ref Reference, qualified string) Reference {
	decl, err := e.res.ResolveDeclaration(ctx, qualified)
	if err != nil {
		ref.Reason = err.Error()
		return ref
	}
	ref.Target = decl
	ref.Kind = decl.Kind
	ref.Pending = decl.Pending
	return ref
}

// follow pulls the types a collaborator exposes into the resolver's set
func (e *Extractor) follow(ctx context.Context, decl *resolve.Declaration) {
	switch decl.Kind {
	case resolve.KindFunction:
		if _, err := e.res.ResolveSignature(ctx, decl); err != nil {
			e.log.Debugw("Collaborator signature unresolved", logger.FieldSymbol, decl.QualifiedName, logger.FieldError, err)
		}
	case resolve.KindType:
		if _, err := e.res.ResolveType(ctx, decl.QualifiedName); err != nil {
			e.log.Debugw("Collaborator type unresolved", logger.FieldSymbol, decl.QualifiedName, logger.FieldError, err)
		}
	}
}

// candidates lists the import paths a written path may stand for, most
// literal first
func (e *Extractor) candidates(p string) []string {
	mod := e.snap.ModulePath
	slashed := strings.ReplaceAll(p, ".", "/")

	var out []string
	add := func(c string) {
		for _, have := range out {
			if have == c {
				return
			}
		}
		out = append(out, c)
	}

	if strings.Contains(p, "/") {
		add(p)
	}
	add(slashed)
	first, rest, _ := strings.Cut(slashed, "/")
	if first == path.Base(mod) {
		if rest == "" {
			add(mod)
		} else {
			add(mod + "/" + rest)
		}
	}
	add(mod + "/" + slashed)
	return out
}

// aliasTable hands out package aliases, suffixing 2, 3, ... when two
// packages share a name
type aliasTable struct {
	byPath map[string]string
	taken  map[string]bool
}

func newAliasTable() *aliasTable {
	return &aliasTable{byPath: make(map[string]string), taken: make(map[string]bool)}
}

func (t *aliasTable) pkgAlias(importPath, name string) string {
	if a, ok := t.byPath[importPath]; ok {
		return a
	}
	alias := name
	for n := 2; t.taken[alias]; n++ {
		alias = name + strconv.Itoa(n)
	}
	t.taken[alias] = true
	t.byPath[importPath] = alias
	return alias
}

// aliasFor returns the name generated code should use: the package alias
// for a module, and alias.Name for a symbol in another package
func (t *aliasTable) aliasFor(decl *resolve.Declaration, from string, snap *source.Snapshot) string {
	if decl.Kind == resolve.KindModule {
		return t.pkgAlias(decl.Package, decl.Name)
	}
	if decl.Package == from {
		return decl.Name
	}
	return t.pkgAlias(decl.Package, snap.PackageName(decl.Package)) + "." + decl.Name
}
