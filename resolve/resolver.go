// Package resolve turns qualified names into located declarations and
// closes the set of types a function signature refers to.
//
// A Resolver belongs to one discovery run. Its memo makes every type
// resolve at most once per run, which also lets mutually referential types
// terminate. Never share a Resolver between concurrent runs.
package resolve

import (
	"context"
	"go/ast"
	"go/token"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/source"
)

// Resolver resolves declarations and types against one source snapshot
type Resolver struct {
	snap *source.Snapshot
	log  *zap.SugaredLogger
	fset *token.FileSet

	mu         sync.Mutex
	pkgs       map[string]*packages.Package
	decls      map[string]*Declaration
	memo       map[string]*TypeNode
	order      []*TypeNode
	unresolved []Unresolved
	seenMiss   map[string]bool
}

// New creates a Resolver with an empty memo
func New(snap *source.Snapshot) *Resolver {
	return &Resolver{
		snap:     snap,
		log:      logger.ComponentLogger("resolve"),
		fset:     token.NewFileSet(),
		pkgs:     make(map[string]*packages.Package),
		decls:    make(map[string]*Declaration),
		memo:     make(map[string]*TypeNode),
		seenMiss: make(map[string]bool),
	}
}

// Snapshot returns the source snapshot the resolver reads from
func (r *Resolver) Snapshot() *source.Snapshot { return r.snap }

// Types returns every type resolved so far, in discovery order
func (r *Resolver) Types() []*TypeNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*TypeNode, len(r.order))
	copy(out, r.order)
	return out
}

// Unresolved returns the references that could not be located, in the
// order they were met
func (r *Resolver) Unresolved() []Unresolved {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Unresolved, len(r.unresolved))
	copy(out, r.unresolved)
	return out
}

func (r *Resolver) miss(ref, from, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ref + "\x00" + from
	if r.seenMiss[key] {
		return
	}
	r.seenMiss[key] = true
	r.unresolved = append(r.unresolved, Unresolved{Ref: ref, From: from, Reason: reason})
	r.log.Debugw("Unresolved reference", logger.FieldSymbol, ref, logger.FieldTarget, from, logger.FieldReason, reason)
}

// ResolveDeclaration locates the function, method, type or package named
// by qualified. Methods are written "import/path.Recv.Method" and packages
// by their bare import path.
func (r *Resolver) ResolveDeclaration(ctx context.Context, qualified string) (*Declaration, error) {
	r.mu.Lock()
	d, ok := r.decls[qualified]
	r.mu.Unlock()
	if ok {
		return d, nil
	}

	d, err := r.lookupDeclaration(qualified)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.decls[qualified] = d
	r.mu.Unlock()
	return d, nil
}

func (r *Resolver) lookupDeclaration(qualified string) (*Declaration, error) {
	if r.snap.HasPackage(qualified) {
		return r.moduleDeclaration(qualified)
	}

	pkgPath, names := source.SplitQualified(qualified)
	if !r.snap.InModule(pkgPath) {
		return nil, errors.NewUnresolvable("%s is outside module %s", qualified, r.snap.ModulePath)
	}

	switch len(names) {
	case 1:
		if fn, err := r.snap.FindFunc(pkgPath, names[0]); err == nil {
			return FuncDeclaration(fn), nil
		}
		if td, err := r.snap.FindType(pkgPath, names[0]); err == nil {
			return TypeDeclaration(td), nil
		}
	case 2:
		if fn, err := r.snap.FindFunc(pkgPath, names[0]+"."+names[1]); err == nil {
			return FuncDeclaration(fn), nil
		}
	}
	return nil, errors.NewUnresolvable("no declaration named %s", qualified)
}

// FuncDeclaration captures a function found in the snapshot
func FuncDeclaration(fn *source.Func) *Declaration {
	f := fn.File
	d := &Declaration{
		QualifiedName: fn.QualifiedName(),
		Name:          fn.Name,
		Package:       f.Package,
		Kind:          KindFunction,
		Location:      Location{File: f.Rel, StartLine: f.LineOf(fn.Pos()), EndLine: f.LineOf(fn.End())},
		Text:          f.Text(fn.Pos(), fn.End()),
		Doc:           strings.TrimSpace(fn.Doc.Text()),
		Params:        paramNames(fn.Type),
		Pending:       fn.Pending(),
	}
	if fn.Body != nil {
		d.Signature = strings.TrimSpace(f.Text(fn.Pos(), fn.Body.Lbrace))
	} else {
		d.Signature = d.Text
	}
	return d
}

// TypeDeclaration captures a type declaration found in the snapshot
func TypeDeclaration(td *source.TypeDecl) *Declaration {
	f := td.File
	return &Declaration{
		QualifiedName: f.Package + "." + td.Name,
		Name:          td.Name,
		Package:       f.Package,
		Kind:          KindType,
		Location:      Location{File: f.Rel, StartLine: f.LineOf(td.Pos()), EndLine: f.LineOf(td.End())},
		Text:          f.Text(td.Pos(), td.End()),
		Doc:           strings.TrimSpace(td.Doc.Text()),
	}
}

// moduleDeclaration summarises a package: its clause followed by the
// signatures of its exported functions and its exported type, const and
// var declarations
func (r *Resolver) moduleDeclaration(importPath string) (*Declaration, error) {
	files, err := r.snap.PackageFiles(importPath)
	if err != nil {
		return nil, errors.NewUnresolvable("package %s: %v", importPath, err)
	}

	name := files[0].AST.Name.Name
	parts := []Part{{Text: "package " + name}}
	var doc string
	for _, f := range files {
		if doc == "" && f.AST.Doc != nil {
			doc = strings.TrimSpace(f.AST.Doc.Text())
		}
		for _, decl := range f.AST.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if !d.Name.IsExported() || !exportedReceiver(d) {
					continue
				}
				parts = append(parts, Part{Text: strings.TrimSpace(f.Text(d.Pos(), d.Type.End()))})
			case *ast.GenDecl:
				switch {
				case d.Tok == token.IMPORT || !exportedGenDecl(d):
				case d.Tok == token.TYPE:
					// one part per type so each can be matched against the type set
					for _, spec := range d.Specs {
						ts := spec.(*ast.TypeSpec)
						if !ts.Name.IsExported() {
							continue
						}
						text := f.Text(d.Pos(), d.End())
						if d.Lparen.IsValid() {
							text = "type " + f.Text(ts.Pos(), ts.End())
						}
						parts = append(parts, Part{Type: importPath + "." + ts.Name.Name, Text: text})
					}
				default:
					parts = append(parts, Part{Text: f.Text(d.Pos(), d.End())})
				}
			}
		}
	}
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Text
	}

	dir, _ := r.snap.PackageDir(importPath)
	return &Declaration{
		QualifiedName: importPath,
		Name:          name,
		Package:       importPath,
		Kind:          KindModule,
		Location:      Location{File: r.snap.Rel(dir)},
		Text:          strings.Join(texts, "\n"),
		Doc:           doc,
		Parts:         parts,
	}, nil
}

func exportedReceiver(fd *ast.FuncDecl) bool {
	recv := source.ReceiverName(fd)
	return recv == "" || ast.IsExported(recv)
}

func exportedGenDecl(gd *ast.GenDecl) bool {
	for _, spec := range gd.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			if s.Name.IsExported() {
				return true
			}
		case *ast.ValueSpec:
			for _, n := range s.Names {
				if n.IsExported() {
					return true
				}
			}
		}
	}
	return false
}

// paramNames lists parameter names in order; unnamed parameters get argN
func paramNames(ft *ast.FuncType) []string {
	if ft == nil || ft.Params == nil {
		return nil
	}
	var names []string
	for _, field := range ft.Params.List {
		if len(field.Names) == 0 {
			names = append(names, "arg"+strconv.Itoa(len(names)))
			continue
		}
		for _, n := range field.Names {
			names = append(names, n.Name)
		}
	}
	return names
}
