package resolve

import (
	"context"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/source"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedDeps |
	packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo

// pkg loads and type-checks a module package once per run. The snapshot's
// bytes are passed as an overlay so type information matches the text the
// snapshot hands out. Returns nil when the package cannot be loaded.
func (r *Resolver) pkg(ctx context.Context, importPath string) *packages.Package {
	r.mu.Lock()
	p, ok := r.pkgs[importPath]
	r.mu.Unlock()
	if ok {
		return p
	}

	// Pull the package into the snapshot so the overlay covers it
	_, _ = r.snap.PackageFiles(importPath)

	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     r.snap.Root,
		Fset:    r.fset,
		Overlay: r.snap.Overlay(),
		Tests:   false,
	}
	pkgs, err := packages.Load(cfg, importPath)
	if err != nil || len(pkgs) == 0 {
		r.log.Debugw("Package load failed", logger.FieldSymbol, importPath, logger.FieldError, err)
		r.mu.Lock()
		r.pkgs[importPath] = nil
		r.mu.Unlock()
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	packages.Visit(pkgs, nil, func(lp *packages.Package) {
		if _, seen := r.pkgs[lp.PkgPath]; !seen && lp.Types != nil {
			r.pkgs[lp.PkgPath] = lp
		}
	})
	for _, e := range pkgs[0].Errors {
		r.log.Debugw("Package has errors", logger.FieldSymbol, importPath, logger.FieldError, e.Msg)
	}
	if pkgs[0].Types == nil {
		r.pkgs[importPath] = nil
		return nil
	}
	r.pkgs[importPath] = pkgs[0]
	return pkgs[0]
}

// funcType finds the syntax and type of a top-level function ("Name",
// "Recv.Name" or a func-valued var) in a loaded package
func funcType(p *packages.Package, name string) (*ast.FuncType, *types.Signature) {
	for _, file := range p.Syntax {
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				n := d.Name.Name
				if recv := source.ReceiverName(d); recv != "" {
					n = recv + "." + n
				}
				if n != name {
					continue
				}
				if obj, ok := p.TypesInfo.Defs[d.Name].(*types.Func); ok {
					return d.Type, obj.Type().(*types.Signature)
				}
				return d.Type, nil

			case *ast.GenDecl:
				for _, spec := range d.Specs {
					vs, ok := spec.(*ast.ValueSpec)
					if !ok {
						continue
					}
					for i, ident := range vs.Names {
						if ident.Name != name || i >= len(vs.Values) {
							continue
						}
						lit, ok := vs.Values[i].(*ast.FuncLit)
						if !ok {
							continue
						}
						sig, _ := p.TypesInfo.TypeOf(lit).(*types.Signature)
						return lit.Type, sig
					}
				}
			}
		}
	}
	return nil, nil
}

// typeSpec finds the syntax of a named type declaration in a loaded package
func typeSpec(p *packages.Package, name string) *ast.TypeSpec {
	for _, file := range p.Syntax {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok {
				continue
			}
			for _, spec := range gd.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok && ts.Name.Name == name {
					return ts
				}
			}
		}
	}
	return nil
}

// invalidRefs lists the type names inside expr that failed to type-check
func invalidRefs(info *types.Info, expr ast.Expr) []string {
	if info == nil || expr == nil {
		return nil
	}
	var out []string
	ast.Inspect(expr, func(n ast.Node) bool {
		e, ok := n.(ast.Expr)
		if !ok {
			return true
		}
		switch e.(type) {
		case *ast.Ident, *ast.SelectorExpr:
		default:
			return true
		}
		tv, recorded := info.Types[e]
		if recorded && isInvalid(tv.Type) {
			out = append(out, types.ExprString(e))
			return false
		}
		if sel, ok := e.(*ast.SelectorExpr); ok {
			// pkg.Name whose package did not resolve
			if !recorded && info.Uses[sel.Sel] == nil {
				out = append(out, types.ExprString(e))
			}
			return false
		}
		return true
	})
	return out
}

func isInvalid(t types.Type) bool {
	if t == nil {
		return true
	}
	b, ok := t.(*types.Basic)
	return ok && b.Kind() == types.Invalid
}
