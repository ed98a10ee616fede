package source

import (
	"context"
	"go/ast"
	"go/token"
	"sort"
	"strconv"
)

// Alias kinds
const (
	ViaImport = "import" // var local = pkg.Name
	ViaLocal  = "local"  // var local = Name, inside the declaring package
	ViaDot    = "dot"    // var local = Name, with the declaring package dot-imported
)

// Alias is a package-level variable in one scope bound directly to a
// symbol owned by another name, rather than reached through it
type Alias struct {
	Scope string `json:"scope" yaml:"scope"` // import path holding the alias
	Local string `json:"local" yaml:"local"`
	File  string `json:"file" yaml:"file"` // relative to the root
	Line  int    `json:"line" yaml:"line"`
	Via   string `json:"via" yaml:"via"`
}

// Aliases scans the whole tree for package-level variables initialised
// directly from importPath.name. Results are sorted by scope, file and line.
func (s *Snapshot) Aliases(ctx context.Context, importPath, name string) ([]Alias, error) {
	files, err := s.Walk(ctx)
	if err != nil {
		return nil, err
	}

	pkgName := s.PackageName(importPath)
	var out []Alias
	for _, f := range files {
		out = append(out, fileAliases(f, importPath, pkgName, name)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Local < b.Local
	})
	return out, nil
}

func fileAliases(f *File, importPath, pkgName, name string) []Alias {
	samePackage := f.Package == importPath
	local, dot := importedAs(f.AST, importPath, pkgName)
	if !samePackage && local == "" && !dot {
		return nil
	}

	var out []Alias
	for _, decl := range f.AST.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			continue
		}
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, ident := range vs.Names {
				if i >= len(vs.Values) || ident.Name == "_" {
					continue
				}
				via := aliasKind(unparen(vs.Values[i]), local, name, samePackage, dot)
				if via == "" || (via == ViaLocal && ident.Name == name) {
					continue
				}
				out = append(out, Alias{
					Scope: f.Package,
					Local: ident.Name,
					File:  f.Rel,
					Line:  f.LineOf(ident.Pos()),
					Via:   via,
				})
			}
		}
	}
	return out
}

func aliasKind(value ast.Expr, local, name string, samePackage, dot bool) string {
	switch v := value.(type) {
	case *ast.SelectorExpr:
		if x, ok := v.X.(*ast.Ident); ok && local != "" && x.Name == local && v.Sel.Name == name {
			return ViaImport
		}
	case *ast.Ident:
		if v.Name != name {
			return ""
		}
		if samePackage {
			return ViaLocal
		}
		if dot {
			return ViaDot
		}
	}
	return ""
}

// importedAs reports the local name under which file imports importPath,
// and whether it is dot-imported
func importedAs(file *ast.File, importPath, pkgName string) (string, bool) {
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != importPath {
			continue
		}
		if imp.Name == nil {
			return pkgName, false
		}
		switch imp.Name.Name {
		case ".":
			return "", true
		case "_":
			return "", false
		default:
			return imp.Name.Name, false
		}
	}
	return "", false
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}
