package source

import (
	"context"
	"go/ast"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/jitter/errors"
)

// Func is a top-level function: a func declaration, a method, or a
// package-level variable initialised with a function literal.
type Func struct {
	Name string // "Name" or "Recv.Name"
	File *File
	Type *ast.FuncType
	Body *ast.BlockStmt
	Doc  *ast.CommentGroup

	// Var is set for `var Name = func(...) {...}` declarations
	Var bool

	pos, end token.Pos
}

// QualifiedName returns "import/path.Name"
func (fn *Func) QualifiedName() string {
	return fn.File.Package + "." + fn.Name
}

// Pos returns the start of the declaration, excluding its doc comment
func (fn *Func) Pos() token.Pos { return fn.pos }

// End returns the end of the declaration
func (fn *Func) End() token.Pos { return fn.end }

// Pending reports whether the body is a pending stub
func (fn *Func) Pending() bool {
	return IsPending(fn.Body)
}

// Funcs lists the top-level functions of f in source order
func Funcs(f *File) []*Func {
	var out []*Func
	for _, decl := range f.AST.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if recv := ReceiverName(d); recv != "" {
				name = recv + "." + name
			}
			out = append(out, &Func{
				Name: name,
				File: f,
				Type: d.Type,
				Body: d.Body,
				Doc:  d.Doc,
				pos:  d.Pos(),
				end:  d.End(),
			})

		case *ast.GenDecl:
			if d.Tok != token.VAR {
				continue
			}
			for _, spec := range d.Specs {
				vs := spec.(*ast.ValueSpec)
				for i, ident := range vs.Names {
					if i >= len(vs.Values) {
						break
					}
					lit, ok := vs.Values[i].(*ast.FuncLit)
					if !ok || ident.Name == "_" {
						continue
					}
					fn := &Func{
						Name: ident.Name,
						File: f,
						Type: lit.Type,
						Body: lit.Body,
						Doc:  vs.Doc,
						Var:  true,
						pos:  vs.Pos(),
						end:  vs.End(),
					}
					// A lone spec takes the whole `var` declaration and its doc
					if !d.Lparen.IsValid() {
						fn.Doc, fn.pos, fn.end = d.Doc, d.Pos(), d.End()
					}
					out = append(out, fn)
				}
			}
		}
	}
	return out
}

// ReceiverName returns the receiver's base type name of a method, or ""
func ReceiverName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	expr := fd.Recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.ParenExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}

// EnclosingFunc returns the top-level function whose declaration spans the
// given line of file p. Closures resolve to the function that contains them.
func (s *Snapshot) EnclosingFunc(p string, line int) (*Func, error) {
	f, err := s.File(p)
	if err != nil {
		return nil, err
	}
	for _, fn := range Funcs(f) {
		if f.LineOf(fn.pos) <= line && line <= f.LineOf(fn.end) {
			return fn, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "no function encloses %s:%d", f.Rel, line)
}

// FindFunc looks up a function by name ("Name" or "Recv.Name") in a module package
func (s *Snapshot) FindFunc(importPath, name string) (*Func, error) {
	files, err := s.PackageFiles(importPath)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		for _, fn := range Funcs(f) {
			if fn.Name == name {
				return fn, nil
			}
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "function %s.%s", importPath, name)
}

// TypeDecl is a located type declaration
type TypeDecl struct {
	Name string
	File *File
	Spec *ast.TypeSpec
	Doc  *ast.CommentGroup

	pos, end token.Pos
}

// Pos returns the start of the declaration, excluding its doc comment
func (td *TypeDecl) Pos() token.Pos { return td.pos }

// End returns the end of the declaration
func (td *TypeDecl) End() token.Pos { return td.end }

// FindType looks up a type declaration by name in a module package
func (s *Snapshot) FindType(importPath, name string) (*TypeDecl, error) {
	files, err := s.PackageFiles(importPath)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		for _, decl := range f.AST.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				if ts.Name.Name != name {
					continue
				}
				td := &TypeDecl{Name: name, File: f, Spec: ts, Doc: ts.Doc, pos: ts.Pos(), end: ts.End()}
				if !gd.Lparen.IsValid() {
					td.Doc, td.pos, td.end = gd.Doc, gd.Pos(), gd.End()
				}
				return td, nil
			}
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "type %s.%s", importPath, name)
}

// PendingFuncs lists every pending stub under the root, sorted by file and line
func (s *Snapshot) PendingFuncs(ctx context.Context) ([]*Func, error) {
	files, err := s.Walk(ctx)
	if err != nil {
		return nil, err
	}

	var out []*Func
	for _, f := range files {
		for _, fn := range Funcs(f) {
			if fn.Pending() {
				out = append(out, fn)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File.Rel != out[j].File.Rel {
			return out[i].File.Rel < out[j].File.Rel
		}
		return out[i].pos < out[j].pos
	})
	return out, nil
}

// PendingHook is the function name whose call marks a body as pending
const PendingHook = "Pending"

// IsPending reports whether a function body is a pending stub. A body is
// pending when one of its top-level statements panics with a
// "not implemented" message or calls a Pending hook.
func IsPending(body *ast.BlockStmt) bool {
	if body == nil {
		return false
	}
	for _, stmt := range body.List {
		switch st := stmt.(type) {
		case *ast.ExprStmt:
			if isPendingCall(st.X) {
				return true
			}
		case *ast.ReturnStmt:
			for _, r := range st.Results {
				if isPendingCall(r) {
					return true
				}
			}
		}
	}
	return false
}

func isPendingCall(expr ast.Expr) bool {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return false
	}
	switch fun := call.Fun.(type) {
	case *ast.SelectorExpr:
		return fun.Sel.Name == PendingHook
	case *ast.Ident:
		if fun.Name == PendingHook {
			return true
		}
		if fun.Name != "panic" || len(call.Args) != 1 {
			return false
		}
		if lit, ok := call.Args[0].(*ast.BasicLit); ok && lit.Kind == token.STRING {
			msg, err := strconv.Unquote(lit.Value)
			return err == nil && strings.Contains(strings.ToLower(msg), "not implemented")
		}
		return isPendingCall(call.Args[0])
	}
	return false
}
