package resolve

import (
	"context"
	"go/ast"
	"go/types"
	"sort"
	"strings"

	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
	"github.com/teranos/jitter/source"
)

// ResolveSignature resolves every type referenced by a function's type
// parameters, parameters and results, and returns the qualified names it
// referenced directly. Names that fail to type-check are recorded as
// unresolved rather than returned as errors.
func (r *Resolver) ResolveSignature(ctx context.Context, decl *Declaration) ([]string, error) {
	if decl.Kind != KindFunction {
		return nil, errors.Newf("%s is a %s, not a function", decl.QualifiedName, decl.Kind)
	}

	p := r.pkg(ctx, decl.Package)
	if p == nil {
		r.miss(decl.Package, decl.QualifiedName, "package could not be loaded")
		return nil, errors.NewUnresolvable("package %s could not be loaded", decl.Package)
	}

	ft, _ := funcType(p, decl.Name)
	if ft == nil {
		r.miss(decl.QualifiedName, "", "declaration not found by the type checker")
		return nil, errors.NewUnresolvable("%s not found in loaded package", decl.QualifiedName)
	}

	w := &walker{r: r, ctx: ctx}
	for _, list := range []*ast.FieldList{ft.TypeParams, ft.Params, ft.Results} {
		if list == nil {
			continue
		}
		for _, field := range list.List {
			for _, bad := range invalidRefs(p.TypesInfo, field.Type) {
				r.miss(bad, decl.QualifiedName, "undefined type")
			}
			w.visit(p.TypesInfo.TypeOf(field.Type))
		}
	}

	r.log.Debugw("Resolved signature",
		logger.FieldTarget, decl.QualifiedName,
		logger.FieldTypes, len(r.Types()))
	return w.refs, nil
}

// ResolveType resolves a reference: a primitive name, an
// "import/path.Name" type, or a union "A | B" of such references.
// Primitives are returned but never added to the type set.
func (r *Resolver) ResolveType(ctx context.Context, ref string) (*TypeNode, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "|") {
		return r.resolveUnion(ctx, ref)
	}

	if obj, ok := types.Universe.Lookup(ref).(*types.TypeName); ok {
		return &TypeNode{QualifiedName: obj.Name(), Name: obj.Name(), Kind: TypePrimitive}, nil
	}

	r.mu.Lock()
	n, ok := r.memo[ref]
	r.mu.Unlock()
	if ok {
		return n, nil
	}

	pkgPath, names := source.SplitQualified(ref)
	if len(names) != 1 {
		r.miss(ref, "", "not a type reference")
		return nil, errors.NewUnresolvable("%s is not a type reference", ref)
	}

	if !r.snap.InModule(pkgPath) {
		return r.external(pkgPath, names[0]), nil
	}

	p := r.pkg(ctx, pkgPath)
	if p == nil {
		r.miss(ref, "", "package could not be loaded")
		return nil, errors.NewUnresolvable("package %s could not be loaded", pkgPath)
	}
	tn, ok := p.Types.Scope().Lookup(names[0]).(*types.TypeName)
	if !ok {
		r.miss(ref, "", "no such type")
		return nil, errors.NewUnresolvable("no type named %s", ref)
	}
	named, ok := types.Unalias(tn.Type()).(*types.Named)
	if !ok {
		r.miss(ref, "", "not a named type")
		return nil, errors.NewUnresolvable("%s does not name a defined type", ref)
	}

	w := &walker{r: r, ctx: ctx}
	q := w.visitNamed(named)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memo[q], nil
}

func (r *Resolver) resolveUnion(ctx context.Context, ref string) (*TypeNode, error) {
	var members []string
	for _, term := range strings.Split(ref, "|") {
		n, err := r.ResolveType(ctx, term)
		if err != nil {
			continue
		}
		members = append(members, n.QualifiedName)
	}
	if len(members) == 0 {
		return nil, errors.NewUnresolvable("no member of %s resolved", ref)
	}

	q := strings.Join(members, " | ")
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.memo[q]; ok {
		return n, nil
	}
	n := &TypeNode{QualifiedName: q, Name: q, Kind: TypeVariant, Members: members}
	r.memo[q] = n
	r.order = append(r.order, n)
	return n, nil
}

// external records a named type from outside the module without recursing
func (r *Resolver) external(pkgPath, name string) *TypeNode {
	q := pkgPath + "." + name
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.memo[q]; ok {
		return n
	}
	n := &TypeNode{QualifiedName: q, Name: name, Package: pkgPath, Kind: TypeExternal}
	r.memo[q] = n
	r.order = append(r.order, n)
	return n
}

// walker visits type expressions and collects the named types it meets
type walker struct {
	r    *Resolver
	ctx  context.Context
	refs []string
}

func (w *walker) add(q string) {
	if q == "" {
		return
	}
	for _, have := range w.refs {
		if have == q {
			return
		}
	}
	w.refs = append(w.refs, q)
}

// visit unwraps composite types down to their named components
func (w *walker) visit(t types.Type) {
	if t == nil {
		return
	}
	switch t := types.Unalias(t).(type) {
	case *types.Named:
		w.add(w.visitNamed(t))
		for i := 0; i < t.TypeArgs().Len(); i++ {
			w.visit(t.TypeArgs().At(i))
		}
	case *types.Pointer:
		w.visit(t.Elem())
	case *types.Slice:
		w.visit(t.Elem())
	case *types.Array:
		w.visit(t.Elem())
	case *types.Chan:
		w.visit(t.Elem())
	case *types.Map:
		w.visit(t.Key())
		w.visit(t.Elem())
	case *types.Signature:
		w.visitTuple(t.Params())
		w.visitTuple(t.Results())
	case *types.TypeParam:
		w.visit(t.Constraint())
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			w.visit(t.Field(i).Type())
		}
	case *types.Interface:
		for i := 0; i < t.NumEmbeddeds(); i++ {
			w.visit(t.EmbeddedType(i))
		}
		for i := 0; i < t.NumExplicitMethods(); i++ {
			w.visit(t.ExplicitMethod(i).Type())
		}
	case *types.Union:
		for i := 0; i < t.Len(); i++ {
			w.visit(t.Term(i).Type())
		}
	}
}

func (w *walker) visitTuple(tuple *types.Tuple) {
	for i := 0; i < tuple.Len(); i++ {
		w.visit(tuple.At(i).Type())
	}
}

// visitNamed resolves a named type and returns its qualified name, or ""
// for universe types. The node enters the memo before its parts are
// visited, so a type that refers back to itself terminates.
func (w *walker) visitNamed(named *types.Named) string {
	r := w.r
	obj := named.Origin().Obj()
	if obj.Pkg() == nil {
		return ""
	}
	pkgPath := obj.Pkg().Path()
	if !r.snap.InModule(pkgPath) {
		return r.external(pkgPath, obj.Name()).QualifiedName
	}

	q := pkgPath + "." + obj.Name()
	r.mu.Lock()
	if _, ok := r.memo[q]; ok {
		r.mu.Unlock()
		return q
	}
	n := &TypeNode{QualifiedName: q, Name: obj.Name(), Package: pkgPath}
	r.memo[q] = n
	r.order = append(r.order, n)
	r.mu.Unlock()

	if td, err := r.snap.FindType(pkgPath, obj.Name()); err == nil {
		n.Decl = TypeDeclaration(td)
	}

	qual := qualifier(pkgPath)
	origin := named.Origin()
	switch u := origin.Underlying().(type) {
	case *types.Struct:
		n.Kind = TypeStruct
		w.structFields(n, u, qual)
	case *types.Interface:
		w.interfaceNode(n, origin, u, qual)
	default:
		n.Kind = TypeNamed
		n.Underlying = types.TypeString(u, qual)
		sub := &walker{r: r, ctx: w.ctx}
		sub.visit(u)
		n.Refs = sub.refs
	}
	return q
}

func (w *walker) structFields(n *TypeNode, st *types.Struct, qual types.Qualifier) {
	broken := false
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		sub := &walker{r: w.r, ctx: w.ctx}
		sub.visit(f.Type())
		n.Fields = append(n.Fields, Field{
			Name:     f.Name(),
			Type:     types.TypeString(f.Type(), qual),
			Embedded: f.Embedded(),
			Refs:     sub.refs,
		})
		broken = broken || containsInvalid(f.Type())
	}
	if broken {
		w.invalidFields(n)
	}
}

// invalidFields records the names behind struct fields that did not type-check
func (w *walker) invalidFields(n *TypeNode) {
	p := w.r.pkg(w.ctx, n.Package)
	if p == nil {
		return
	}
	ts := typeSpec(p, n.Name)
	if ts == nil {
		return
	}
	st, ok := ts.Type.(*ast.StructType)
	if !ok {
		return
	}
	for _, field := range st.Fields.List {
		for _, bad := range invalidRefs(p.TypesInfo, field.Type) {
			w.r.miss(bad, n.QualifiedName, "undefined type")
		}
	}
}

// interfaceNode classifies an interface. A constraint union, or a method
// set implemented by concrete types of the same package, is a variant set;
// anything else stays an interface.
func (w *walker) interfaceNode(n *TypeNode, named *types.Named, iface *types.Interface, qual types.Qualifier) {
	for i := 0; i < iface.NumMethods(); i++ {
		m := iface.Method(i)
		n.Methods = append(n.Methods, m.Name()+strings.TrimPrefix(types.TypeString(m.Type(), qual), "func"))
	}

	if !iface.IsMethodSet() {
		n.Kind = TypeVariant
		for i := 0; i < iface.NumEmbeddeds(); i++ {
			u, ok := iface.EmbeddedType(i).(*types.Union)
			if !ok {
				continue
			}
			for j := 0; j < u.Len(); j++ {
				sub := &walker{r: w.r, ctx: w.ctx}
				sub.visit(u.Term(j).Type())
				for _, q := range sub.refs {
					n.Members = appendUnique(n.Members, q)
				}
			}
		}
		return
	}

	impls := w.implementers(named, iface)
	if iface.NumMethods() == 0 || len(impls) == 0 {
		n.Kind = TypeInterface
		sub := &walker{r: w.r, ctx: w.ctx}
		sub.visit(iface)
		n.Refs = sub.refs
		return
	}

	n.Kind = TypeVariant
	for _, impl := range impls {
		n.Members = append(n.Members, w.visitNamed(impl))
	}
}

// implementers lists the concrete named types declared in the interface's
// package that implement it through a value or pointer receiver, in
// declaration order
func (w *walker) implementers(named *types.Named, iface *types.Interface) []*types.Named {
	pkg := named.Obj().Pkg()
	scope := pkg.Scope()

	var out []*types.Named
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		t, ok := tn.Type().(*types.Named)
		if !ok || t.TypeParams().Len() > 0 {
			continue
		}
		if _, isIface := t.Underlying().(*types.Interface); isIface {
			continue
		}
		if types.Implements(t, iface) || types.Implements(types.NewPointer(t), iface) {
			out = append(out, t)
		}
	}

	fset := w.r.fset
	sort.SliceStable(out, func(i, j int) bool {
		a, b := fset.Position(out[i].Obj().Pos()), fset.Position(out[j].Obj().Pos())
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Offset < b.Offset
	})
	return out
}

// qualifier prints types of the current package unqualified and everything
// else by package name
func qualifier(current string) types.Qualifier {
	return func(p *types.Package) string {
		if p.Path() == current {
			return ""
		}
		return p.Name()
	}
}

func containsInvalid(t types.Type) bool {
	switch t := t.(type) {
	case *types.Basic:
		return t.Kind() == types.Invalid
	case *types.Pointer:
		return containsInvalid(t.Elem())
	case *types.Slice:
		return containsInvalid(t.Elem())
	case *types.Array:
		return containsInvalid(t.Elem())
	case *types.Map:
		return containsInvalid(t.Key()) || containsInvalid(t.Elem())
	case *types.Chan:
		return containsInvalid(t.Elem())
	}
	return false
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
