// Package live swaps function implementations in a running program.
//
// Go cannot rebind a name inside another package, so every unit that takes
// part registers its function-valued package variables here: the owning
// package calls Declare with a pointer to the variable, and any package
// that copied it into a variable of its own calls Bind, naming the symbol
// the copy was taken from. Installing a new
// implementation writes through those pointers, so every holder sees the
// change without being found and rebuilt.
//
//	var Interpret = func(tokens []tokenizer.Token) (float64, error) {
//		return 0, engine.Pending(tokens)
//	}
//
//	func init() { live.Declare("calculator/interpreter.Interpret", &Interpret) }
//
// and in a package holding a copy:
//
//	var interpret = interpreter.Interpret
//
//	func init() { live.Bind("calculator/interpreter.Interpret", "calculator", "interpret", &interpret) }
package live

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"

	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/source"
)

// State of a declared symbol
type State string

const (
	StatePending   State = "pending"
	StateInstalled State = "installed"
)

type binding struct {
	of    string // qualified name of the symbol this variable holds
	scope string
	local string
	ptr   reflect.Value // *func(...)
}

func (b *binding) value() reflect.Value { return b.ptr.Elem() }

type symbol struct {
	qualified string
	owner     *binding
	state     State
	history   []uintptr // identities replaced by installs, oldest first
}

func (s *symbol) replaced(id uintptr) bool {
	for _, h := range s.history {
		if h == id {
			return true
		}
	}
	return false
}

// Registry holds the declared symbols and the bindings of every loaded scope
type Registry struct {
	mu      sync.RWMutex
	symbols map[string]*symbol
	scopes  map[string]map[string]*binding
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		symbols: make(map[string]*symbol),
		scopes:  make(map[string]map[string]*binding),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Declare and Bind
func DefaultRegistry() *Registry { return defaultRegistry }

// Declare registers fnPtr as the owning variable of qualified on the default registry
func Declare(qualified string, fnPtr interface{}) error {
	return defaultRegistry.Declare(qualified, fnPtr)
}

// Bind registers an aliasing variable on the default registry
func Bind(qualified, scope, local string, fnPtr interface{}) error {
	return defaultRegistry.Bind(qualified, scope, local, fnPtr)
}

func funcPointer(fnPtr interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(fnPtr)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Func {
		return reflect.Value{}, errors.Newf("expected a non-nil pointer to a func variable, got %T", fnPtr)
	}
	return v, nil
}

// Declare registers the variable that owns qualified ("import/path.Name").
// The symbol starts out pending. Declaring the same variable again is a
// no-op; declaring a different one under the same name is an error.
func (r *Registry) Declare(qualified string, fnPtr interface{}) error {
	ptr, err := funcPointer(fnPtr)
	if err != nil {
		return errors.Wrapf(err, "declare %s", qualified)
	}
	scope, names := source.SplitQualified(qualified)
	if len(names) != 1 {
		return errors.Newf("declare %s: want import/path.Name", qualified)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.symbols[qualified]; ok {
		if s.owner.ptr.Pointer() == ptr.Pointer() {
			return nil
		}
		return errors.Newf("declare %s: already declared by another variable", qualified)
	}

	b := r.bindLocked(qualified, scope, names[0], ptr)
	r.symbols[qualified] = &symbol{qualified: qualified, owner: b, state: StatePending}
	return nil
}

// Bind registers a variable in scope that holds a copy of qualified. Only
// installs of qualified ever rewrite it. When the copy still holds an
// implementation qualified has since replaced, it is brought up to date on
// the spot, the same as a unit first loaded after an install resolving the
// name afresh. qualified need not be declared yet.
func (r *Registry) Bind(qualified, scope, local string, fnPtr interface{}) error {
	ptr, err := funcPointer(fnPtr)
	if err != nil {
		return errors.Wrapf(err, "bind %s.%s", scope, local)
	}
	if _, names := source.SplitQualified(qualified); len(names) != 1 {
		return errors.Newf("bind %s.%s: want import/path.Name for the aliased symbol, got %s", scope, local, qualified)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bindLocked(qualified, scope, local, ptr)
	s, ok := r.symbols[qualified]
	if ok && s.state == StateInstalled && s.replaced(identity(b.value())) && assignable(s.owner, b) {
		b.value().Set(s.owner.value())
	}
	return nil
}

func (r *Registry) bindLocked(qualified, scope, local string, ptr reflect.Value) *binding {
	locals, ok := r.scopes[scope]
	if !ok {
		locals = make(map[string]*binding)
		r.scopes[scope] = locals
	}
	b := &binding{of: qualified, scope: scope, local: local, ptr: ptr}
	locals[local] = b
	return b
}

// Loaded reports whether scope registered any binding, meaning it has live
// state that can be patched
func (r *Registry) Loaded(scope string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scopes[scope]) > 0
}

// State reports the state of a declared symbol
func (r *Registry) State(qualified string) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.symbols[qualified]
	if !ok {
		return "", errors.NewUnknownSymbol(qualified)
	}
	return s.state, nil
}

// SymbolInfo describes a declared symbol
type SymbolInfo struct {
	Qualified string `json:"qualified" yaml:"qualified"`
	State     State  `json:"state" yaml:"state"`
	Current   string `json:"current" yaml:"current"`
}

// Symbols lists the declared symbols sorted by name
func (r *Registry) Symbols() []SymbolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SymbolInfo, 0, len(r.symbols))
	for q, s := range r.symbols {
		out = append(out, SymbolInfo{Qualified: q, State: s.state, Current: describe(s.owner.value())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Qualified < out[j].Qualified })
	return out
}

// Ref is a typed handle that always reads the declared variable
type Ref[F any] struct {
	reg *Registry
	sym *symbol
}

// Lookup returns a handle to a declared symbol whose type is exactly F
func Lookup[F any](r *Registry, qualified string) (Ref[F], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.symbols[qualified]
	if !ok {
		return Ref[F]{}, errors.NewUnknownSymbol(qualified)
	}
	want := reflect.TypeOf((*F)(nil)).Elem()
	if got := s.owner.value().Type(); got != want {
		return Ref[F]{}, errors.Wrapf(errors.ErrSignatureMismatch, "%s is %s, not %s", qualified, got, want)
	}
	return Ref[F]{reg: r, sym: s}, nil
}

// Get returns the current implementation
func (ref Ref[F]) Get() F {
	ref.reg.mu.RLock()
	defer ref.reg.mu.RUnlock()
	return ref.sym.owner.value().Interface().(F)
}

// identity is the func value's own word: the closure it points at. Two
// closures of the same literal share code but not identity.
func identity(v reflect.Value) uintptr {
	if !v.CanAddr() {
		c := reflect.New(v.Type()).Elem()
		c.Set(v)
		v = c
	}
	return *(*uintptr)(v.Addr().UnsafePointer())
}

func describe(v reflect.Value) string {
	if !v.IsValid() || v.IsNil() {
		return "<nil>"
	}
	if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
		return fmt.Sprintf("%s@%#x", fn.Name(), identity(v))
	}
	return fmt.Sprintf("func@%#x", identity(v))
}

func assignable(from, to *binding) bool {
	return from.value().Type().AssignableTo(to.value().Type())
}

