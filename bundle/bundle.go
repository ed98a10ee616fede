// Package bundle assembles discovery results into a ContextBundle and
// renders it. Assembly is pure composition: nothing is resolved here.
package bundle

import (
	"github.com/teranos/jitter/annotation"
	"github.com/teranos/jitter/callstack"
	"github.com/teranos/jitter/resolve"
)

// Argument is a live value passed to the pending function
type Argument struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Bundle is everything needed to write one pending function. It is
// read-only once assembled.
type Bundle struct {
	Target        *resolve.Declaration    `json:"target" yaml:"target"`
	Arguments     []Argument              `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Types         []*resolve.TypeNode     `json:"types" yaml:"types"`
	Collaborators []annotation.Reference  `json:"collaborators" yaml:"collaborators"`
	Stack         []callstack.StackFrame  `json:"stack" yaml:"stack"`
	Truncated     bool                    `json:"truncated" yaml:"truncated"`
	MaxDepth      int                     `json:"max_depth" yaml:"max_depth"`
	Unresolved    []resolve.Unresolved    `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Diagnostics   []annotation.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Option adds optional parts to a bundle
type Option func(*Bundle)

// WithArguments attaches live argument values
func WithArguments(args []Argument) Option {
	return func(b *Bundle) { b.Arguments = append([]Argument(nil), args...) }
}

// WithUnresolved attaches resolver failures
func WithUnresolved(u []resolve.Unresolved) Option {
	return func(b *Bundle) { b.Unresolved = append([]resolve.Unresolved(nil), u...) }
}

// WithDiagnostics attaches malformed annotations
func WithDiagnostics(d []annotation.Diagnostic) Option {
	return func(b *Bundle) { b.Diagnostics = append([]annotation.Diagnostic(nil), d...) }
}

// Assemble composes a bundle. Inputs are copied; types keep their first
// occurrence and collaborators naming the same declaration are kept once.
func Assemble(target *resolve.Declaration, trail callstack.Trail, types []*resolve.TypeNode, collaborators []annotation.Reference, opts ...Option) *Bundle {
	b := &Bundle{
		Target:    target,
		Stack:     append([]callstack.StackFrame(nil), trail.Frames...),
		Truncated: trail.Truncated,
		MaxDepth:  trail.MaxDepth,
	}

	seenType := make(map[string]bool, len(types))
	for _, n := range types {
		if n == nil || seenType[n.QualifiedName] {
			continue
		}
		seenType[n.QualifiedName] = true
		b.Types = append(b.Types, n)
	}

	seenRef := make(map[string]bool, len(collaborators))
	for _, c := range collaborators {
		key := "raw:" + c.Raw
		if c.Target != nil {
			key = c.Target.QualifiedName
		}
		if seenRef[key] {
			continue
		}
		seenRef[key] = true
		b.Collaborators = append(b.Collaborators, c)
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// HasType reports whether a type with the qualified name is in the bundle
func (b *Bundle) HasType(qualified string) bool {
	for _, n := range b.Types {
		if n.QualifiedName == qualified {
			return true
		}
	}
	return false
}

// Resolved counts the collaborators that have a target
func (b *Bundle) Resolved() int {
	n := 0
	for _, c := range b.Collaborators {
		if c.Target != nil {
			n++
		}
	}
	return n
}
