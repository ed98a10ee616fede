package bundle

import (
	"fmt"
	"strings"

	"github.com/teranos/jitter/annotation"
	"github.com/teranos/jitter/resolve"
)

// Render produces the canonical text form. Section order and labels are
// fixed, every section is present even when empty, and all paths are
// relative to the source root, so unchanged source renders byte-identically.
func Render(b *Bundle) string {
	var sb strings.Builder
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(&sb, format, args...)
	}

	renderTarget(&sb, b)

	w("\n== types (%d) ==\n", len(b.Types))
	for _, n := range b.Types {
		w("-- %s  [%s] --\n", n.QualifiedName, typeLocation(n))
		if text := typeText(n); text != "" {
			w("%s\n", text)
		}
	}

	w("\n== collaborators (%d) ==\n", len(b.Collaborators))
	for _, c := range b.Collaborators {
		renderCollaborator(&sb, b, c)
	}

	w("\n== call stack (outer to inner, %d) ==\n", len(b.Stack))
	if b.Truncated {
		w("(truncated: outer frames beyond depth %d omitted)\n", b.MaxDepth)
	}
	for i, f := range b.Stack {
		w("%d. %s  [%s:%d]\n", i+1, f.Function, f.File, f.CallLine)
		w("   %s\n", f.CallText)
	}

	w("\n== unresolved (%d) ==\n", len(b.Unresolved)+len(b.Diagnostics))
	for _, u := range b.Unresolved {
		if u.From != "" {
			w("- %s (in %s): %s\n", u.Ref, u.From, u.Reason)
		} else {
			w("- %s: %s\n", u.Ref, u.Reason)
		}
	}
	for _, d := range b.Diagnostics {
		w("- @%s: malformed annotation: %s\n", d.Raw, d.Message)
	}

	return sb.String()
}

func renderTarget(sb *strings.Builder, b *Bundle) {
	t := b.Target
	sb.WriteString("== target ==\n")
	sb.WriteString(t.QualifiedName + "  [" + t.Location.String() + "]")
	if t.Pending {
		sb.WriteString("  (pending)")
	}
	sb.WriteString("\n" + t.Signature + "\n")
	if t.Doc != "" {
		sb.WriteString("\n" + t.Doc + "\n")
	}

	if len(b.Arguments) > 0 {
		sb.WriteString("\n-- arguments --\n")
		for _, a := range b.Arguments {
			sb.WriteString(a.Name + " = " + a.Value + "\n")
		}
	}
}

func renderCollaborator(sb *strings.Builder, b *Bundle, c annotation.Reference) {
	if c.Target == nil {
		fmt.Fprintf(sb, "-- @%s  unresolved: %s --\n", c.Raw, c.Reason)
		return
	}

	d := c.Target
	fmt.Fprintf(sb, "-- @%s  as %s  [%s %s  %s]", c.Raw, c.Alias, d.Kind, d.QualifiedName, d.Location)
	if c.Pending {
		sb.WriteString("  (pending)")
	}
	sb.WriteString(" --\n")

	// A type listed under types is not repeated
	if d.Kind == resolve.KindType && b.HasType(d.QualifiedName) {
		sb.WriteString("(declared under types)\n")
		return
	}
	if d.Kind == resolve.KindModule && len(d.Parts) > 0 {
		for _, p := range d.Parts {
			if p.Type != "" && b.HasType(p.Type) {
				fmt.Fprintf(sb, "type %s  (declared under types)\n", strings.TrimPrefix(p.Type, d.QualifiedName+"."))
				continue
			}
			sb.WriteString(p.Text + "\n")
		}
		return
	}
	sb.WriteString(d.Text + "\n")
}

func typeLocation(n *resolve.TypeNode) string {
	if n.Decl != nil {
		return n.Decl.Location.String()
	}
	return string(n.Kind)
}

func typeText(n *resolve.TypeNode) string {
	var parts []string
	if n.Decl != nil {
		parts = append(parts, n.Decl.Text)
	}
	if n.Kind == resolve.TypeVariant && len(n.Members) > 0 {
		parts = append(parts, "members: "+strings.Join(n.Members, " | "))
	}
	return strings.Join(parts, "\n")
}
