package resolve

import "fmt"

// Kind classifies a Declaration
type Kind string

const (
	KindFunction Kind = "function"
	KindType     Kind = "type"
	KindModule   Kind = "module"
)

// Location is a span of source, relative to the source root
type Location struct {
	File      string `json:"file" yaml:"file"`
	StartLine int    `json:"start_line,omitempty" yaml:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty" yaml:"end_line,omitempty"`
}

// String renders "file:start-end", or just the file (or directory, for
// modules) when there is no line range
func (l Location) String() string {
	if l.StartLine == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d-%d", l.File, l.StartLine, l.EndLine)
}

// Declaration is a located definition captured at resolution time.
// It does not follow later edits to the file it came from.
type Declaration struct {
	QualifiedName string   `json:"qualified_name" yaml:"qualified_name"`
	Name          string   `json:"name" yaml:"name"`
	Package       string   `json:"package" yaml:"package"`
	Kind          Kind     `json:"kind" yaml:"kind"`
	Location      Location `json:"location" yaml:"location"`
	Text          string   `json:"text" yaml:"text"`
	Signature     string   `json:"signature,omitempty" yaml:"signature,omitempty"`
	Doc           string   `json:"doc,omitempty" yaml:"doc,omitempty"`
	Params        []string `json:"params,omitempty" yaml:"params,omitempty"`
	Pending       bool     `json:"pending,omitempty" yaml:"pending,omitempty"`
	Parts         []Part   `json:"parts,omitempty" yaml:"parts,omitempty"` // modules only; Text joins them
}

// Part is one declaration in a module summary. Type is the qualified name
// when the part declares a single type.
type Part struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	Text string `json:"text" yaml:"text"`
}

// TypeKind classifies a TypeNode
type TypeKind string

const (
	TypeStruct    TypeKind = "struct"
	TypeVariant   TypeKind = "variant"
	TypeInterface TypeKind = "interface"
	TypeNamed     TypeKind = "named"
	TypeExternal  TypeKind = "external"
	TypePrimitive TypeKind = "primitive"
)

// Field is one field of a struct type
type Field struct {
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type" yaml:"type"`
	Embedded bool     `json:"embedded,omitempty" yaml:"embedded,omitempty"`
	Refs     []string `json:"refs,omitempty" yaml:"refs,omitempty"`
}

// TypeNode is a resolved type. Fields and Members refer to other nodes by
// qualified name, so a type shared by several fields is stored once.
type TypeNode struct {
	QualifiedName string       `json:"qualified_name" yaml:"qualified_name"`
	Name          string       `json:"name" yaml:"name"`
	Package       string       `json:"package,omitempty" yaml:"package,omitempty"`
	Kind          TypeKind     `json:"kind" yaml:"kind"`
	Underlying    string       `json:"underlying,omitempty" yaml:"underlying,omitempty"`
	Fields        []Field      `json:"fields,omitempty" yaml:"fields,omitempty"`
	Members       []string     `json:"members,omitempty" yaml:"members,omitempty"`
	Methods       []string     `json:"methods,omitempty" yaml:"methods,omitempty"`
	Refs          []string     `json:"refs,omitempty" yaml:"refs,omitempty"`
	Decl          *Declaration `json:"decl,omitempty" yaml:"decl,omitempty"`
}

// Unresolved is a reference that could not be located. It is kept on the
// bundle instead of failing discovery.
type Unresolved struct {
	Ref    string `json:"ref" yaml:"ref"`
	From   string `json:"from,omitempty" yaml:"from,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}
