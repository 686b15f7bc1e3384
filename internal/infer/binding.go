package infer

import (
	"github.com/typetrace/typetrace/internal/syntax"
)

// Kind classifies what a binding's definition site is.
type Kind int

const (
	ModuleBinding Kind = iota
	ClassBinding
	MethodBinding
	FunctionBinding
	ConstructorBinding
	ParameterBinding
	VariableBinding
	ScopeBinding
	AttributeBinding
)

var kindNames = [...]string{
	"module", "class", "method", "function", "constructor",
	"parameter", "variable", "scope", "attribute",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Ref is one observed reference to a binding. It is comparable and hashed by
// (file, start, length), so the same occurrence reached twice collapses.
type Ref struct {
	File   string
	Start  int
	Length int
}

// NewRef locates a node occurrence.
func NewRef(n syntax.Node) Ref {
	return Ref{File: syntax.FileOf(n), Start: n.Start(), Length: n.End() - n.Start()}
}

// Binding associates a name with a type at a definition site. It lives for
// the whole process; after analysis the only permitted mutations are
// appending refs and widening the type.
type Binding struct {
	Name    string
	Node    syntax.Node
	Type    Type
	Kind    Kind
	QName   string
	File    string
	Start   int
	Length  int
	Refs    map[Ref]struct{}
	Builtin bool
	URL     string
}

// NewBinding derives location from the defining node; module bindings anchor
// on the whole file.
func NewBinding(name string, node syntax.Node, t Type, kind Kind) *Binding {
	b := &Binding{
		Name: name,
		Node: node,
		Type: t,
		Kind: kind,
		Refs: make(map[Ref]struct{}),
	}
	if node != nil {
		b.File = syntax.FileOf(node)
		b.Start = node.Start()
		b.Length = node.End() - node.Start()
	} else {
		b.Start = -1
		b.Builtin = true
	}
	return b
}

// AddRef records one reference occurrence.
func (b *Binding) AddRef(r Ref) { b.Refs[r] = struct{}{} }

// AddType widens the binding's type.
func (b *Binding) AddType(t Type) { b.Type = Union(b.Type, t) }

// RefList returns the refs in unspecified order.
func (b *Binding) RefList() []Ref {
	out := make([]Ref, 0, len(b.Refs))
	for r := range b.Refs {
		out = append(out, r)
	}
	return out
}
