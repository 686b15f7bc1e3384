// Package syntax defines the AST consumed by the analyzer. Nodes are plain
// data: evaluation lives in the analysis package, so a new language frontend
// only has to produce these shapes.
package syntax

// Node is the common interface of every AST variant. Start and End are byte
// offsets into the source file. Only module roots carry a file path; every
// other node reaches it through the parent chain.
type Node interface {
	Start() int
	End() int
	Parent() Node
	SetParent(Node)
	Children() []Node
}

// Span is embedded by every node variant. The parent link is unexported so
// serialized trees stay acyclic; SetParents restores it after deserialization.
type Span struct {
	StartByte int
	EndByte   int
	parent    Node
}

func (s *Span) Start() int         { return s.StartByte }
func (s *Span) End() int           { return s.EndByte }
func (s *Span) Parent() Node       { return s.parent }
func (s *Span) SetParent(p Node)   { s.parent = p }
func (s *Span) Length() int        { return s.EndByte - s.StartByte }

// SetParents wires the parent back-references for the whole subtree rooted at
// n. Must run before analysis and after loading a tree from the disk cache.
func SetParents(n Node) {
	if n == nil {
		return
	}
	for _, c := range n.Children() {
		if c == nil {
			continue
		}
		c.SetParent(n)
		SetParents(c)
	}
}

// RootOf walks the parent chain to the module root.
func RootOf(n Node) Node {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n
}

// FileOf returns the file of the nearest ancestor that carries one, usually
// the module root. Empty for detached nodes.
func FileOf(n Node) string {
	for ; n != nil; n = n.Parent() {
		if m, ok := n.(*Module); ok {
			return m.File
		}
	}
	return ""
}

// Walk visits n and its descendants in source order. If f returns false for a
// node its children are skipped.
func Walk(n Node, f func(Node) bool) {
	if n == nil {
		return
	}
	if !f(n) {
		return
	}
	for _, c := range n.Children() {
		if c != nil {
			Walk(c, f)
		}
	}
}

// DocString returns the string literal that documents a Module, Function or
// ClassDef. Only the first statement of the body counts; leading comments are
// not docstrings.
func DocString(n Node) *Str {
	var body Node
	switch d := n.(type) {
	case *Module:
		body = d.Body
	case *Function:
		body = d.Body
	case *ClassDef:
		body = d.Body
	default:
		return nil
	}
	b, ok := body.(*Block)
	if !ok || len(b.Seq) == 0 {
		return nil
	}
	expr, ok := b.Seq[0].(*ExprStmt)
	if !ok {
		return nil
	}
	s, _ := expr.Value.(*Str)
	return s
}
