package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModule() *Module {
	// def f(): "doc"; return 1
	ret := &Return{Span: Span{StartByte: 20, EndByte: 28}, Value: NewInt("1", 27, 28)}
	doc := &ExprStmt{Span: Span{StartByte: 10, EndByte: 15}, Value: &Str{Span: Span{StartByte: 10, EndByte: 15}, Value: "doc"}}
	fn := &Function{
		Span: Span{StartByte: 0, EndByte: 28},
		Name: &Name{Span: Span{StartByte: 4, EndByte: 5}, ID: "f"},
		Body: &Block{Span: Span{StartByte: 10, EndByte: 28}, Seq: []Node{doc, ret}},
	}
	mod := &Module{
		Span: Span{StartByte: 0, EndByte: 28},
		Name: "sample",
		File: "/tmp/sample.py",
		Body: &Block{Span: Span{StartByte: 0, EndByte: 28}, Seq: []Node{fn}},
	}
	SetParents(mod)
	return mod
}

func TestSetParentsAndFileOf(t *testing.T) {
	mod := sampleModule()
	fn := mod.Body.(*Block).Seq[0].(*Function)

	assert.Same(t, mod.Body, Node(fn).Parent())
	assert.Same(t, mod, RootOf(fn))
	assert.Equal(t, "/tmp/sample.py", FileOf(fn.Body))

	// Parent consistency: every child's parent lists it among children.
	Walk(mod, func(n Node) bool {
		for _, c := range n.Children() {
			if c == nil {
				continue
			}
			require.Same(t, n, c.Parent())
		}
		return true
	})
}

func TestDocString(t *testing.T) {
	mod := sampleModule()
	fn := mod.Body.(*Block).Seq[0].(*Function)

	doc := DocString(fn)
	require.NotNil(t, doc)
	assert.Equal(t, "doc", doc.Value)

	// Only the first statement counts.
	fn.Body.(*Block).Seq = fn.Body.(*Block).Seq[1:]
	assert.Nil(t, DocString(fn))

	// Non-definition nodes have no docstring.
	assert.Nil(t, DocString(fn.Body))
}

func TestWalkOrder(t *testing.T) {
	mod := sampleModule()
	var kinds []string
	Walk(mod, func(n Node) bool {
		switch n.(type) {
		case *Function:
			kinds = append(kinds, "func")
		case *Return:
			kinds = append(kinds, "return")
		case *Int:
			kinds = append(kinds, "int")
		}
		return true
	})
	assert.Equal(t, []string{"func", "return", "int"}, kinds)
}

func TestSetFile(t *testing.T) {
	mod := sampleModule()
	mod.SetFile("/elsewhere/other.rb")
	assert.Equal(t, "/elsewhere/other.rb", mod.File)
	assert.Equal(t, "other", mod.Name)
}
