package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typetrace/typetrace/internal/syntax"
)

func parseString(t *testing.T, name, code string) *syntax.Module {
	t.Helper()
	p := New()
	mod, err := p.Parse(filepath.Join("/virtual", name), []byte(code))
	require.NoError(t, err)
	require.NotNil(t, mod)
	return mod
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage("a/b/c.py"))
	assert.Equal(t, "ruby", DetectLanguage("x.rb"))
	assert.Equal(t, "", DetectLanguage("x.txt"))
}

func TestParseFilePython(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	p := New()
	mod, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "app", mod.Name)
	assert.Equal(t, path, mod.File)
	assert.Len(t, mod.SHA1, 40)
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	p := New()
	_, err := p.Parse("notes.txt", []byte("hello"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLanguage))
}

func TestPythonShapes(t *testing.T) {
	code := "import os\n" +
		"\n" +
		"def add(a, b=1):\n" +
		"    return a + b\n" +
		"\n" +
		"class C(Base):\n" +
		"    def m(self):\n" +
		"        pass\n" +
		"\n" +
		"r = add(2, b=3)\n" +
		"t = (1, \"s\")\n"
	mod := parseString(t, "m.py", code)

	var fns []*syntax.Function
	var classes []*syntax.ClassDef
	var calls []*syntax.Call
	var imports []*syntax.Import
	syntax.Walk(mod, func(n syntax.Node) bool {
		switch v := n.(type) {
		case *syntax.Function:
			fns = append(fns, v)
		case *syntax.ClassDef:
			classes = append(classes, v)
		case *syntax.Call:
			calls = append(calls, v)
		case *syntax.Import:
			imports = append(imports, v)
		}
		return true
	})

	require.Len(t, fns, 2)
	add := fns[0]
	assert.Equal(t, "add", add.Name.ID)
	assert.Len(t, add.Args, 2)
	assert.Len(t, add.Defaults, 1)

	require.Len(t, classes, 1)
	assert.Equal(t, "C", classes[0].Name.ID)
	require.Len(t, classes[0].Bases, 1)

	require.Len(t, calls, 1)
	require.Len(t, calls[0].Args, 1)
	require.Len(t, calls[0].Keywords, 1)
	assert.Equal(t, "b", calls[0].Keywords[0].Arg)

	require.Len(t, imports, 1)
	assert.Equal(t, "os", imports[0].ModuleName)
}

func TestPythonLiterals(t *testing.T) {
	code := "a = 0x1f\nb = 3.5\nc = \"hi\"\nd = True\ne = None\n"
	mod := parseString(t, "lit.py", code)

	var ints []*syntax.Int
	var floats []*syntax.Float
	var strs []*syntax.Str
	var bools []*syntax.BoolLit
	var nils []*syntax.NilLit
	syntax.Walk(mod, func(n syntax.Node) bool {
		switch v := n.(type) {
		case *syntax.Int:
			ints = append(ints, v)
		case *syntax.Float:
			floats = append(floats, v)
		case *syntax.Str:
			strs = append(strs, v)
		case *syntax.BoolLit:
			bools = append(bools, v)
		case *syntax.NilLit:
			nils = append(nils, v)
		}
		return true
	})

	require.Len(t, ints, 1)
	assert.Equal(t, int64(31), ints[0].Value.Int64())
	require.Len(t, floats, 1)
	assert.InDelta(t, 3.5, floats[0].Value, 1e-9)
	require.Len(t, strs, 1)
	assert.Equal(t, "hi", strs[0].Value)
	require.Len(t, bools, 1)
	assert.True(t, bools[0].Value)
	require.Len(t, nils, 1)
}

func TestPythonElifChain(t *testing.T) {
	code := "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n"
	mod := parseString(t, "cond.py", code)

	outer := mod.Body.(*syntax.Block).Seq[0].(*syntax.If)
	inner, ok := outer.OrElse.(*syntax.If)
	require.True(t, ok, "elif should nest in the else position")
	_, ok = inner.OrElse.(*syntax.Block)
	assert.True(t, ok, "final else should be a block")
}

func TestRubyShapes(t *testing.T) {
	code := "class Greeter < Base\n" +
		"  def initialize(name)\n" +
		"    @name = name\n" +
		"  end\n" +
		"end\n" +
		"\n" +
		"g = Greeter.new(\"x\")\n" +
		"puts g\n"
	mod := parseString(t, "m.rb", code)

	var classes []*syntax.ClassDef
	var fns []*syntax.Function
	var calls []*syntax.Call
	syntax.Walk(mod, func(n syntax.Node) bool {
		switch v := n.(type) {
		case *syntax.ClassDef:
			classes = append(classes, v)
		case *syntax.Function:
			fns = append(fns, v)
		case *syntax.Call:
			calls = append(calls, v)
		}
		return true
	})

	require.Len(t, classes, 1)
	assert.Equal(t, "Greeter", classes[0].Name.ID)
	require.Len(t, classes[0].Bases, 1)

	require.Len(t, fns, 1)
	assert.Equal(t, "initialize", fns[0].Name.ID)
	require.Len(t, fns[0].Args, 1)

	require.Len(t, calls, 2)
	attr, ok := calls[0].Func.(*syntax.Attribute)
	require.True(t, ok)
	assert.Equal(t, "new", attr.Attr.ID)
}

func TestRubyImplicitReturn(t *testing.T) {
	code := "def last\n  1\nend\n"
	mod := parseString(t, "r.rb", code)

	fn := mod.Body.(*syntax.Block).Seq[0].(*syntax.Function)
	body := fn.Body.(*syntax.Block)
	require.NotEmpty(t, body.Seq)
	_, ok := body.Seq[len(body.Seq)-1].(*syntax.Return)
	assert.True(t, ok, "trailing expression should desugar to return")
}

func TestParentsAreSet(t *testing.T) {
	mod := parseString(t, "p.py", "def f():\n    return 1\n")
	syntax.Walk(mod, func(n syntax.Node) bool {
		for _, c := range n.Children() {
			if c == nil {
				continue
			}
			require.Same(t, n, c.Parent())
		}
		return true
	})
	assert.Equal(t, mod.File, syntax.FileOf(mod.Body))
}
