package analysis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typetrace/typetrace/internal/analysis"
	"github.com/typetrace/typetrace/internal/astcache"
	"github.com/typetrace/typetrace/internal/infer"
	"github.com/typetrace/typetrace/internal/parser"
)

// analyzeSource writes code to a temp module and runs a full pass over it.
func analyzeSource(t *testing.T, filename, code string) (*analysis.Analyzer, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(code), 0o644))

	cache, err := astcache.New(parser.New(), "")
	require.NoError(t, err)
	a, err := analysis.New(cache, analysis.Options{Quiet: true})
	require.NoError(t, err)
	require.NoError(t, a.Analyze(dir))
	a.Finish()

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return a, abs
}

func moduleTable(t *testing.T, a *analysis.Analyzer, path string) *infer.State {
	t.Helper()
	mt := a.ModuleForFile(path)
	require.NotNil(t, mt, "module not registered for %s", path)
	return mt.Table
}

func localType(t *testing.T, table *infer.State, name string) infer.Type {
	t.Helper()
	bs := table.LookupLocal(name)
	require.NotEmpty(t, bs, "no binding for %s", name)
	types := make([]infer.Type, len(bs))
	for i, b := range bs {
		types[i] = b.Type
	}
	return infer.UnionAll(types...)
}

func TestLiteralAssignmentAndArithmetic(t *testing.T) {
	a, path := analyzeSource(t, "main.py", "x = 1\ny = x + 2\n")
	table := moduleTable(t, a, path)

	assert.Equal(t, "int(1)", localType(t, table, "x").String())
	assert.Equal(t, "int(3)", localType(t, table, "y").String())
}

func TestCallMemoization(t *testing.T) {
	code := "def f(a, b=2):\n    return a + b\n\nf(3)\nf(3, 4)\n"
	a, path := analyzeSource(t, "main.py", code)
	table := moduleTable(t, a, path)

	bs := table.LookupLocal("f")
	require.Len(t, bs, 1)
	ft, ok := bs[0].Type.(*infer.FuncType)
	require.True(t, ok)

	mappings := ft.Mappings()
	require.Len(t, mappings, 2)

	byFrom := make(map[string]string)
	for _, m := range mappings {
		byFrom[infer.Sig(m.From)] = m.To.String()
	}
	assert.Equal(t, "int(5)", byFrom["(int(3),int(2))"])
	assert.Equal(t, "int(7)", byFrom["(int(3),int(4))"])
}

func TestRecursionTerminatesWithCycleGuard(t *testing.T) {
	code := "def fact(n):\n    return 1 if n <= 1 else n * fact(n - 1)\n\nfact(5)\n"
	a, path := analyzeSource(t, "main.py", code)
	table := moduleTable(t, a, path)

	bs := table.LookupLocal("fact")
	require.Len(t, bs, 1)
	ft, ok := bs[0].Type.(*infer.FuncType)
	require.True(t, ok)

	mappings := ft.Mappings()
	require.NotEmpty(t, mappings, "fact was applied, the cache must hold a result")

	// The recursive edge returns an unknown under the cycle guard, so the
	// inferred result is a union of int and unknown.
	var top infer.Type
	for _, m := range mappings {
		if infer.Sig(m.From) == "(int(5))" {
			top = m.To
		}
	}
	require.NotNil(t, top, "missing memo entry for the top-level call")
	hasInt, hasUnknown := false, false
	for _, m := range infer.Members(top) {
		switch m.(type) {
		case *infer.IntType:
			hasInt = true
		case *infer.UnknownType:
			hasUnknown = true
		}
	}
	assert.True(t, hasInt, "expected an int member in %v", top)
	assert.True(t, hasUnknown, "expected the cycle unknown in %v", top)
}

func TestBranchUnionAndReferences(t *testing.T) {
	code := "def cond():\n    return 1\n\nif cond():\n    x = \"s\"\nelse:\n    x = 1\nprint(x)\n"
	a, path := analyzeSource(t, "main.py", code)
	table := moduleTable(t, a, path)

	bs := table.LookupLocal("x")
	require.Len(t, bs, 2, "both assignments must survive the merge")

	merged := localType(t, table, "x")
	assert.True(t, infer.Contains(merged, infer.StrAny), "union misses str: %v", merged)
	assert.True(t, infer.Contains(merged, infer.IntAny), "union misses int: %v", merged)

	// The single use of x resolves to both definition sites.
	found := false
	for _, bindings := range a.References() {
		if len(bindings) == 2 && bindings[0].Name == "x" && bindings[1].Name == "x" {
			found = true
		}
	}
	assert.True(t, found, "expected one reference resolving to both x bindings")
}

func TestTupleUnpack(t *testing.T) {
	a, path := analyzeSource(t, "main.py", "a, b = (1, \"hi\")\n")
	table := moduleTable(t, a, path)

	assert.Equal(t, "int(1)", localType(t, table, "a").String())
	assert.Equal(t, "str", localType(t, table, "b").String())
}

func TestUncalledFunctionsAreAppliedAtFinish(t *testing.T) {
	code := "def unreached(p, q):\n    r = p\n    return r\n"
	a, path := analyzeSource(t, "main.py", code)
	table := moduleTable(t, a, path)

	bs := table.LookupLocal("unreached")
	require.Len(t, bs, 1)
	ft := bs[0].Type.(*infer.FuncType)

	// Finish applied it with unknown arguments, so the parameter and local
	// bindings exist in the global index.
	require.NotEmpty(t, ft.Mappings())
	var names []string
	for _, b := range a.AllBindings() {
		names = append(names, b.QName)
	}
	assert.Contains(t, names, "main.unreached.p")
	assert.Contains(t, names, "main.unreached.r")
}

func TestUndefinedNameDiagnostic(t *testing.T) {
	a, _ := analyzeSource(t, "main.py", "y = missing + 1\n")

	found := false
	for _, diags := range a.Problems() {
		for _, d := range diags {
			if d.Message == "undefined name: missing" {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestMissingReturnDiagnostic(t *testing.T) {
	code := "def f(flag):\n    if flag:\n        return 1\n\nf(0)\n"
	a, _ := analyzeSource(t, "main.py", code)

	found := false
	for _, diags := range a.Problems() {
		for _, d := range diags {
			if d.Message == "function not always returns a value" {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestClassInstantiationAndAttributes(t *testing.T) {
	code := "class Point:\n" +
		"    def __init__(self, x, y):\n" +
		"        self.x = x\n" +
		"        self.y = y\n" +
		"\n" +
		"p = Point(1, 2)\n" +
		"v = p.x\n"
	a, path := analyzeSource(t, "main.py", code)
	table := moduleTable(t, a, path)

	pType := localType(t, table, "p")
	inst, ok := pType.(*infer.InstanceType)
	require.True(t, ok, "p should be an instance, got %v", pType)
	assert.Equal(t, "Point", inst.Class.Name)

	assert.Equal(t, "int(1)", localType(t, table, "v").String())
}

func TestQualifiedNamesAreDeterministic(t *testing.T) {
	code := "class Outer:\n    def method(self):\n        inner = 1\n        return inner\n\nOuter().method()\n"

	collect := func() map[string]bool {
		a, _ := analyzeSource(t, "main.py", code)
		out := make(map[string]bool)
		for _, b := range a.AllBindings() {
			out[b.QName] = true
		}
		return out
	}

	first := collect()
	second := collect()
	assert.Equal(t, first, second)
	assert.True(t, first["main.Outer"], "qnames: %v", first)
	assert.True(t, first["main.Outer.method"])
	assert.True(t, first["main.Outer.method.inner"])
}

func TestReferenceCompleteness(t *testing.T) {
	code := "w = 3\nz = w + w\n"
	a, _ := analyzeSource(t, "main.py", code)

	// Every ref in the index appears in some binding's ref set and vice
	// versa.
	refs := a.References()
	for ref, bindings := range refs {
		require.NotEmpty(t, bindings)
		for _, b := range bindings {
			_, ok := b.Refs[ref]
			assert.True(t, ok, "index ref missing from binding %s", b.QName)
		}
	}
	for _, b := range a.AllBindings() {
		for r := range b.Refs {
			_, ok := refs[r]
			assert.True(t, ok, "binding ref missing from index: %s", b.QName)
		}
	}
}

func TestParseFailureIsPerFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.txt.rb"), []byte{0xff, 0xfe, 0x00}, 0o644))

	cache, err := astcache.New(parser.New(), "")
	require.NoError(t, err)
	a, err := analysis.New(cache, analysis.Options{Quiet: true})
	require.NoError(t, err)
	require.NoError(t, a.Analyze(dir))
	a.Finish()

	okPath, _ := filepath.Abs(filepath.Join(dir, "ok.py"))
	assert.NotNil(t, a.ModuleForFile(okPath), "good file must still analyze")
}

func TestRubyMethodAndInstanceVariables(t *testing.T) {
	code := "class Greeter\n" +
		"  def initialize(name)\n" +
		"    @name = name\n" +
		"  end\n" +
		"\n" +
		"  def greet\n" +
		"    @name\n" +
		"  end\n" +
		"end\n" +
		"\n" +
		"g = Greeter.new(\"hi\")\n" +
		"m = g.greet\n"
	a, path := analyzeSource(t, "main.rb", code)
	table := moduleTable(t, a, path)

	gType := localType(t, table, "g")
	inst, ok := gType.(*infer.InstanceType)
	require.True(t, ok, "g should be an instance, got %v", gType)
	assert.Equal(t, "Greeter", inst.Class.Name)

	assert.Equal(t, "str", localType(t, table, "m").String())
}
