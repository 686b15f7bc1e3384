package analysis

import (
	"math/big"

	"github.com/typetrace/typetrace/internal/infer"
)

const (
	pyDocURL = "https://docs.python.org/3/library/functions.html#"
	rbDocURL = "https://ruby-doc.org/core/Kernel.html#method-i-"
)

// installBuiltins populates the root state with the singleton values and the
// slice of the standard library both dialects lean on. Every binding here is
// marked builtin and may carry a documentation URL.
func (a *Analyzer) installBuiltins() {
	g := a.Globals

	value := func(name string, t infer.Type) {
		g.Insert(name, nil, t, infer.VariableBinding)
	}
	fn := func(name string, ret infer.Type, url string) {
		b := g.Insert(name, nil, infer.NewBuiltinFunc(ret), infer.FunctionBinding)
		b.URL = url
	}

	value("True", infer.True)
	value("False", infer.False)
	value("None", infer.Nil)

	natural := &infer.IntType{Lower: big.NewInt(0), LowerBounded: true}
	undecided := &infer.BoolType{Value: infer.BoolUndecided}

	// Python builtins.
	fn("len", natural, pyDocURL+"len")
	fn("abs", natural, pyDocURL+"abs")
	fn("range", infer.NewList(&infer.IntType{}), pyDocURL+"func-range")
	fn("print", infer.Nil, pyDocURL+"print")
	fn("repr", infer.StrAny, pyDocURL+"repr")
	fn("input", infer.StrAny, pyDocURL+"input")
	fn("str", infer.StrAny, pyDocURL+"func-str")
	fn("int", infer.IntAny, pyDocURL+"int")
	fn("float", infer.FloatAny, pyDocURL+"float")
	fn("bool", undecided, pyDocURL+"bool")
	fn("list", infer.NewList(nil), pyDocURL+"func-list")
	fn("tuple", infer.NewTuple(), pyDocURL+"func-tuple")
	fn("dict", infer.NewDict(nil, nil), pyDocURL+"func-dict")
	fn("set", infer.NewSet(nil), pyDocURL+"func-set")
	fn("isinstance", undecided, pyDocURL+"isinstance")
	fn("hasattr", undecided, pyDocURL+"hasattr")
	fn("sorted", infer.NewList(nil), pyDocURL+"sorted")
	fn("min", infer.Unknown, pyDocURL+"min")
	fn("max", infer.Unknown, pyDocURL+"max")
	fn("sum", infer.IntAny, pyDocURL+"sum")
	fn("open", infer.Unknown, pyDocURL+"open")

	// Ruby kernel methods.
	fn("puts", infer.Nil, rbDocURL+"puts")
	fn("p", infer.Unknown, rbDocURL+"p")
	fn("gets", infer.StrAny, rbDocURL+"gets")
	fn("rand", infer.FloatAny, rbDocURL+"rand")
	fn("require", undecided, rbDocURL+"require")
	fn("require_relative", undecided, rbDocURL+"require_relative")
	fn("raise", infer.Cont, rbDocURL+"raise")
	fn("attr_accessor", infer.Nil, "https://ruby-doc.org/core/Module.html#method-i-attr_accessor")
	fn("attr_reader", infer.Nil, "https://ruby-doc.org/core/Module.html#method-i-attr_reader")
	fn("attr_writer", infer.Nil, "https://ruby-doc.org/core/Module.html#method-i-attr_writer")
	fn("lambda", infer.Unknown, rbDocURL+"lambda")
	fn("proc", infer.Unknown, rbDocURL+"proc")

	a.installBuiltinModules()
}

// installBuiltinModules registers the standard-library module stubs the
// analyzer resolves attribute access against.
func (a *Analyzer) installBuiltinModules() {
	strList := infer.NewList(infer.StrAny)
	strDict := infer.NewDict(infer.StrAny, infer.StrAny)

	mod := func(name, url string, attrs map[string]infer.Type) {
		mt := infer.NewModule(name, "", name, a.Globals)
		for attr, t := range attrs {
			b := mt.Table.Insert(attr, nil, t, infer.AttributeBinding)
			b.URL = url
		}
		b := a.Globals.Insert(name, nil, mt, infer.ModuleBinding)
		b.URL = url
	}

	mod("sys", "https://docs.python.org/3/library/sys.html", map[string]infer.Type{
		"argv":     strList,
		"path":     strList,
		"version":  infer.StrAny,
		"platform": infer.StrAny,
		"maxsize":  infer.IntAny,
	})
	mod("os", "https://docs.python.org/3/library/os.html", map[string]infer.Type{
		"sep":     infer.StrAny,
		"linesep": infer.StrAny,
		"name":    infer.StrAny,
		"environ": strDict,
		"getcwd":  infer.NewBuiltinFunc(infer.StrAny),
		"listdir": infer.NewBuiltinFunc(strList),
	})
	mod("math", "https://docs.python.org/3/library/math.html", map[string]infer.Type{
		"pi":    infer.FloatAny,
		"e":     infer.FloatAny,
		"sqrt":  infer.NewBuiltinFunc(infer.FloatAny),
		"floor": infer.NewBuiltinFunc(infer.IntAny),
		"ceil":  infer.NewBuiltinFunc(infer.IntAny),
	})
	mod("Math", "https://ruby-doc.org/core/Math.html", map[string]infer.Type{
		"PI":   infer.FloatAny,
		"E":    infer.FloatAny,
		"sqrt": infer.NewBuiltinFunc(infer.FloatAny),
		"cbrt": infer.NewBuiltinFunc(infer.FloatAny),
	})
}
