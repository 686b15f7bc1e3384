package infer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typetrace/typetrace/internal/syntax"
)

// stubEvaluator satisfies Evaluator for binder tests; attribute targets
// evaluate to a fixed type.
type stubEvaluator struct {
	result   Type
	problems []string
}

func (e *stubEvaluator) Transform(n syntax.Node, s *State) Type {
	if e.result == nil {
		return Unknown
	}
	return e.result
}

func (e *stubEvaluator) Problem(n syntax.Node, msg string) {
	e.problems = append(e.problems, msg)
}

func tupleTarget(ids ...string) *syntax.TupleLit {
	t := &syntax.TupleLit{}
	for _, id := range ids {
		t.Elts = append(t.Elts, name(id))
	}
	return t
}

func TestBindName(t *testing.T) {
	ev := &stubEvaluator{}
	s := NewState(nil, ModuleScope)
	Bind(ev, s, name("x"), StrAny, VariableBinding)

	bs := s.LookupLocal("x")
	require.Len(t, bs, 1)
	assert.Equal(t, VariableBinding, bs[0].Kind)
	assert.Same(t, Type(StrAny), bs[0].Type)
}

func TestBindTupleOfMatchingLength(t *testing.T) {
	ev := &stubEvaluator{}
	s := NewState(nil, ModuleScope)
	rhs := NewTuple(NewIntValue(big.NewInt(1)), NewStrLiteral("hi"))

	Bind(ev, s, tupleTarget("a", "b"), rhs, VariableBinding)

	a := s.LookupLocal("a")[0]
	b := s.LookupLocal("b")[0]
	assert.Equal(t, "int(1)", a.Type.String())
	assert.Equal(t, "str", b.Type.String())
	assert.Empty(t, ev.problems)
}

func TestBindTupleLengthMismatch(t *testing.T) {
	ev := &stubEvaluator{}
	s := NewState(nil, ModuleScope)
	rhs := NewTuple(StrAny)

	Bind(ev, s, tupleTarget("a", "b"), rhs, VariableBinding)

	assert.Same(t, Type(Unknown), s.LookupLocal("a")[0].Type)
	assert.Same(t, Type(Unknown), s.LookupLocal("b")[0].Type)
	require.Len(t, ev.problems, 1)
	assert.Contains(t, ev.problems[0], "unpack")
}

func TestBindTupleFromIterable(t *testing.T) {
	ev := &stubEvaluator{}
	s := NewState(nil, ModuleScope)

	Bind(ev, s, tupleTarget("a", "b", "c"), NewList(StrAny), VariableBinding)
	for _, id := range []string{"a", "b", "c"} {
		assert.Same(t, Type(StrAny), s.LookupLocal(id)[0].Type, id)
	}

	Bind(ev, s, tupleTarget("k"), NewDict(IntAny, StrAny), VariableBinding)
	assert.Same(t, Type(IntAny), s.LookupLocal("k")[0].Type)
}

func TestBindStarredAbsorbsMiddle(t *testing.T) {
	ev := &stubEvaluator{}
	s := NewState(nil, ModuleScope)
	target := &syntax.TupleLit{Elts: []syntax.Node{
		name("head"),
		&syntax.Starred{Value: name("mid")},
		name("tail"),
	}}
	rhs := NewTuple(
		NewIntValue(big.NewInt(1)),
		StrAny,
		Nil,
		NewIntValue(big.NewInt(9)),
	)

	Bind(ev, s, target, rhs, VariableBinding)

	assert.Equal(t, "int(1)", s.LookupLocal("head")[0].Type.String())
	assert.Equal(t, "int(9)", s.LookupLocal("tail")[0].Type.String())

	mid, ok := s.LookupLocal("mid")[0].Type.(*ListType)
	require.True(t, ok)
	assert.True(t, Contains(mid.Elt, StrAny))
	assert.True(t, Contains(mid.Elt, Nil))
}

func TestBindNonIterableReportsProblem(t *testing.T) {
	ev := &stubEvaluator{}
	s := NewState(nil, ModuleScope)

	Bind(ev, s, tupleTarget("a"), NewIntValue(big.NewInt(3)), VariableBinding)
	assert.Same(t, Type(Unknown), s.LookupLocal("a")[0].Type)
	require.Len(t, ev.problems, 1)

	// Unknown right-hand sides bind silently.
	ev2 := &stubEvaluator{}
	Bind(ev2, s, tupleTarget("b"), Unknown, VariableBinding)
	assert.Empty(t, ev2.problems)
}

func TestBindAttributeInsertsIntoTable(t *testing.T) {
	cls := NewClass("Point", nil, nil)
	inst := NewInstance(cls, nil, nil)
	ev := &stubEvaluator{result: inst}
	s := NewState(nil, FunctionScope)

	attr := &syntax.Attribute{Target: name("self"), Attr: name("x")}
	Bind(ev, s, attr, IntAny, VariableBinding)

	bs := inst.Table.LookupAttr("x")
	require.Len(t, bs, 1)
	assert.Equal(t, AttributeBinding, bs[0].Kind)
}

func TestBindSubscriptBindsNothing(t *testing.T) {
	ev := &stubEvaluator{result: NewList(StrAny)}
	s := NewState(nil, ModuleScope)
	sub := &syntax.Subscript{Value: name("xs"), Index: name("i")}

	Bind(ev, s, sub, StrAny, VariableBinding)
	assert.Empty(t, s.Names())
}
