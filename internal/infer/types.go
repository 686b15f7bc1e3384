// Package infer holds the type lattice, lexical scopes and name bindings that
// the analyzer threads through every AST node.
package infer

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/typetrace/typetrace/internal/syntax"
)

// Type is a value in the inference lattice. Variants are compared
// structurally except functions, classes, modules and instances, which compare by
// identity: that identity is what terminates mutually recursive inference.
type Type interface {
	typ()
	String() string
}

// Process-global singletons. Everything else is allocated per inference.
var (
	Unknown = &UnknownType{}
	Cont    = &ContType{}
	Nil     = &NilType{}
	True    = &BoolType{Value: BoolTrue}
	False   = &BoolType{Value: BoolFalse}

	// Base instances used by builtin bindings.
	IntAny   = &IntType{}
	FloatAny = &FloatType{}
	StrAny   = &StrType{}
)

// UnknownType is the bottom of the lattice: no information. It is not
// zero-sized, so every &UnknownType{} has an address distinct from the
// canonical Unknown and survives Union as a member.
type UnknownType struct{ _ byte }

func (*UnknownType) typ()           {}
func (*UnknownType) String() string { return "?" }

// ContType marks "control continues, no value". It distinguishes statements
// that fall through from those that return nil.
type ContType struct{}

func (*ContType) typ()           {}
func (*ContType) String() string { return "cont" }

type NilType struct{}

func (*NilType) typ()           {}
func (*NilType) String() string { return "nil" }

// BoolValue is the three-point domain of a BoolType.
type BoolValue int

const (
	BoolTrue BoolValue = iota
	BoolFalse
	BoolUndecided
)

// BoolType carries the branch environments S1 (test true) and S2 (test
// false) when the test could not be decided, enabling narrowing in if.
type BoolType struct {
	Value BoolValue
	S1    *State
	S2    *State
}

func (*BoolType) typ() {}

func (t *BoolType) String() string {
	switch t.Value {
	case BoolTrue:
		return "true"
	case BoolFalse:
		return "false"
	default:
		return "bool"
	}
}

// IsUndecided reports whether the bool carries branch states.
func (t *BoolType) IsUndecided() bool { return t.Value == BoolUndecided }

// Swap returns the same bool with the branch states exchanged, used when a
// test is negated.
func (t *BoolType) Swap() *BoolType {
	return &BoolType{Value: t.Value, S1: t.S2, S2: t.S1}
}

type FloatType struct{}

func (*FloatType) typ()           {}
func (*FloatType) String() string { return "float" }

// StrType optionally remembers a literal value.
type StrType struct {
	Value   string
	Literal bool
}

func NewStrLiteral(v string) *StrType { return &StrType{Value: v, Literal: true} }

func (*StrType) typ()           {}
func (*StrType) String() string { return "str" }

// SymbolType is a Ruby symbol such as :name.
type SymbolType struct {
	Name string
}

func (*SymbolType) typ()             {}
func (t *SymbolType) String() string { return ":" + t.Name }

// UrlType carries a documentation link attached to builtin values.
type UrlType struct {
	URL string
}

func (*UrlType) typ()           {}
func (*UrlType) String() string { return "url" }

type ListType struct {
	Elt Type
}

func NewList(elt Type) *ListType {
	if elt == nil {
		elt = Unknown
	}
	return &ListType{Elt: elt}
}

// Add widens the element type with t.
func (l *ListType) Add(t Type) { l.Elt = Union(l.Elt, t) }

func (*ListType) typ()             {}
func (t *ListType) String() string { return "[" + t.Elt.String() + "]" }

// ToTuple converts a list to a tuple of unknown arity by repeating the
// element type once; callers use it when splatting list actuals.
func (t *ListType) ToTuple() *TupleType { return &TupleType{Elts: []Type{t.Elt}} }

type TupleType struct {
	Elts []Type
}

func NewTuple(elts ...Type) *TupleType { return &TupleType{Elts: elts} }

func (t *TupleType) Add(elt Type) { t.Elts = append(t.Elts, elt) }

// ToList collapses the tuple into a list of the union of its elements.
func (t *TupleType) ToList() *ListType {
	return NewList(UnionAll(t.Elts...))
}

func (*TupleType) typ() {}

func (t *TupleType) String() string {
	parts := make([]string, len(t.Elts))
	for i, e := range t.Elts {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

type SetType struct {
	Elt Type
}

func NewSet(elt Type) *SetType {
	if elt == nil {
		elt = Unknown
	}
	return &SetType{Elt: elt}
}

func (*SetType) typ()             {}
func (t *SetType) String() string { return "{" + t.Elt.String() + "}" }

type DictType struct {
	Key   Type
	Value Type
}

func NewDict(k, v Type) *DictType {
	if k == nil {
		k = Unknown
	}
	if v == nil {
		v = Unknown
	}
	return &DictType{Key: k, Value: v}
}

func (d *DictType) Add(k, v Type) {
	d.Key = Union(d.Key, k)
	d.Value = Union(d.Value, v)
}

func (*DictType) typ() {}

func (t *DictType) String() string {
	return "{" + t.Key.String() + ": " + t.Value.String() + "}"
}

// ClassType owns the class body scope. Instance attribute lookups forward
// into it through the instance table's parent link.
type ClassType struct {
	Name  string
	Table *State
	Super Type
}

func NewClass(name string, parent *State, super Type) *ClassType {
	c := &ClassType{Name: name, Super: super}
	c.Table = NewState(parent, ClassScope)
	c.Table.Type = c
	if parent != nil {
		c.Table.Path = parent.ExtendPath(name)
	} else {
		c.Table.Path = name
	}
	if super != nil {
		if sc, ok := super.(*ClassType); ok {
			c.Table.AddSuper(sc.Table)
		}
	}
	return c
}

func (*ClassType) typ()             {}
func (t *ClassType) String() string { return "<" + t.Name + ">" }

// InstanceType identifies an object by its creating call site and records
// the constructor argument types.
type InstanceType struct {
	Class *ClassType
	Call  syntax.Node
	Args  []Type
	Table *State
}

func NewInstance(class *ClassType, call syntax.Node, args []Type) *InstanceType {
	inst := &InstanceType{Class: class, Call: call, Args: args}
	inst.Table = NewState(class.Table, InstanceScope)
	inst.Table.Type = inst
	inst.Table.Path = class.Table.Path
	return inst
}

func (*InstanceType) typ() {}

func (t *InstanceType) String() string { return t.Class.Name }

// FuncType carries the defining AST, the captured lexical environment, the
// default argument types and a memoized map from actual argument tuples to
// return types. The receiver of a method call is not stored here: call sites
// pass it explicitly, so re-entrant applications of the same function cannot
// alias each other's receiver. Ret is the declared return type of
// definition-less builtins.
type FuncType struct {
	Def      *syntax.Function
	Env      *State
	Table    *State
	Defaults []Type
	Ret      Type
	cache    map[string]funcMapping
}

type funcMapping struct {
	From *TupleType
	To   Type
}

func NewFunc(def *syntax.Function, env *State) *FuncType {
	return &FuncType{Def: def, Env: env, cache: make(map[string]funcMapping)}
}

// NewBuiltinFunc declares a function with no body and a fixed return type.
func NewBuiltinFunc(ret Type) *FuncType {
	if ret == nil {
		ret = Unknown
	}
	return &FuncType{Ret: ret, cache: make(map[string]funcMapping)}
}

func (*FuncType) typ() {}

func (t *FuncType) String() string {
	if t.Def == nil {
		return "fun"
	}
	name := "lambda"
	if t.Def.Name != nil {
		name = t.Def.Name.ID
	}
	return "<fun:" + name + ">"
}

// Mapping returns the memoized return type for an actual tuple, if any.
func (t *FuncType) Mapping(from *TupleType) (Type, bool) {
	m, ok := t.cache[Sig(from)]
	if !ok {
		return nil, false
	}
	return m.To, true
}

func (t *FuncType) AddMapping(from *TupleType, to Type) {
	if t.cache == nil {
		t.cache = make(map[string]funcMapping)
	}
	t.cache[Sig(from)] = funcMapping{From: from, To: to}
}

// Mappings returns the memoized call table in a deterministic order.
func (t *FuncType) Mappings() []struct {
	From *TupleType
	To   Type
} {
	keys := make([]string, 0, len(t.cache))
	for k := range t.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]struct {
		From *TupleType
		To   Type
	}, 0, len(keys))
	for _, k := range keys {
		m := t.cache[k]
		out = append(out, struct {
			From *TupleType
			To   Type
		}{m.From, m.To})
	}
	return out
}

// ModuleType is the type of a loaded source file.
type ModuleType struct {
	Name  string
	File  string
	QName string
	Table *State
}

func NewModule(name, file, qname string, parent *State) *ModuleType {
	m := &ModuleType{Name: name, File: file, QName: qname}
	m.Table = NewState(parent, ModuleScope)
	m.Table.Path = qname
	m.Table.Type = m
	return m
}

func (*ModuleType) typ()             {}
func (t *ModuleType) String() string { return "<module:" + t.Name + ">" }

// TableOf returns the attribute table behind a type, or nil when the type
// has none.
func TableOf(t Type) *State {
	switch v := t.(type) {
	case *ClassType:
		return v.Table
	case *InstanceType:
		return v.Table
	case *ModuleType:
		return v.Table
	case *FuncType:
		return v.Table
	default:
		return nil
	}
}

// Equal compares types. Functions, classes, modules and instances compare by
// identity; containers compare structurally.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case *UnknownType:
		_, ok := b.(*UnknownType)
		return ok
	case *ContType:
		_, ok := b.(*ContType)
		return ok
	case *NilType:
		_, ok := b.(*NilType)
		return ok
	case *FloatType:
		_, ok := b.(*FloatType)
		return ok
	case *BoolType:
		y, ok := b.(*BoolType)
		return ok && x.Value == y.Value
	case *IntType:
		_, ok := b.(*IntType)
		return ok
	case *StrType:
		_, ok := b.(*StrType)
		return ok
	case *SymbolType:
		y, ok := b.(*SymbolType)
		return ok && x.Name == y.Name
	case *UrlType:
		y, ok := b.(*UrlType)
		return ok && x.URL == y.URL
	case *ListType:
		y, ok := b.(*ListType)
		return ok && Equal(x.Elt, y.Elt)
	case *SetType:
		y, ok := b.(*SetType)
		return ok && Equal(x.Elt, y.Elt)
	case *DictType:
		y, ok := b.(*DictType)
		return ok && Equal(x.Key, y.Key) && Equal(x.Value, y.Value)
	case *TupleType:
		y, ok := b.(*TupleType)
		if !ok || len(x.Elts) != len(y.Elts) {
			return false
		}
		for i := range x.Elts {
			if !Equal(x.Elts[i], y.Elts[i]) {
				return false
			}
		}
		return true
	case *UnionType:
		y, ok := b.(*UnionType)
		if !ok || len(x.Members) != len(y.Members) {
			return false
		}
		for _, m := range x.Members {
			if !unionHas(y, m) {
				return false
			}
		}
		return true
	default:
		// FuncType, ClassType, InstanceType, ModuleType: identity.
		return a == b
	}
}

// Sig renders a canonical signature for a type, used as the call-cache key.
// Identity-compared types contribute their pointer.
func Sig(t Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case *UnknownType:
		return "?"
	case *ContType:
		return "cont"
	case *NilType:
		return "nil"
	case *BoolType:
		return v.String()
	case *FloatType:
		return "float"
	case *IntType:
		return v.sig()
	case *StrType:
		if v.Literal {
			return "str=" + v.Value
		}
		return "str"
	case *SymbolType:
		return ":" + v.Name
	case *UrlType:
		return "url"
	case *ListType:
		return "[" + Sig(v.Elt) + "]"
	case *SetType:
		return "{" + Sig(v.Elt) + "}"
	case *DictType:
		return "{" + Sig(v.Key) + ":" + Sig(v.Value) + "}"
	case *TupleType:
		parts := make([]string, len(v.Elts))
		for i, e := range v.Elts {
			parts[i] = Sig(e)
		}
		return "(" + strings.Join(parts, ",") + ")"
	case *UnionType:
		parts := make([]string, len(v.Members))
		for i, m := range v.Members {
			parts[i] = Sig(m)
		}
		sort.Strings(parts)
		return "U(" + strings.Join(parts, "|") + ")"
	default:
		return fmt.Sprintf("%T@%p", t, t)
	}
}

// IsNumeric reports whether t supports interval arithmetic.
func IsNumeric(t Type) bool {
	switch t.(type) {
	case *IntType, *FloatType:
		return true
	}
	return false
}

// NewIntValue builds the interval [v, v].
func NewIntValue(v *big.Int) *IntType {
	return &IntType{
		Lower: new(big.Int).Set(v), Upper: new(big.Int).Set(v),
		LowerBounded: true, UpperBounded: true,
	}
}
