package infer

import (
	"github.com/typetrace/typetrace/internal/syntax"
)

// Evaluator is what the binder needs from the analyzer: expression
// evaluation for attribute and subscript targets, and a diagnostics sink.
type Evaluator interface {
	Transform(n syntax.Node, s *State) Type
	Problem(n syntax.Node, msg string)
}

// Bind pattern-binds a destructurable target to a type, creating bindings of
// the given kind in state.
func Bind(ev Evaluator, s *State, target syntax.Node, t Type, kind Kind) {
	switch tgt := target.(type) {
	case *syntax.Name:
		bindName(s, tgt, t, kind)
	case *syntax.TupleLit:
		bindSequence(ev, s, tgt.Elts, t, kind)
	case *syntax.ListLit:
		bindSequence(ev, s, tgt.Elts, t, kind)
	case *syntax.Attribute:
		bindAttribute(ev, s, tgt, t)
	case *syntax.Subscript:
		// No binding: evaluate for effect so the indexed source still
		// records references.
		ev.Transform(tgt.Value, s)
		if tgt.Index != nil {
			ev.Transform(tgt.Index, s)
		}
	case *syntax.Starred:
		Bind(ev, s, tgt.Value, t, kind)
	default:
		if target != nil {
			ev.Problem(target, "invalid location for assignment")
		}
	}
}

func bindName(s *State, name *syntax.Name, t Type, kind Kind) *Binding {
	return s.Insert(name.ID, name, t, kind)
}

// bindAttribute evaluates the receiver and inserts the attribute into its
// table. Receivers with no attribute table bind nothing; literals record a
// diagnostic, an unknown receiver does not.
func bindAttribute(ev Evaluator, s *State, attr *syntax.Attribute, t Type) {
	targetType := ev.Transform(attr.Target, s)
	for _, member := range Members(targetType) {
		table := TableOf(member)
		if table == nil {
			continue
		}
		table.Insert(attr.Attr.ID, attr.Attr, t, AttributeBinding)
		return
	}
	if _, unknown := targetType.(*UnknownType); !unknown {
		ev.Problem(attr.Attr, "cannot set attribute on value of type "+targetType.String())
	}
}

func bindSequence(ev Evaluator, s *State, targets []syntax.Node, rt Type, kind Kind) {
	n := len(targets)
	starIdx := -1
	for i, tgt := range targets {
		if _, ok := tgt.(*syntax.Starred); ok {
			starIdx = i
			break
		}
	}

	switch val := rt.(type) {
	case *TupleType:
		if starIdx >= 0 {
			bindStarredSequence(ev, s, targets, starIdx, val.Elts, kind)
			return
		}
		if len(val.Elts) == n {
			for i, tgt := range targets {
				Bind(ev, s, tgt, val.Elts[i], kind)
			}
			return
		}
		reportUnpackMismatch(ev, targets, len(val.Elts))
		bindAll(ev, s, targets, Unknown, kind)
	case *ListType:
		bindIterable(ev, s, targets, starIdx, val.Elt, kind)
	case *SetType:
		bindIterable(ev, s, targets, starIdx, val.Elt, kind)
	case *StrType:
		bindIterable(ev, s, targets, starIdx, StrAny, kind)
	case *DictType:
		bindIterable(ev, s, targets, starIdx, val.Key, kind)
	default:
		if _, unknown := rt.(*UnknownType); !unknown && len(targets) > 0 {
			ev.Problem(targets[0], "unpacking non-iterable value of type "+rt.String())
		}
		bindAll(ev, s, targets, Unknown, kind)
	}
}

// bindStarredSequence distributes tuple elements around a starred target:
// the head and tail bind positionally, the starred middle absorbs the rest
// as a list.
func bindStarredSequence(ev Evaluator, s *State, targets []syntax.Node, starIdx int, elts []Type, kind Kind) {
	nAfter := len(targets) - starIdx - 1
	if len(elts) < len(targets)-1 {
		reportUnpackMismatch(ev, targets, len(elts))
		bindAll(ev, s, targets, Unknown, kind)
		return
	}
	for i := 0; i < starIdx; i++ {
		Bind(ev, s, targets[i], elts[i], kind)
	}
	middle := elts[starIdx : len(elts)-nAfter]
	Bind(ev, s, targets[starIdx], NewList(UnionAll(middle...)), kind)
	for i := 0; i < nAfter; i++ {
		Bind(ev, s, targets[starIdx+1+i], elts[len(elts)-nAfter+i], kind)
	}
}

func bindIterable(ev Evaluator, s *State, targets []syntax.Node, starIdx int, elt Type, kind Kind) {
	for i, tgt := range targets {
		if i == starIdx {
			Bind(ev, s, tgt, NewList(elt), kind)
			continue
		}
		Bind(ev, s, tgt, elt, kind)
	}
}

func bindAll(ev Evaluator, s *State, targets []syntax.Node, t Type, kind Kind) {
	for _, tgt := range targets {
		Bind(ev, s, tgt, t, kind)
	}
}

func reportUnpackMismatch(ev Evaluator, targets []syntax.Node, got int) {
	if len(targets) == 0 {
		return
	}
	ev.Problem(targets[0], "wrong number of values to unpack")
}
