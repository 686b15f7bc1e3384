package analysis

import (
	"math/big"

	"github.com/typetrace/typetrace/internal/infer"
	"github.com/typetrace/typetrace/internal/syntax"
)

func (a *Analyzer) transformBinOp(op *syntax.BinOp, s *infer.State) infer.Type {
	left := a.Transform(op.Left, s)
	right := a.Transform(op.Right, s)

	if li, lok := left.(*infer.IntType); lok {
		if ri, rok := right.(*infer.IntType); rok {
			if t := intArith(op.Op, li, ri); t != nil {
				return t
			}
		}
	}

	switch op.Op {
	case syntax.OpAdd:
		if ls, lok := left.(*infer.StrType); lok {
			if rs, rok := right.(*infer.StrType); rok {
				if ls.Literal && rs.Literal {
					return infer.NewStrLiteral(ls.Value + rs.Value)
				}
				return infer.StrAny
			}
		}
		if ll, lok := left.(*infer.ListType); lok {
			if rl, rok := right.(*infer.ListType); rok {
				return infer.NewList(infer.Union(ll.Elt, rl.Elt))
			}
		}
	case syntax.OpMul:
		// str * n and list * n repeat the container.
		if _, lok := left.(*infer.StrType); lok {
			if _, rok := right.(*infer.IntType); rok {
				return infer.StrAny
			}
		}
		if ll, lok := left.(*infer.ListType); lok {
			if _, rok := right.(*infer.IntType); rok {
				return infer.NewList(ll.Elt)
			}
		}
	case syntax.OpMod:
		// Format operator: "fmt" % args.
		if _, lok := left.(*infer.StrType); lok {
			return infer.StrAny
		}
	}

	if numericMix(left, right) {
		return infer.FloatAny
	}
	return &infer.UnknownType{}
}

// intArith propagates interval bounds; nil means the operator is not
// arithmetic. Infeasible division results widen to the unbounded int.
func intArith(op syntax.Operator, l, r *infer.IntType) infer.Type {
	switch op {
	case syntax.OpAdd:
		return infer.IntAdd(l, r)
	case syntax.OpSub:
		return infer.IntSub(l, r)
	case syntax.OpMul:
		return infer.IntMul(l, r)
	case syntax.OpDiv:
		if r.IsZero() {
			return &infer.IntType{}
		}
		d := infer.IntDiv(l, r)
		if !d.IsFeasible() {
			return &infer.IntType{}
		}
		return d
	case syntax.OpMod, syntax.OpPow, syntax.OpBitAnd, syntax.OpBitOr,
		syntax.OpBitXor, syntax.OpLShift, syntax.OpRShift:
		return &infer.IntType{}
	default:
		return nil
	}
}

func numericMix(left, right infer.Type) bool {
	return infer.IsNumeric(left) && infer.IsNumeric(right)
}

func (a *Analyzer) transformUnaryOp(op *syntax.UnaryOp, s *infer.State) infer.Type {
	t := a.Transform(op.Operand, s)
	switch op.Op {
	case syntax.OpNot:
		if b, ok := t.(*infer.BoolType); ok {
			switch b.Value {
			case infer.BoolTrue:
				return infer.False
			case infer.BoolFalse:
				return infer.True
			default:
				return b.Swap()
			}
		}
		return &infer.BoolType{Value: infer.BoolUndecided}
	case syntax.OpUSub:
		if it, ok := t.(*infer.IntType); ok {
			return infer.IntNegate(it)
		}
		if _, ok := t.(*infer.FloatType); ok {
			return infer.FloatAny
		}
	case syntax.OpUAdd:
		return t
	case syntax.OpInvert:
		if _, ok := t.(*infer.IntType); ok {
			return &infer.IntType{}
		}
	}
	return &infer.UnknownType{}
}

// transformBoolOp evaluates an and/or chain. Boolean-looking chains produce
// an undecided bool; value-producing idioms like "x = a or b" yield the
// union of the operand types.
func (a *Analyzer) transformBoolOp(op *syntax.BoolOp, s *infer.State) infer.Type {
	allBool := true
	var types []infer.Type
	for _, v := range op.Values {
		t := a.Transform(v, s)
		if _, ok := t.(*infer.BoolType); !ok {
			allBool = false
		}
		types = append(types, t)
	}
	if allBool {
		return &infer.BoolType{Value: infer.BoolUndecided, S1: s.Copy(), S2: s.Copy()}
	}
	return infer.UnionAll(types...)
}

// transformCompare evaluates a comparison. Strict interval comparisons can
// decide the test outright; everything else produces an undecided bool whose
// branch states narrow the compared name.
func (a *Analyzer) transformCompare(cmp *syntax.Compare, s *infer.State) infer.Type {
	left := a.Transform(cmp.Left, s)
	right := a.Transform(cmp.Right, s)

	li, lok := left.(*infer.IntType)
	ri, rok := right.(*infer.IntType)

	// Only the strict orderings decide concretely: a decided <= would have
	// to prove both the ordering and equality edges at once, which interval
	// reasoning on unions routinely gets wrong, so those stay undecided.
	if lok && rok {
		switch cmp.Op {
		case syntax.OpLt:
			if li.Lt(ri) {
				return infer.True
			}
			if li.Gt(ri) {
				return infer.False
			}
		case syntax.OpGt:
			if li.Gt(ri) {
				return infer.True
			}
			if li.Lt(ri) {
				return infer.False
			}
		}
	}

	s1 := s.Copy()
	s2 := s.Copy()
	if name, ok := cmp.Left.(*syntax.Name); ok && lok && rok {
		a.narrow(s1, s2, name, li, ri, cmp.Op)
	}
	return &infer.BoolType{Value: infer.BoolUndecided, S1: s1, S2: s2}
}

// narrow refines the interval of name in the true branch (s1) and the false
// branch (s2) of a comparison against the interval other.
func (a *Analyzer) narrow(s1, s2 *infer.State, name *syntax.Name, cur, other *infer.IntType, op syntax.Operator) {
	one := big.NewInt(1)

	trueType, falseType := (*infer.IntType)(nil), (*infer.IntType)(nil)
	switch op {
	case syntax.OpLt:
		if other.UpperBounded {
			trueType = clampUpper(cur, new(big.Int).Sub(other.Upper, one))
		}
		if other.LowerBounded {
			falseType = clampLower(cur, other.Lower)
		}
	case syntax.OpLtE:
		if other.UpperBounded {
			trueType = clampUpper(cur, other.Upper)
		}
		if other.LowerBounded {
			falseType = clampLower(cur, new(big.Int).Add(other.Lower, one))
		}
	case syntax.OpGt:
		if other.LowerBounded {
			trueType = clampLower(cur, new(big.Int).Add(other.Lower, one))
		}
		if other.UpperBounded {
			falseType = clampUpper(cur, other.Upper)
		}
	case syntax.OpGtE:
		if other.LowerBounded {
			trueType = clampLower(cur, other.Lower)
		}
		if other.UpperBounded {
			falseType = clampUpper(cur, new(big.Int).Sub(other.Upper, one))
		}
	case syntax.OpEq:
		trueType = &infer.IntType{
			Lower: other.Lower, Upper: other.Upper,
			LowerBounded: other.LowerBounded, UpperBounded: other.UpperBounded,
		}
	default:
		return
	}

	if trueType != nil {
		a.rebind(s1, name, trueType)
	}
	if falseType != nil {
		a.rebind(s2, name, falseType)
	}
}

// rebind shadows name with a narrowed copy inside one branch state only; the
// original binding object stays untouched so the other branch and the
// downstream merge see the unrefined type.
func (a *Analyzer) rebind(s *infer.State, name *syntax.Name, t infer.Type) {
	bs := s.Lookup(name.ID)
	if len(bs) == 0 {
		return
	}
	orig := bs[0]
	nb := infer.NewBinding(orig.Name, orig.Node, t, orig.Kind)
	nb.QName = orig.QName
	nb.File = orig.File
	nb.Start = orig.Start
	nb.Length = orig.Length
	// Share the ref set: occurrences resolved through the narrowed copy
	// still belong to the original definition site.
	nb.Refs = orig.Refs
	s.Update(name.ID, nb)
}

func clampUpper(cur *infer.IntType, upper *big.Int) *infer.IntType {
	out := &infer.IntType{
		Lower: cur.Lower, Upper: upper,
		LowerBounded: cur.LowerBounded, UpperBounded: true,
	}
	return out
}

func clampLower(cur *infer.IntType, lower *big.Int) *infer.IntType {
	out := &infer.IntType{
		Lower: lower, Upper: cur.Upper,
		LowerBounded: true, UpperBounded: cur.UpperBounded,
	}
	return out
}
