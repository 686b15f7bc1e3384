package infer

import "math/big"

// IntType is a bounded-interval integer. The zero value is the unbounded
// interval. Bounds are meaningful only when the matching flag is set;
// bounded-ness is conjunctive across every arithmetic operation.
type IntType struct {
	Lower        *big.Int
	Upper        *big.Int
	LowerBounded bool
	UpperBounded bool
}

func (*IntType) typ() {}

func (t *IntType) String() string {
	if t.IsActualValue() {
		return "int(" + t.Lower.String() + ")"
	}
	if t.LowerBounded || t.UpperBounded {
		lo, hi := "-∞", "+∞"
		if t.LowerBounded {
			lo = t.Lower.String()
		}
		if t.UpperBounded {
			hi = t.Upper.String()
		}
		return "int[" + lo + ".." + hi + "]"
	}
	return "int"
}

func (t *IntType) sig() string { return t.String() }

func (t *IntType) lower() *big.Int {
	if t.Lower == nil {
		return big.NewInt(0)
	}
	return t.Lower
}

func (t *IntType) upper() *big.Int {
	if t.Upper == nil {
		return big.NewInt(0)
	}
	return t.Upper
}

// IsActualValue reports whether the interval pins a single literal.
func (t *IntType) IsActualValue() bool {
	return t.LowerBounded && t.UpperBounded && t.lower().Cmp(t.upper()) == 0
}

// IsFeasible reports lower <= upper. Division by an interval straddling zero
// can produce infeasible intervals; callers treat those as plain int.
func (t *IntType) IsFeasible() bool {
	return t.lower().Cmp(t.upper()) <= 0
}

func (t *IntType) IsZero() bool {
	return t.IsActualValue() && t.lower().Sign() == 0
}

// Lt reports that every value of t is below every value of other.
func (t *IntType) Lt(other *IntType) bool {
	return t.IsFeasible() && t.upper().Cmp(other.lower()) < 0
}

// Gt reports that every value of t is above every value of other.
func (t *IntType) Gt(other *IntType) bool {
	return t.IsFeasible() && t.lower().Cmp(other.upper()) > 0
}

// EqConst reports that both intervals pin the same literal.
func (t *IntType) EqConst(other *IntType) bool {
	return t.IsActualValue() && other.IsActualValue() && t.lower().Cmp(other.lower()) == 0
}

func IntAdd(a, b *IntType) *IntType {
	return &IntType{
		Lower:        new(big.Int).Add(a.lower(), b.lower()),
		Upper:        new(big.Int).Add(a.upper(), b.upper()),
		LowerBounded: a.LowerBounded && b.LowerBounded,
		UpperBounded: a.UpperBounded && b.UpperBounded,
	}
}

func IntSub(a, b *IntType) *IntType {
	return &IntType{
		Lower:        new(big.Int).Sub(a.lower(), b.upper()),
		Upper:        new(big.Int).Sub(a.upper(), b.lower()),
		LowerBounded: a.LowerBounded && b.LowerBounded,
		UpperBounded: a.UpperBounded && b.UpperBounded,
	}
}

func IntMul(a, b *IntType) *IntType {
	return &IntType{
		Lower:        new(big.Int).Mul(a.lower(), b.lower()),
		Upper:        new(big.Int).Mul(a.upper(), b.upper()),
		LowerBounded: a.LowerBounded && b.LowerBounded,
		UpperBounded: a.UpperBounded && b.UpperBounded,
	}
}

// IntDiv divides a.lower/b.upper and a.upper/b.lower. When b straddles zero
// the result may be infeasible; that is permitted, callers fall back to the
// unbounded int.
func IntDiv(a, b *IntType) *IntType {
	lo, hi := new(big.Int), new(big.Int)
	if b.upper().Sign() != 0 {
		lo.Quo(a.lower(), b.upper())
	}
	if b.lower().Sign() != 0 {
		hi.Quo(a.upper(), b.lower())
	}
	return &IntType{
		Lower:        lo,
		Upper:        hi,
		LowerBounded: a.LowerBounded && b.LowerBounded,
		UpperBounded: a.UpperBounded && b.UpperBounded,
	}
}

func IntNegate(a *IntType) *IntType {
	return &IntType{
		Lower:        new(big.Int).Neg(a.upper()),
		Upper:        new(big.Int).Neg(a.lower()),
		LowerBounded: a.UpperBounded,
		UpperBounded: a.LowerBounded,
	}
}
