package infer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionIdentities(t *testing.T) {
	i := NewIntValue(big.NewInt(1))

	assert.Same(t, Type(i), Union(Unknown, i))
	assert.Same(t, Type(i), Union(i, Unknown))
	assert.Same(t, Type(i), Union(i, i))

	// Structurally equal ints collapse to the first operand.
	j := NewIntValue(big.NewInt(3))
	assert.Same(t, Type(i), Union(i, j))
}

func TestUnionKeepsCycleUnknown(t *testing.T) {
	// The cycle guard hands out non-canonical unknowns; those must stay
	// visible as members.
	fresh := &UnknownType{}
	got := Union(NewIntValue(big.NewInt(1)), fresh)

	u, ok := got.(*UnionType)
	assert.True(t, ok, "expected a union, got %v", got)
	assert.Len(t, u.Members, 2)

	hasUnknown := false
	for _, m := range u.Members {
		if _, ok := m.(*UnknownType); ok {
			hasUnknown = true
		}
	}
	assert.True(t, hasUnknown)
}

func TestUnionFlatness(t *testing.T) {
	a := Union(StrAny, NewIntValue(big.NewInt(1)))
	b := Union(a, Nil)
	c := Union(b, a)

	u, ok := c.(*UnionType)
	assert.True(t, ok)
	assert.Len(t, u.Members, 3)
	for _, m := range u.Members {
		_, nested := m.(*UnionType)
		assert.False(t, nested, "union contains a nested union")
	}

	// Deduplicated under structural equality.
	again := Union(c, StrAny)
	assert.Len(t, again.(*UnionType).Members, 3)
}

func TestUnionSingleMemberCollapses(t *testing.T) {
	got := Union(StrAny, NewStrLiteral("x"))
	// Strings compare equal regardless of literal value, so this is not a
	// union at all.
	assert.Same(t, Type(StrAny), got)
}

func TestContainsAndRemove(t *testing.T) {
	u := Union(Union(StrAny, Cont), NewIntValue(big.NewInt(2)))
	assert.True(t, Contains(u, Cont))
	assert.True(t, Contains(u, StrAny))
	assert.False(t, Contains(u, Nil))

	r := Remove(u, Cont)
	assert.False(t, Contains(r, Cont))

	// Removing down to one member collapses.
	pair := Union(StrAny, Cont)
	assert.Same(t, Type(StrAny), Remove(pair, Cont))

	// Removing the only member yields Unknown.
	assert.Same(t, Type(Unknown), Remove(Cont, Cont))
}

func TestMissingReturn(t *testing.T) {
	assert.False(t, MissingReturn(StrAny))
	assert.False(t, MissingReturn(Cont))
	assert.True(t, MissingReturn(Union(StrAny, Cont)))
	assert.True(t, MissingReturn(Union(Nil, NewIntValue(big.NewInt(1)))))
	assert.False(t, MissingReturn(Union(Nil, Cont)))
}

func TestEqualIdentityTypes(t *testing.T) {
	f1 := NewBuiltinFunc(StrAny)
	f2 := NewBuiltinFunc(StrAny)
	assert.True(t, Equal(f1, f1))
	assert.False(t, Equal(f1, f2))

	l1 := NewList(StrAny)
	l2 := NewList(NewStrLiteral("v"))
	assert.True(t, Equal(l1, l2))

	t1 := NewTuple(StrAny, l1)
	t2 := NewTuple(StrAny, l2)
	t3 := NewTuple(StrAny)
	assert.True(t, Equal(t1, t2))
	assert.False(t, Equal(t1, t3))
}

func TestSigDistinguishesIntervals(t *testing.T) {
	a := NewTuple(NewIntValue(big.NewInt(3)), NewIntValue(big.NewInt(2)))
	b := NewTuple(NewIntValue(big.NewInt(3)), NewIntValue(big.NewInt(4)))
	assert.NotEqual(t, Sig(a), Sig(b))
	assert.Equal(t, Sig(a), Sig(NewTuple(NewIntValue(big.NewInt(3)), NewIntValue(big.NewInt(2)))))
}
