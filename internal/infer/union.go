package infer

// UnionType is a flat, deduplicated set of member types. A union never
// contains another union, and a one-member union collapses to that member.
type UnionType struct {
	Members []Type
}

func (*UnionType) typ() {}

func (t *UnionType) String() string {
	s := "{"
	for i, m := range t.Members {
		if i > 0 {
			s += " | "
		}
		s += m.String()
	}
	return s + "}"
}

func unionHas(u *UnionType, t Type) bool {
	for _, m := range u.Members {
		if Equal(m, t) {
			return true
		}
	}
	return false
}

// Union joins two lattice values. The canonical Unknown singleton is the
// identity; a non-canonical UnknownType (produced by the call-cycle guard)
// is kept as a member so "part of this came from a broken cycle" stays
// observable. Equal operands collapse; anything else produces a flat union
// of both member sets.
func Union(a, b Type) Type {
	if a == nil {
		a = Unknown
	}
	if b == nil {
		b = Unknown
	}
	if a == Type(Unknown) {
		return b
	}
	if b == Type(Unknown) {
		return a
	}
	if Equal(a, b) {
		return a
	}

	u := &UnionType{}
	add := func(t Type) {
		if !unionHas(u, t) {
			u.Members = append(u.Members, t)
		}
	}
	for _, t := range Members(a) {
		add(t)
	}
	for _, t := range Members(b) {
		add(t)
	}
	if len(u.Members) == 1 {
		return u.Members[0]
	}
	return u
}

// UnionAll folds Union over its arguments.
func UnionAll(types ...Type) Type {
	result := Type(Unknown)
	for _, t := range types {
		result = Union(result, t)
	}
	return result
}

// Members unwraps a union into its member list; a non-union is its own
// single member.
func Members(t Type) []Type {
	if u, ok := t.(*UnionType); ok {
		return u.Members
	}
	return []Type{t}
}

// Contains reports structural membership, unwrapping unions.
func Contains(t, member Type) bool {
	for _, m := range Members(t) {
		if Equal(m, member) {
			return true
		}
	}
	return false
}

// Remove drops member from a union, collapsing the result.
func Remove(t, member Type) Type {
	if !Contains(t, member) {
		return t
	}
	var kept []Type
	for _, m := range Members(t) {
		if !Equal(m, member) {
			kept = append(kept, m)
		}
	}
	switch len(kept) {
	case 0:
		return Unknown
	case 1:
		return kept[0]
	default:
		return &UnionType{Members: kept}
	}
}

// MissingReturn reports a union that mixes fallthrough (cont or nil) with a
// real value, the signature of a function that does not always return.
func MissingReturn(t Type) bool {
	u, ok := t.(*UnionType)
	if !ok {
		return false
	}
	hasNone, hasOther := false, false
	for _, m := range u.Members {
		switch m.(type) {
		case *NilType, *ContType:
			hasNone = true
		default:
			hasOther = true
		}
	}
	return hasNone && hasOther
}
