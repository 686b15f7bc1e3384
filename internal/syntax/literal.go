package syntax

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseInt parses an integer literal as the frontends spell them: optional
// sign, underscore separators, and base prefixes 0b, 0x, 0o, a bare leading
// zero for octal, and a bare "x" hex prefix. The "x" form has no standard
// source syntax but some emitters produce it, so it is accepted here.
func ParseInt(raw string) (*big.Int, error) {
	s := strings.ReplaceAll(raw, "_", "")
	neg := false

	if strings.HasPrefix(s, "+") {
		s = s[1:]
	} else if strings.HasPrefix(s, "-") {
		s = s[1:]
		neg = true
	}

	base := 10
	switch {
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		base = 2
		s = s[2:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case strings.HasPrefix(s, "x"):
		base = 16
		s = s[1:]
	case strings.HasPrefix(s, "0o"), strings.HasPrefix(s, "0O"):
		base = 8
		s = s[2:]
	case strings.HasPrefix(s, "0") && len(s) >= 2:
		base = 8
		s = s[1:]
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("malformed integer literal %q", raw)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

// NewInt builds an Int node from its source spelling. Unparseable literals
// yield a zero value so analysis can continue.
func NewInt(raw string, start, end int) *Int {
	v, err := ParseInt(raw)
	if err != nil {
		v = big.NewInt(0)
	}
	return &Int{Span: Span{StartByte: start, EndByte: end}, Raw: raw, Value: v}
}
