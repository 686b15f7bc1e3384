package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/typetrace/typetrace/internal/syntax"
)

// pythonBuilder converts the tree-sitter-python CST into the shared AST.
type pythonBuilder struct{}

func (b *pythonBuilder) Build(root *sitter.Node, source []byte) syntax.Node {
	return b.block(root, source)
}

// block collects the named statement children of n.
func (b *pythonBuilder) block(n *sitter.Node, src []byte) *syntax.Block {
	if n == nil {
		return &syntax.Block{}
	}
	blk := &syntax.Block{Span: spanOf(n)}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child.Kind() == "comment" {
			continue
		}
		blk.Seq = append(blk.Seq, b.stmt(child, src))
	}
	return blk
}

func (b *pythonBuilder) stmt(n *sitter.Node, src []byte) syntax.Node {
	switch n.Kind() {
	case "expression_statement":
		// May wrap an assignment or a bare expression.
		if inner := n.NamedChild(0); inner != nil {
			switch inner.Kind() {
			case "assignment", "augmented_assignment":
				return b.assignment(inner, src)
			default:
				return &syntax.ExprStmt{Span: spanOf(n), Value: b.expr(inner, src)}
			}
		}
		return dummy(n)

	case "assignment", "augmented_assignment":
		return b.assignment(n, src)

	case "if_statement":
		return b.ifStatement(n, src)

	case "while_statement":
		w := &syntax.While{Span: spanOf(n)}
		w.Test = b.expr(n.ChildByFieldName("condition"), src)
		w.Body = b.block(n.ChildByFieldName("body"), src)
		if alt := firstChildOfKind(n, "else_clause"); alt != nil {
			w.OrElse = b.block(alt.ChildByFieldName("body"), src)
		}
		return w

	case "for_statement":
		f := &syntax.For{Span: spanOf(n)}
		f.Target = b.expr(n.ChildByFieldName("left"), src)
		f.Iter = b.expr(n.ChildByFieldName("right"), src)
		f.Body = b.block(n.ChildByFieldName("body"), src)
		if alt := firstChildOfKind(n, "else_clause"); alt != nil {
			f.OrElse = b.block(alt.ChildByFieldName("body"), src)
		}
		return f

	case "try_statement":
		return b.tryStatement(n, src)

	case "function_definition":
		return b.functionDef(n, src)

	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil {
			return b.stmt(def, src)
		}
		return dummy(n)

	case "class_definition":
		return b.classDef(n, src)

	case "return_statement":
		r := &syntax.Return{Span: spanOf(n)}
		if v := n.NamedChild(0); v != nil {
			r.Value = b.expr(v, src)
		}
		return r

	case "pass_statement":
		return &syntax.Pass{Span: spanOf(n)}

	case "break_statement":
		return &syntax.Break{Span: spanOf(n)}

	case "continue_statement":
		return &syntax.Continue{Span: spanOf(n)}

	case "global_statement":
		g := &syntax.Global{Span: spanOf(n)}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if c := n.NamedChild(i); c.Kind() == "identifier" {
				g.Names = append(g.Names, nameNode(c, src))
			}
		}
		return g

	case "import_statement":
		return b.importStatement(n, src)

	case "import_from_statement":
		return b.importFrom(n, src)

	case "comment":
		return &syntax.Pass{Span: spanOf(n)}

	default:
		// Expression in statement position, or an unmodeled construct.
		if e := b.expr(n, src); e != nil {
			if _, isDummy := e.(*syntax.Dummy); !isDummy {
				return &syntax.ExprStmt{Span: spanOf(n), Value: e}
			}
		}
		return dummy(n)
	}
}

func (b *pythonBuilder) assignment(n *sitter.Node, src []byte) syntax.Node {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	a := &syntax.Assign{Span: spanOf(n)}
	a.Target = b.expr(left, src)
	if right == nil {
		// Annotation-only: x: int
		a.Value = dummy(n)
		return a
	}
	value := b.expr(right, src)
	if n.Kind() == "augmented_assignment" {
		op := augOperator(text(n.ChildByFieldName("operator"), src))
		a.Value = &syntax.BinOp{Span: spanOf(n), Op: op, Left: b.expr(left, src), Right: value}
	} else {
		a.Value = value
	}
	return a
}

func (b *pythonBuilder) ifStatement(n *sitter.Node, src []byte) syntax.Node {
	stmt := &syntax.If{Span: spanOf(n)}
	stmt.Test = b.expr(n.ChildByFieldName("condition"), src)
	stmt.Body = b.block(n.ChildByFieldName("consequence"), src)

	// elif chains become nested ifs in the else position.
	tail := stmt
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "elif_clause":
			next := &syntax.If{Span: spanOf(c)}
			next.Test = b.expr(c.ChildByFieldName("condition"), src)
			next.Body = b.block(c.ChildByFieldName("consequence"), src)
			tail.OrElse = next
			tail = next
		case "else_clause":
			tail.OrElse = b.block(c.ChildByFieldName("body"), src)
		}
	}
	return stmt
}

func (b *pythonBuilder) tryStatement(n *sitter.Node, src []byte) syntax.Node {
	t := &syntax.Try{Span: spanOf(n)}
	t.Body = b.block(n.ChildByFieldName("body"), src)
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "except_clause":
			t.Handlers = append(t.Handlers, b.exceptClause(c, src))
		case "else_clause":
			t.OrElse = b.block(c.ChildByFieldName("body"), src)
		case "finally_clause":
			if blk := firstChildOfKind(c, "block"); blk != nil {
				t.FinalBody = b.block(blk, src)
			}
		}
	}
	return t
}

// exceptClause handles "except E as e:". The clause's named children are the
// exception expression, the optional alias, then the block.
func (b *pythonBuilder) exceptClause(n *sitter.Node, src []byte) *syntax.Handler {
	h := &syntax.Handler{Span: spanOf(n)}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c.Kind() == "block" {
			h.Body = b.block(c, src)
			continue
		}
		if h.Exceptions == nil {
			h.Exceptions = append(h.Exceptions, b.expr(c, src))
		} else if h.Binder == nil && c.Kind() == "identifier" {
			h.Binder = nameNode(c, src)
		}
	}
	return h
}

func (b *pythonBuilder) functionDef(n *sitter.Node, src []byte) syntax.Node {
	fn := &syntax.Function{Span: spanOf(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = nameNode(name, src)
	}
	b.parameters(fn, n.ChildByFieldName("parameters"), src)
	fn.Body = b.block(n.ChildByFieldName("body"), src)
	return fn
}

func (b *pythonBuilder) parameters(fn *syntax.Function, params *sitter.Node, src []byte) {
	if params == nil {
		return
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		switch p.Kind() {
		case "identifier":
			fn.Args = append(fn.Args, nameNode(p, src))
		case "typed_parameter":
			if id := firstChildOfKind(p, "identifier"); id != nil {
				fn.Args = append(fn.Args, nameNode(id, src))
			}
		case "default_parameter", "typed_default_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				fn.Args = append(fn.Args, nameNode(name, src))
			}
			if value := p.ChildByFieldName("value"); value != nil {
				fn.Defaults = append(fn.Defaults, b.expr(value, src))
			}
		case "list_splat_pattern":
			if id := firstChildOfKind(p, "identifier"); id != nil {
				fn.Vararg = nameNode(id, src)
			}
		case "dictionary_splat_pattern":
			if id := firstChildOfKind(p, "identifier"); id != nil {
				fn.Kwarg = nameNode(id, src)
			}
		case "tuple_pattern":
			fn.Args = append(fn.Args, b.expr(p, src))
		}
	}
}

func (b *pythonBuilder) classDef(n *sitter.Node, src []byte) syntax.Node {
	cls := &syntax.ClassDef{Span: spanOf(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		cls.Name = nameNode(name, src)
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			cls.Bases = append(cls.Bases, b.expr(supers.NamedChild(i), src))
		}
	}
	cls.Body = b.block(n.ChildByFieldName("body"), src)
	return cls
}

func (b *pythonBuilder) importStatement(n *sitter.Node, src []byte) syntax.Node {
	// Only the first target becomes an Import: in "import a.b, c as d"
	// the module a.b is loaded and c is not.
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "dotted_name", "identifier":
			return &syntax.Import{Span: spanOf(n), ModuleName: text(c, src)}
		case "aliased_import":
			imp := &syntax.Import{Span: spanOf(n)}
			if name := c.ChildByFieldName("name"); name != nil {
				imp.ModuleName = text(name, src)
			}
			if alias := c.ChildByFieldName("alias"); alias != nil {
				imp.Alias = nameNode(alias, src)
			}
			return imp
		}
	}
	return dummy(n)
}

func (b *pythonBuilder) importFrom(n *sitter.Node, src []byte) syntax.Node {
	// "from X import a, b" is modeled as importing X; the item names
	// resolve through the module's table on attribute access.
	if mod := n.ChildByFieldName("module_name"); mod != nil {
		return &syntax.Import{Span: spanOf(n), ModuleName: text(mod, src)}
	}
	return dummy(n)
}

func (b *pythonBuilder) expr(n *sitter.Node, src []byte) syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier":
		return nameNode(n, src)

	case "integer":
		return syntax.NewInt(text(n, src), int(n.StartByte()), int(n.EndByte()))

	case "float":
		return &syntax.Float{Span: spanOf(n), Value: parseFloat(text(n, src))}

	case "string", "concatenated_string":
		return &syntax.Str{Span: spanOf(n), Value: unquote(text(n, src))}

	case "true":
		return &syntax.BoolLit{Span: spanOf(n), Value: true}

	case "false":
		return &syntax.BoolLit{Span: spanOf(n), Value: false}

	case "none":
		return &syntax.NilLit{Span: spanOf(n)}

	case "binary_operator":
		return &syntax.BinOp{
			Span:  spanOf(n),
			Op:    binOperator(text(n.ChildByFieldName("operator"), src)),
			Left:  b.expr(n.ChildByFieldName("left"), src),
			Right: b.expr(n.ChildByFieldName("right"), src),
		}

	case "boolean_operator":
		op := syntax.OpAnd
		if text(n.ChildByFieldName("operator"), src) == "or" {
			op = syntax.OpOr
		}
		return &syntax.BoolOp{
			Span: spanOf(n),
			Op:   op,
			Values: []syntax.Node{
				b.expr(n.ChildByFieldName("left"), src),
				b.expr(n.ChildByFieldName("right"), src),
			},
		}

	case "not_operator":
		return &syntax.UnaryOp{
			Span:    spanOf(n),
			Op:      syntax.OpNot,
			Operand: b.expr(n.ChildByFieldName("argument"), src),
		}

	case "unary_operator":
		return &syntax.UnaryOp{
			Span:    spanOf(n),
			Op:      unaryOperator(text(n.ChildByFieldName("operator"), src)),
			Operand: b.expr(n.ChildByFieldName("argument"), src),
		}

	case "comparison_operator":
		return b.comparison(n, src)

	case "conditional_expression":
		// consequence if condition else alternative
		if n.NamedChildCount() >= 3 {
			return &syntax.If{
				Span:   spanOf(n),
				Test:   b.expr(n.NamedChild(1), src),
				Body:   b.expr(n.NamedChild(0), src),
				OrElse: b.expr(n.NamedChild(2), src),
			}
		}
		return dummy(n)

	case "lambda":
		fn := &syntax.Function{Span: spanOf(n), IsLambda: true}
		b.parameters(fn, n.ChildByFieldName("parameters"), src)
		body := b.expr(n.ChildByFieldName("body"), src)
		fn.Body = &syntax.Block{Span: spanOf(n), Seq: []syntax.Node{
			&syntax.Return{Span: spanOf(n), Value: body},
		}}
		return fn

	case "call":
		return b.call(n, src)

	case "attribute":
		attr := &syntax.Attribute{Span: spanOf(n)}
		attr.Target = b.expr(n.ChildByFieldName("object"), src)
		if a := n.ChildByFieldName("attribute"); a != nil {
			attr.Attr = nameNode(a, src)
		}
		return attr

	case "subscript":
		sub := &syntax.Subscript{Span: spanOf(n)}
		sub.Value = b.expr(n.ChildByFieldName("value"), src)
		if idx := n.ChildByFieldName("subscript"); idx != nil {
			sub.Index = b.expr(idx, src)
		}
		return sub

	case "slice":
		sl := &syntax.Slice{Span: spanOf(n)}
		parts := make([]syntax.Node, 0, 3)
		for i := uint(0); i < n.NamedChildCount(); i++ {
			parts = append(parts, b.expr(n.NamedChild(i), src))
		}
		if len(parts) > 0 {
			sl.Lower = parts[0]
		}
		if len(parts) > 1 {
			sl.Upper = parts[1]
		}
		if len(parts) > 2 {
			sl.Step = parts[2]
		}
		return sl

	case "list":
		return &syntax.ListLit{Span: spanOf(n), Elts: b.exprList(n, src)}

	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return &syntax.TupleLit{Span: spanOf(n), Elts: b.exprList(n, src)}

	case "set":
		return &syntax.SetLit{Span: spanOf(n), Elts: b.exprList(n, src)}

	case "dictionary":
		d := &syntax.DictLit{Span: spanOf(n)}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			pair := n.NamedChild(i)
			if pair.Kind() != "pair" {
				continue
			}
			d.Keys = append(d.Keys, b.expr(pair.ChildByFieldName("key"), src))
			d.Values = append(d.Values, b.expr(pair.ChildByFieldName("value"), src))
		}
		return d

	case "parenthesized_expression":
		if inner := n.NamedChild(0); inner != nil {
			return b.expr(inner, src)
		}
		return dummy(n)

	case "list_splat", "list_splat_pattern":
		if inner := n.NamedChild(0); inner != nil {
			return &syntax.Starred{Span: spanOf(n), Value: b.expr(inner, src)}
		}
		return dummy(n)

	case "yield":
		y := &syntax.Yield{Span: spanOf(n)}
		if v := n.NamedChild(0); v != nil {
			y.Value = b.expr(v, src)
		}
		return y

	default:
		return dummy(n)
	}
}

func (b *pythonBuilder) exprList(n *sitter.Node, src []byte) []syntax.Node {
	var out []syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		out = append(out, b.expr(n.NamedChild(i), src))
	}
	return out
}

// comparison desugars "a < b < c" into (a < b) and (b < c).
func (b *pythonBuilder) comparison(n *sitter.Node, src []byte) syntax.Node {
	var operands []syntax.Node
	var ops []syntax.Operator
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c.IsNamed() {
			operands = append(operands, b.expr(c, src))
		} else if op, ok := compareOperator(c.Kind()); ok {
			ops = append(ops, op)
		}
	}
	if len(operands) < 2 || len(ops) == 0 {
		return dummy(n)
	}
	var compares []syntax.Node
	for i, op := range ops {
		if i+1 >= len(operands) {
			break
		}
		compares = append(compares, &syntax.Compare{
			Span: spanOf(n), Op: op, Left: operands[i], Right: operands[i+1],
		})
	}
	if len(compares) == 1 {
		return compares[0]
	}
	return &syntax.BoolOp{Span: spanOf(n), Op: syntax.OpAnd, Values: compares}
}

func (b *pythonBuilder) call(n *sitter.Node, src []byte) syntax.Node {
	call := &syntax.Call{Span: spanOf(n)}
	call.Func = b.expr(n.ChildByFieldName("function"), src)
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return call
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		switch arg.Kind() {
		case "keyword_argument":
			kw := &syntax.Keyword{Span: spanOf(arg)}
			if name := arg.ChildByFieldName("name"); name != nil {
				kw.Arg = text(name, src)
			}
			kw.Value = b.expr(arg.ChildByFieldName("value"), src)
			call.Keywords = append(call.Keywords, kw)
		case "list_splat":
			if inner := arg.NamedChild(0); inner != nil {
				call.StarArgs = b.expr(inner, src)
			}
		case "dictionary_splat":
			if inner := arg.NamedChild(0); inner != nil {
				call.KwArgs = b.expr(inner, src)
			}
		case "comment":
		default:
			call.Args = append(call.Args, b.expr(arg, src))
		}
	}
	return call
}

func binOperator(op string) syntax.Operator {
	switch op {
	case "+":
		return syntax.OpAdd
	case "-":
		return syntax.OpSub
	case "*":
		return syntax.OpMul
	case "/", "//":
		return syntax.OpDiv
	case "%":
		return syntax.OpMod
	case "**":
		return syntax.OpPow
	case "&":
		return syntax.OpBitAnd
	case "|":
		return syntax.OpBitOr
	case "^":
		return syntax.OpBitXor
	case "<<":
		return syntax.OpLShift
	case ">>":
		return syntax.OpRShift
	default:
		return syntax.OpAdd
	}
}

func augOperator(op string) syntax.Operator {
	if len(op) > 1 && op[len(op)-1] == '=' {
		return binOperator(op[:len(op)-1])
	}
	return binOperator(op)
}

func unaryOperator(op string) syntax.Operator {
	switch op {
	case "-":
		return syntax.OpUSub
	case "+":
		return syntax.OpUAdd
	case "~":
		return syntax.OpInvert
	default:
		return syntax.OpUSub
	}
}

func compareOperator(op string) (syntax.Operator, bool) {
	switch op {
	case "<":
		return syntax.OpLt, true
	case "<=":
		return syntax.OpLtE, true
	case ">":
		return syntax.OpGt, true
	case ">=":
		return syntax.OpGtE, true
	case "==", "===":
		return syntax.OpEq, true
	case "!=", "<>":
		return syntax.OpNotEq, true
	case "in", "not", "is":
		return syntax.OpEq, false
	default:
		return 0, false
	}
}

func firstChildOfKind(n *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}
