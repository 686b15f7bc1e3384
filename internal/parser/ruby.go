package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/typetrace/typetrace/internal/syntax"
)

// rubyBuilder converts the tree-sitter-ruby CST into the shared AST.
type rubyBuilder struct{}

func (b *rubyBuilder) Build(root *sitter.Node, source []byte) syntax.Node {
	return b.block(root, source)
}

func (b *rubyBuilder) block(n *sitter.Node, src []byte) *syntax.Block {
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

func (b *rubyBuilder) stmt(n *sitter.Node, src []byte) syntax.Node {
	switch n.Kind() {
	case "assignment", "operator_assignment":
		return b.assignment(n, src)

	case "method", "singleton_method":
		return b.methodDef(n, src)

	case "class":
		return b.classDef(n, src)

	case "module":
		// A Ruby module is a class without instantiation; model it the
		// same way so its constants and methods resolve.
		return b.classDef(n, src)

	case "if", "unless":
		return b.ifStatement(n, src, n.Kind() == "unless")

	case "while", "until":
		w := &syntax.While{Span: spanOf(n)}
		test := b.expr(n.ChildByFieldName("condition"), src)
		if n.Kind() == "until" {
			test = &syntax.UnaryOp{Span: spanOf(n), Op: syntax.OpNot, Operand: test}
		}
		w.Test = test
		w.Body = b.bodyOf(n, src)
		return w

	case "for":
		f := &syntax.For{Span: spanOf(n)}
		f.Target = b.expr(n.ChildByFieldName("pattern"), src)
		f.Iter = b.expr(n.ChildByFieldName("value"), src)
		f.Body = b.bodyOf(n, src)
		return f

	case "begin":
		return b.beginStatement(n, src)

	case "return":
		r := &syntax.Return{Span: spanOf(n)}
		if v := n.NamedChild(0); v != nil {
			r.Value = b.expr(v, src)
		}
		return r

	case "break":
		return &syntax.Break{Span: spanOf(n)}

	case "next", "redo", "retry":
		return &syntax.Continue{Span: spanOf(n)}

	case "comment":
		return &syntax.Pass{Span: spanOf(n)}

	default:
		if e := b.expr(n, src); e != nil {
			if _, isDummy := e.(*syntax.Dummy); !isDummy {
				return &syntax.ExprStmt{Span: spanOf(n), Value: e}
			}
		}
		return dummy(n)
	}
}

func (b *rubyBuilder) assignment(n *sitter.Node, src []byte) syntax.Node {
	a := &syntax.Assign{Span: spanOf(n)}
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	a.Target = b.expr(left, src)
	value := b.expr(right, src)
	if n.Kind() == "operator_assignment" {
		op := augOperator(text(n.ChildByFieldName("operator"), src))
		a.Value = &syntax.BinOp{Span: spanOf(n), Op: op, Left: b.expr(left, src), Right: value}
	} else {
		a.Value = value
	}
	return a
}

// bodyOf collects a statement body from either a body field, a
// body_statement, a then, or a do child.
func (b *rubyBuilder) bodyOf(n *sitter.Node, src []byte) *syntax.Block {
	if body := n.ChildByFieldName("body"); body != nil {
		return b.block(body, src)
	}
	for _, kind := range []string{"body_statement", "then", "do"} {
		if c := firstChildOfKind(n, kind); c != nil {
			return b.block(c, src)
		}
	}
	return &syntax.Block{Span: spanOf(n)}
}

func (b *rubyBuilder) ifStatement(n *sitter.Node, src []byte, negate bool) syntax.Node {
	stmt := &syntax.If{Span: spanOf(n)}
	test := b.expr(n.ChildByFieldName("condition"), src)
	if negate {
		test = &syntax.UnaryOp{Span: spanOf(n), Op: syntax.OpNot, Operand: test}
	}
	stmt.Test = test
	if cons := n.ChildByFieldName("consequence"); cons != nil {
		stmt.Body = b.block(cons, src)
	} else if then := firstChildOfKind(n, "then"); then != nil {
		stmt.Body = b.block(then, src)
	}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		stmt.OrElse = b.elseBranch(alt, src)
	}
	return stmt
}

// elseBranch handles both else and elsif chains.
func (b *rubyBuilder) elseBranch(n *sitter.Node, src []byte) syntax.Node {
	switch n.Kind() {
	case "else":
		return b.block(n, src)
	case "elsif":
		next := &syntax.If{Span: spanOf(n)}
		next.Test = b.expr(n.ChildByFieldName("condition"), src)
		if cons := n.ChildByFieldName("consequence"); cons != nil {
			next.Body = b.block(cons, src)
		} else if then := firstChildOfKind(n, "then"); then != nil {
			next.Body = b.block(then, src)
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			next.OrElse = b.elseBranch(alt, src)
		}
		return next
	default:
		return b.block(n, src)
	}
}

func (b *rubyBuilder) beginStatement(n *sitter.Node, src []byte) syntax.Node {
	t := &syntax.Try{Span: spanOf(n)}
	body := &syntax.Block{Span: spanOf(n)}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "rescue":
			t.Handlers = append(t.Handlers, b.rescueClause(c, src))
		case "else":
			t.OrElse = b.block(c, src)
		case "ensure":
			t.FinalBody = b.block(c, src)
		case "comment":
		default:
			body.Seq = append(body.Seq, b.stmt(c, src))
		}
	}
	t.Body = body
	return t
}

// rescueClause handles "rescue SomeError => e".
func (b *rubyBuilder) rescueClause(n *sitter.Node, src []byte) *syntax.Handler {
	h := &syntax.Handler{Span: spanOf(n)}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "exceptions":
			for j := uint(0); j < c.NamedChildCount(); j++ {
				h.Exceptions = append(h.Exceptions, b.expr(c.NamedChild(j), src))
			}
		case "exception_variable":
			if v := c.NamedChild(0); v != nil {
				h.Binder = nameNode(v, src)
			}
		case "then":
			h.Body = b.block(c, src)
		}
	}
	if h.Body == nil {
		h.Body = &syntax.Block{Span: spanOf(n)}
	}
	return h
}

func (b *rubyBuilder) methodDef(n *sitter.Node, src []byte) syntax.Node {
	fn := &syntax.Function{Span: spanOf(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = &syntax.Name{Span: spanOf(name), ID: text(name, src)}
	}
	b.parameters(fn, n.ChildByFieldName("parameters"), src)
	fn.Body = implicitReturn(b.bodyOf(n, src))
	return fn
}

// implicitReturn desugars the trailing expression of a method body into a
// return, matching Ruby's value semantics.
func implicitReturn(body *syntax.Block) *syntax.Block {
	if len(body.Seq) == 0 {
		return body
	}
	if expr, ok := body.Seq[len(body.Seq)-1].(*syntax.ExprStmt); ok {
		body.Seq[len(body.Seq)-1] = &syntax.Return{Span: syntax.Span{
			StartByte: expr.Start(), EndByte: expr.End(),
		}, Value: expr.Value}
	}
	return body
}

func (b *rubyBuilder) parameters(fn *syntax.Function, params *sitter.Node, src []byte) {
	if params == nil {
		return
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		switch p.Kind() {
		case "identifier":
			// Trailing positionals after a splat become afterRest.
			if fn.Vararg != nil {
				fn.AfterRest = append(fn.AfterRest, nameNode(p, src))
			} else {
				fn.Args = append(fn.Args, nameNode(p, src))
			}
		case "optional_parameter", "keyword_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				fn.Args = append(fn.Args, nameNode(name, src))
			}
			if value := p.ChildByFieldName("value"); value != nil {
				fn.Defaults = append(fn.Defaults, b.expr(value, src))
			}
		case "splat_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				fn.Vararg = nameNode(name, src)
			}
		case "hash_splat_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				fn.Kwarg = nameNode(name, src)
			}
		case "block_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				fn.BlockArg = nameNode(name, src)
			}
		}
	}
}

func (b *rubyBuilder) classDef(n *sitter.Node, src []byte) syntax.Node {
	cls := &syntax.ClassDef{Span: spanOf(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		cls.Name = nameNode(name, src)
	}
	sup := n.ChildByFieldName("superclass")
	if sup == nil {
		sup = firstChildOfKind(n, "superclass")
	}
	if sup != nil {
		if c := sup.NamedChild(0); c != nil {
			cls.Bases = append(cls.Bases, b.expr(c, src))
		}
	}
	cls.Body = b.bodyOf(n, src)
	return cls
}

func (b *rubyBuilder) expr(n *sitter.Node, src []byte) syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "constant", "global_variable", "class_variable":
		return nameNode(n, src)

	case "self":
		return &syntax.Name{Span: spanOf(n), ID: "self"}

	case "instance_variable":
		// @x reads and writes resolve as attributes of self.
		return &syntax.Attribute{
			Span:   spanOf(n),
			Target: &syntax.Name{Span: spanOf(n), ID: "self"},
			Attr:   &syntax.Name{Span: spanOf(n), ID: strings.TrimPrefix(text(n, src), "@")},
		}

	case "integer":
		return syntax.NewInt(text(n, src), int(n.StartByte()), int(n.EndByte()))

	case "float":
		return &syntax.Float{Span: spanOf(n), Value: parseFloat(text(n, src))}

	case "string", "bare_string", "heredoc_body":
		return &syntax.Str{Span: spanOf(n), Value: unquote(text(n, src))}

	case "simple_symbol", "hash_key_symbol":
		return &syntax.SymbolLit{Span: spanOf(n), ID: strings.TrimPrefix(text(n, src), ":")}

	case "true":
		return &syntax.BoolLit{Span: spanOf(n), Value: true}

	case "false":
		return &syntax.BoolLit{Span: spanOf(n), Value: false}

	case "nil":
		return &syntax.NilLit{Span: spanOf(n)}

	case "binary":
		return b.binary(n, src)

	case "unary":
		op := syntax.OpUSub
		switch {
		case strings.HasPrefix(text(n, src), "!"), strings.HasPrefix(text(n, src), "not"):
			op = syntax.OpNot
		case strings.HasPrefix(text(n, src), "~"):
			op = syntax.OpInvert
		}
		if operand := n.ChildByFieldName("operand"); operand != nil {
			return &syntax.UnaryOp{Span: spanOf(n), Op: op, Operand: b.expr(operand, src)}
		}
		return dummy(n)

	case "conditional":
		return &syntax.If{
			Span:   spanOf(n),
			Test:   b.expr(n.ChildByFieldName("condition"), src),
			Body:   b.expr(n.ChildByFieldName("consequence"), src),
			OrElse: b.expr(n.ChildByFieldName("alternative"), src),
		}

	case "if", "unless":
		return b.ifStatement(n, src, n.Kind() == "unless")

	case "call":
		return b.call(n, src)

	case "method", "singleton_method":
		return b.methodDef(n, src)

	case "element_reference":
		sub := &syntax.Subscript{Span: spanOf(n)}
		sub.Value = b.expr(n.ChildByFieldName("object"), src)
		if n.NamedChildCount() > 1 {
			sub.Index = b.expr(n.NamedChild(1), src)
		}
		return sub

	case "array":
		return &syntax.ListLit{Span: spanOf(n), Elts: b.exprList(n, src)}

	case "hash":
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

	case "left_assignment_list", "destructured_left_assignment":
		return &syntax.TupleLit{Span: spanOf(n), Elts: b.exprList(n, src)}

	case "splat_argument", "rest_assignment":
		if inner := n.NamedChild(0); inner != nil {
			return &syntax.Starred{Span: spanOf(n), Value: b.expr(inner, src)}
		}
		return dummy(n)

	case "parenthesized_statements":
		if inner := n.NamedChild(0); inner != nil {
			return b.expr(inner, src)
		}
		return dummy(n)

	case "lambda":
		fn := &syntax.Function{Span: spanOf(n), IsLambda: true}
		b.parameters(fn, n.ChildByFieldName("parameters"), src)
		if body := n.ChildByFieldName("body"); body != nil {
			fn.Body = implicitReturn(b.block(body, src))
		} else {
			fn.Body = &syntax.Block{Span: spanOf(n)}
		}
		return fn

	case "yield":
		y := &syntax.Yield{Span: spanOf(n)}
		if v := n.NamedChild(0); v != nil {
			y.Value = b.expr(v, src)
		}
		return y

	case "range":
		return infRange(n, b, src)

	case "assignment", "operator_assignment":
		return b.assignment(n, src)

	default:
		return dummy(n)
	}
}

// infRange models a range literal as a list of its endpoint type.
func infRange(n *sitter.Node, b *rubyBuilder, src []byte) syntax.Node {
	lst := &syntax.ListLit{Span: spanOf(n)}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		lst.Elts = append(lst.Elts, b.expr(n.NamedChild(i), src))
	}
	return lst
}

func (b *rubyBuilder) exprList(n *sitter.Node, src []byte) []syntax.Node {
	var out []syntax.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		out = append(out, b.expr(n.NamedChild(i), src))
	}
	return out
}

// binary covers arithmetic, comparisons and the keyword boolean operators,
// which tree-sitter-ruby all parses as binary nodes.
func (b *rubyBuilder) binary(n *sitter.Node, src []byte) syntax.Node {
	opText := text(n.ChildByFieldName("operator"), src)
	if opText == "" {
		// The operator is an anonymous child; find the first non-named one.
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); !c.IsNamed() {
				opText = c.Kind()
				break
			}
		}
	}
	left := b.expr(n.ChildByFieldName("left"), src)
	right := b.expr(n.ChildByFieldName("right"), src)

	switch opText {
	case "&&", "and":
		return &syntax.BoolOp{Span: spanOf(n), Op: syntax.OpAnd, Values: []syntax.Node{left, right}}
	case "||", "or":
		return &syntax.BoolOp{Span: spanOf(n), Op: syntax.OpOr, Values: []syntax.Node{left, right}}
	}
	if op, ok := compareOperator(opText); ok {
		return &syntax.Compare{Span: spanOf(n), Op: op, Left: left, Right: right}
	}
	if opText == "<=>" {
		return &syntax.BinOp{Span: spanOf(n), Op: syntax.OpSub, Left: left, Right: right}
	}
	return &syntax.BinOp{Span: spanOf(n), Op: binOperator(opText), Left: left, Right: right}
}

func (b *rubyBuilder) call(n *sitter.Node, src []byte) syntax.Node {
	call := &syntax.Call{Span: spanOf(n)}

	method := n.ChildByFieldName("method")
	receiver := n.ChildByFieldName("receiver")
	switch {
	case receiver != nil && method != nil:
		call.Func = &syntax.Attribute{
			Span:   spanOf(n),
			Target: b.expr(receiver, src),
			Attr:   nameNode(method, src),
		}
	case method != nil:
		call.Func = nameNode(method, src)
	default:
		call.Func = dummy(n)
	}

	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := uint(0); i < args.NamedChildCount(); i++ {
			arg := args.NamedChild(i)
			switch arg.Kind() {
			case "splat_argument":
				if inner := arg.NamedChild(0); inner != nil {
					call.StarArgs = b.expr(inner, src)
				}
			case "hash_splat_argument":
				if inner := arg.NamedChild(0); inner != nil {
					call.KwArgs = b.expr(inner, src)
				}
			case "pair":
				kw := &syntax.Keyword{Span: spanOf(arg)}
				if key := arg.ChildByFieldName("key"); key != nil {
					kw.Arg = strings.TrimSuffix(strings.TrimPrefix(text(key, src), ":"), ":")
				}
				kw.Value = b.expr(arg.ChildByFieldName("value"), src)
				call.Keywords = append(call.Keywords, kw)
			case "block_argument":
				if inner := arg.NamedChild(0); inner != nil {
					call.BlockArg = b.expr(inner, src)
				}
			case "comment":
			default:
				call.Args = append(call.Args, b.expr(arg, src))
			}
		}
	}

	if blk := n.ChildByFieldName("block"); blk != nil {
		call.BlockArg = b.blockLiteral(blk, src)
	} else if db := firstChildOfKind(n, "do_block"); db != nil {
		call.BlockArg = b.blockLiteral(db, src)
	}
	return call
}

// blockLiteral turns { |x| ... } and do |x| ... end into a lambda.
func (b *rubyBuilder) blockLiteral(n *sitter.Node, src []byte) syntax.Node {
	fn := &syntax.Function{Span: spanOf(n), IsLambda: true}
	if params := firstChildOfKind(n, "block_parameters"); params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			if p := params.NamedChild(i); p.Kind() == "identifier" {
				fn.Args = append(fn.Args, nameNode(p, src))
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		fn.Body = implicitReturn(b.block(body, src))
	} else if bs := firstChildOfKind(n, "body_statement"); bs != nil {
		fn.Body = implicitReturn(b.block(bs, src))
	} else {
		blk := &syntax.Block{Span: spanOf(n)}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if c.Kind() == "block_parameters" || c.Kind() == "comment" {
				continue
			}
			blk.Seq = append(blk.Seq, b.stmt(c, src))
		}
		fn.Body = implicitReturn(blk)
	}
	return fn
}
