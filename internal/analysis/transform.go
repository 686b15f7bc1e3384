package analysis

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/typetrace/typetrace/internal/infer"
	"github.com/typetrace/typetrace/internal/syntax"
)

// Transform evaluates one node under state s and returns its type. Every
// failure mode degrades to Unknown plus a diagnostic; transform never aborts
// a module for a single bad node. Implements infer.Evaluator.
func (a *Analyzer) Transform(n syntax.Node, s *infer.State) infer.Type {
	switch node := n.(type) {
	case nil:
		return infer.Cont

	case *syntax.Module:
		return a.Transform(node.Body, s)

	case *syntax.Block:
		return a.transformBlock(node, s)

	case *syntax.ExprStmt:
		a.Transform(node.Value, s)
		return infer.Cont

	case *syntax.Pass:
		return infer.Cont

	case *syntax.Assign:
		valType := a.Transform(node.Value, s)
		infer.Bind(a, s, node.Target, valType, infer.VariableBinding)
		return infer.Cont

	case *syntax.Global:
		for _, name := range node.Names {
			s.AddGlobalName(name.ID)
		}
		return infer.Cont

	case *syntax.Import:
		return a.transformImport(node, s)

	case *syntax.Name:
		return a.transformName(node, s)

	case *syntax.Int:
		return infer.NewIntValue(node.Value)

	case *syntax.Float:
		return infer.FloatAny

	case *syntax.Str:
		return infer.NewStrLiteral(node.Value)

	case *syntax.SymbolLit:
		return &infer.SymbolType{Name: node.ID}

	case *syntax.BoolLit:
		if node.Value {
			return infer.True
		}
		return infer.False

	case *syntax.NilLit:
		return infer.Nil

	case *syntax.TupleLit:
		t := infer.NewTuple()
		for _, e := range node.Elts {
			t.Add(a.Transform(e, s))
		}
		return t

	case *syntax.ListLit:
		l := infer.NewList(nil)
		for _, e := range node.Elts {
			l.Add(a.Transform(e, s))
		}
		return l

	case *syntax.SetLit:
		set := infer.NewSet(nil)
		for _, e := range node.Elts {
			set.Elt = infer.Union(set.Elt, a.Transform(e, s))
		}
		return set

	case *syntax.DictLit:
		d := infer.NewDict(nil, nil)
		for i := range node.Keys {
			k := a.Transform(node.Keys[i], s)
			var v infer.Type = infer.Unknown
			if i < len(node.Values) {
				v = a.Transform(node.Values[i], s)
			}
			d.Add(k, v)
		}
		return d

	case *syntax.Starred:
		return a.Transform(node.Value, s)

	case *syntax.BinOp:
		return a.transformBinOp(node, s)

	case *syntax.UnaryOp:
		return a.transformUnaryOp(node, s)

	case *syntax.BoolOp:
		return a.transformBoolOp(node, s)

	case *syntax.Compare:
		return a.transformCompare(node, s)

	case *syntax.If:
		return a.transformIf(node, s)

	case *syntax.While:
		a.Transform(node.Test, s)
		bodyType := a.Transform(node.Body, s)
		orelseType := a.Transform(node.OrElse, s)
		return infer.UnionAll(bodyType, orelseType, infer.Cont)

	case *syntax.For:
		return a.transformFor(node, s)

	case *syntax.Try:
		return a.transformTry(node, s)

	case *syntax.Return:
		if node.Value == nil {
			return infer.Nil
		}
		return a.Transform(node.Value, s)

	case *syntax.Yield:
		if node.Value == nil {
			return infer.Cont
		}
		return infer.Union(a.Transform(node.Value, s), infer.Cont)

	case *syntax.Break, *syntax.Continue:
		return infer.Cont

	case *syntax.Function:
		return a.transformFunction(node, s)

	case *syntax.ClassDef:
		return a.transformClass(node, s)

	case *syntax.Attribute:
		return a.transformAttribute(node, s)

	case *syntax.Subscript:
		return a.transformSubscript(node, s)

	case *syntax.Slice:
		a.Transform(node.Lower, s)
		a.Transform(node.Upper, s)
		a.Transform(node.Step, s)
		return infer.Unknown

	case *syntax.Call:
		return a.transformCall(node, s)

	case *syntax.Keyword:
		return a.Transform(node.Value, s)

	case *syntax.Dummy:
		return infer.Unknown

	default:
		return infer.Unknown
	}
}

// transformBlock accumulates the union of statement exit types in source
// order. A statement whose type has no cont member cannot fall through;
// everything after it is unreachable and ignored.
func (a *Analyzer) transformBlock(b *syntax.Block, s *infer.State) infer.Type {
	if len(b.Seq) == 0 {
		return infer.Cont
	}
	returned := false
	retType := infer.Type(infer.Unknown)
	for _, stmt := range b.Seq {
		t := a.Transform(stmt, s)
		if returned {
			continue
		}
		retType = infer.Union(retType, t)
		if !infer.Contains(t, infer.Cont) {
			returned = true
			retType = infer.Remove(retType, infer.Cont)
		}
	}
	if retType == infer.Type(infer.Unknown) {
		return infer.Cont
	}
	return retType
}

func (a *Analyzer) transformName(n *syntax.Name, s *infer.State) infer.Type {
	bs := s.Lookup(n.ID)
	if bs == nil {
		a.Problem(n, "undefined name: "+n.ID)
		return infer.Unknown
	}
	a.putRef(n, bs)
	types := make([]infer.Type, len(bs))
	for i, b := range bs {
		types[i] = b.Type
	}
	return infer.UnionAll(types...)
}

// putRef records one resolved occurrence on every binding it may refer to.
func (a *Analyzer) putRef(n syntax.Node, bs []*infer.Binding) {
	ref := infer.NewRef(n)
	for _, b := range bs {
		b.AddRef(ref)
	}
}

func (a *Analyzer) transformImport(imp *syntax.Import, s *infer.State) infer.Type {
	mt := a.loadSibling(imp)
	name := imp.ModuleName
	var bound syntax.Node = imp
	if imp.Alias != nil {
		name = imp.Alias.ID
		bound = imp.Alias
	}
	if mt == nil {
		a.Problem(imp, "module not found: "+imp.ModuleName)
		s.Insert(name, bound, infer.Unknown, infer.VariableBinding)
		return infer.Cont
	}
	s.Insert(name, bound, mt, infer.ModuleBinding)
	return infer.Cont
}

// loadSibling resolves an import against the importing file's directory,
// then the analysis root.
func (a *Analyzer) loadSibling(imp *syntax.Import) *infer.ModuleType {
	file := syntax.FileOf(imp)
	rel := filepath.FromSlash(replaceDots(imp.ModuleName))
	var candidates []string
	for ext := range a.opts.Extensions {
		if file != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(file), rel+ext))
		}
		if a.root != "" {
			candidates = append(candidates, filepath.Join(a.root, rel+ext))
		}
	}
	for _, c := range candidates {
		if fileExists(c) {
			return a.LoadFile(c)
		}
	}
	return nil
}

func (a *Analyzer) transformFor(f *syntax.For, s *infer.State) infer.Type {
	iterType := a.Transform(f.Iter, s)
	infer.Bind(a, s, f.Target, elementOf(iterType), infer.ScopeBinding)
	bodyType := a.Transform(f.Body, s)
	orelseType := a.Transform(f.OrElse, s)
	return infer.UnionAll(bodyType, orelseType, infer.Cont)
}

// elementOf is the type a loop variable takes when iterating t.
func elementOf(t infer.Type) infer.Type {
	switch v := t.(type) {
	case *infer.ListType:
		return v.Elt
	case *infer.SetType:
		return v.Elt
	case *infer.TupleType:
		return infer.UnionAll(v.Elts...)
	case *infer.DictType:
		return v.Key
	case *infer.StrType:
		return infer.StrAny
	case *infer.UnionType:
		parts := make([]infer.Type, len(v.Members))
		for i, m := range v.Members {
			parts[i] = elementOf(m)
		}
		return infer.UnionAll(parts...)
	default:
		return infer.Unknown
	}
}

func (a *Analyzer) transformTry(t *syntax.Try, s *infer.State) infer.Type {
	handlerType := infer.Type(infer.Unknown)
	for _, h := range t.Handlers {
		handlerType = infer.Union(handlerType, a.transformHandler(h, s))
	}
	bodyType := a.Transform(t.Body, s)
	orelseType := a.Transform(t.OrElse, s)
	finalType := a.Transform(t.FinalBody, s)
	return infer.UnionAll(bodyType, orelseType, handlerType, finalType)
}

// transformHandler runs a rescue/except clause against the original state;
// the caught exception binds as a parameter.
func (a *Analyzer) transformHandler(h *syntax.Handler, s *infer.State) infer.Type {
	excType := infer.Type(infer.Unknown)
	for _, e := range h.Exceptions {
		excType = infer.Union(excType, a.Transform(e, s))
	}
	if h.Binder != nil {
		if cls, ok := excType.(*infer.ClassType); ok {
			excType = infer.NewInstance(cls, h, nil)
		}
		infer.Bind(a, s, h.Binder, excType, infer.ParameterBinding)
	}
	return a.Transform(h.Body, s)
}

func (a *Analyzer) transformIf(n *syntax.If, s *infer.State) infer.Type {
	s1 := s.Copy()
	s2 := s.Copy()

	condType := a.Transform(n.Test, s)
	if b, ok := condType.(*infer.BoolType); ok && b.IsUndecided() {
		if b.S1 != nil {
			s1 = b.S1
		}
		if b.S2 != nil {
			s2 = b.S2
		}
	}

	type1 := infer.Type(infer.Cont)
	if n.Body != nil {
		type1 = a.Transform(n.Body, s1)
	}
	type2 := infer.Type(infer.Cont)
	if n.OrElse != nil {
		type2 = a.Transform(n.OrElse, s2)
	}

	cont1 := infer.Contains(type1, infer.Cont)
	cont2 := infer.Contains(type2, infer.Cont)

	// Decide which branch state flows downstream.
	switch {
	case condType == infer.Type(infer.True) && cont1:
		s.Overwrite(s1)
	case condType == infer.Type(infer.False) && cont2:
		s.Overwrite(s2)
	case cont1 && cont2:
		s.Overwrite(infer.Merge(s1, s2))
	case cont1:
		s.Overwrite(s1)
	case cont2:
		s.Overwrite(s2)
	}

	switch condType {
	case infer.Type(infer.True):
		return type1
	case infer.Type(infer.False):
		return type2
	default:
		return infer.Union(type1, type2)
	}
}

func (a *Analyzer) transformFunction(fn *syntax.Function, s *infer.State) infer.Type {
	ft := infer.NewFunc(fn, s)
	for _, d := range fn.Defaults {
		ft.Defaults = append(ft.Defaults, a.Transform(d, s))
	}
	a.addUncalled(ft)

	if fn.IsLambda || fn.Name == nil {
		return ft
	}

	kind := infer.FunctionBinding
	switch {
	case isConstructorName(fn.Name.ID):
		kind = infer.ConstructorBinding
	case s.Kind == infer.ClassScope:
		kind = infer.MethodBinding
	}
	s.Insert(fn.Name.ID, fn.Name, ft, kind)
	return infer.Cont
}

func isConstructorName(name string) bool {
	return name == "__init__" || name == "initialize"
}

func (a *Analyzer) transformClass(cls *syntax.ClassDef, s *infer.State) infer.Type {
	var super infer.Type
	for _, base := range cls.Bases {
		baseType := a.Transform(base, s)
		if super == nil {
			if _, ok := baseType.(*infer.ClassType); ok {
				super = baseType
			}
		}
	}

	ct := infer.NewClass(cls.Name.ID, s, super)
	s.Insert(cls.Name.ID, cls.Name, ct, infer.ClassBinding)
	a.Transform(cls.Body, ct.Table)
	return infer.Cont
}

// transformAttribute resolves obj.attr without binding a receiver: method
// receivers are supplied at the call site.
func (a *Analyzer) transformAttribute(attr *syntax.Attribute, s *infer.State) infer.Type {
	targetType := a.Transform(attr.Target, s)
	t, _ := a.resolveAttribute(attr, targetType)
	return t
}

// resolveAttribute returns the attribute type and the receiver to pass if
// the attribute is later called as a method.
func (a *Analyzer) resolveAttribute(attr *syntax.Attribute, targetType infer.Type) (infer.Type, infer.Type) {
	result := infer.Type(infer.Unknown)
	var receiver infer.Type
	found := false

	for _, member := range infer.Members(targetType) {
		table := infer.TableOf(member)
		if table == nil {
			continue
		}
		bs := table.LookupAttr(attr.Attr.ID)
		if bs == nil {
			continue
		}
		found = true
		a.putRef(attr.Attr, bs)
		for _, b := range bs {
			result = infer.Union(result, b.Type)
		}
		switch member.(type) {
		case *infer.InstanceType, *infer.ClassType:
			if receiver == nil {
				receiver = member
			}
		}
	}

	if !found {
		if !isUnknownish(targetType) {
			a.Problem(attr.Attr, "attribute not found: "+attr.Attr.ID)
		}
		return infer.Unknown, nil
	}
	return result, receiver
}

func (a *Analyzer) transformSubscript(sub *syntax.Subscript, s *infer.State) infer.Type {
	valType := a.Transform(sub.Value, s)
	var idxType infer.Type = infer.Unknown
	if sub.Index != nil {
		idxType = a.Transform(sub.Index, s)
	}
	if _, isSlice := sub.Index.(*syntax.Slice); isSlice {
		return valType
	}
	return indexInto(valType, idxType)
}

func indexInto(valType, idxType infer.Type) infer.Type {
	switch v := valType.(type) {
	case *infer.ListType:
		return v.Elt
	case *infer.StrType:
		return infer.StrAny
	case *infer.DictType:
		return v.Value
	case *infer.TupleType:
		if it, ok := idxType.(*infer.IntType); ok && it.IsActualValue() {
			i := int(it.Lower.Int64())
			if i >= 0 && i < len(v.Elts) {
				return v.Elts[i]
			}
		}
		return infer.UnionAll(v.Elts...)
	case *infer.UnionType:
		parts := make([]infer.Type, len(v.Members))
		for i, m := range v.Members {
			parts[i] = indexInto(m, idxType)
		}
		return infer.UnionAll(parts...)
	default:
		return infer.Unknown
	}
}

func isUnknownish(t infer.Type) bool {
	if _, ok := t.(*infer.UnknownType); ok {
		return true
	}
	return false
}

func replaceDots(s string) string {
	return strings.ReplaceAll(s, ".", "/")
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
