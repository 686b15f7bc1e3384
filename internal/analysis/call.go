package analysis

import (
	"fmt"
	"sort"

	"github.com/typetrace/typetrace/internal/infer"
	"github.com/typetrace/typetrace/internal/syntax"
)

// transformCall evaluates a call site. The callee and the method receiver
// are resolved together so the receiver can be passed into apply explicitly
// instead of being parked on the function value.
func (a *Analyzer) transformCall(call *syntax.Call, s *infer.State) infer.Type {
	var funType infer.Type
	var self infer.Type

	switch fn := call.Func.(type) {
	case *syntax.Attribute:
		if fn.Attr.ID == "new" {
			// Class.new instantiates in the Ruby dialect.
			funType = a.Transform(fn.Target, s)
		} else {
			targetType := a.Transform(fn.Target, s)
			funType, self = a.resolveAttribute(fn, targetType)
		}
	default:
		funType = a.Transform(call.Func, s)
	}

	pos := make([]infer.Type, len(call.Args))
	for i, arg := range call.Args {
		pos[i] = a.Transform(arg, s)
	}

	var hash map[string]infer.Type
	if len(call.Keywords) > 0 {
		hash = make(map[string]infer.Type, len(call.Keywords))
		for _, k := range call.Keywords {
			hash[k.Arg] = a.Transform(k.Value, s)
		}
	}

	var kw, star, block infer.Type
	if call.KwArgs != nil {
		kw = a.Transform(call.KwArgs, s)
	}
	if call.StarArgs != nil {
		star = a.Transform(call.StarArgs, s)
	}
	if call.BlockArg != nil {
		block = a.Transform(call.BlockArg, s)
	}

	result := infer.Type(infer.Unknown)
	for _, member := range infer.Members(funType) {
		result = infer.Union(result, a.resolveCall(member, pos, hash, kw, star, block, call, self))
	}
	return result
}

func (a *Analyzer) resolveCall(fun infer.Type, pos []infer.Type, hash map[string]infer.Type,
	kw, star, block infer.Type, call *syntax.Call, self infer.Type) infer.Type {

	switch ft := fun.(type) {
	case *infer.FuncType:
		return a.apply(ft, pos, hash, kw, star, block, call, self)
	case *infer.ClassType:
		return a.instantiate(ft, call, pos, hash, kw, star, block)
	case *infer.UnknownType:
		return infer.Unknown
	default:
		a.Problem(call, "calling non-function and non-class: "+fun.String())
		return infer.Unknown
	}
}

// instantiate synthesizes an instance identified by the creating call node
// and runs the constructor with the instance as receiver.
func (a *Analyzer) instantiate(cls *infer.ClassType, call *syntax.Call, pos []infer.Type,
	hash map[string]infer.Type, kw, star, block infer.Type) infer.Type {

	inst := infer.NewInstance(cls, call, pos)
	for _, ctorName := range []string{"__init__", "initialize"} {
		bs := cls.Table.LookupAttr(ctorName)
		if bs == nil {
			continue
		}
		for _, b := range bs {
			if ctor, ok := b.Type.(*infer.FuncType); ok {
				a.apply(ctor, pos, hash, kw, star, block, call, inst)
			}
		}
		break
	}
	return inst
}

// apply evaluates a function body against actual argument types. Results are
// memoized per tuple of actuals; a call node already on the evaluation stack
// is a cycle and yields a fresh unknown so the recursive edge stays visible
// in the final union.
func (a *Analyzer) apply(ft *infer.FuncType, pos []infer.Type, hash map[string]infer.Type,
	kw, star, block infer.Type, call *syntax.Call, self infer.Type) infer.Type {

	a.removeUncalled(ft)

	if ft.Def != nil && !ft.Def.Called {
		a.nCalled++
		ft.Def.Called = true
	}

	if ft.Def == nil {
		// Builtin: no body to evaluate, return the declared type.
		if ft.Ret != nil {
			return ft.Ret
		}
		return infer.Unknown
	}

	if call != nil && a.inStack(call) {
		return &infer.UnknownType{}
	}
	if call != nil {
		a.pushStack(call)
		defer a.popStack()
	}

	funcTable := infer.NewState(ft.Env, infer.FunctionScope)
	name := funcDisplayName(ft.Def)
	if ft.Env != nil {
		funcTable.Path = ft.Env.ExtendPath(name)
	} else {
		funcTable.Path = name
	}

	// The Python dialect declares the receiver as an explicit first formal;
	// there it joins the positionals. The Ruby dialect has no receiver
	// formal, so self binds by name instead.
	if self != nil {
		if firstFormalIsSelf(ft.Def) {
			pos = append([]infer.Type{self}, pos...)
		} else {
			var at syntax.Node = ft.Def
			if ft.Def.Name != nil {
				at = ft.Def.Name
			}
			funcTable.Insert("self", at, self, infer.ParameterBinding)
		}
	}

	fromType := a.bindParams(call, ft.Def, funcTable, pos, ft.Defaults, hash, kw, star, block)

	if cached, ok := ft.Mapping(fromType); ok {
		return cached
	}

	toType := a.Transform(ft.Def.Body, funcTable)
	if infer.MissingReturn(toType) {
		if ft.Def.Name != nil {
			a.Problem(ft.Def.Name, "function not always returns a value")
		}
		if call != nil {
			a.Problem(call, "call not always returns a value")
		}
	}
	ft.AddMapping(fromType, toType)
	return toType
}

func firstFormalIsSelf(def *syntax.Function) bool {
	if len(def.Args) == 0 {
		return false
	}
	n, ok := def.Args[0].(*syntax.Name)
	return ok && (n.ID == "self" || n.ID == "this")
}

func funcDisplayName(def *syntax.Function) string {
	if def.Name != nil {
		return def.Name.ID
	}
	return fmt.Sprintf("lambda%d", def.Start())
}

// bindParams binds formals to actuals and returns the tuple of types that
// keys the call cache. Keyword arguments consume formals before starargs;
// leftover keywords feed **kw, leftover positionals feed *rest.
func (a *Analyzer) bindParams(call *syntax.Call, def *syntax.Function, funcTable *infer.State,
	pos []infer.Type, defaults []infer.Type, hash map[string]infer.Type,
	kw, star, block infer.Type) *infer.TupleType {

	fromType := infer.NewTuple()
	pSize := len(def.Args)
	aSize := len(pos)
	dSize := len(defaults)
	nPos := pSize - dSize

	if hash != nil {
		// Work on a copy so the caller's map survives.
		copied := make(map[string]infer.Type, len(hash))
		for k, v := range hash {
			copied[k] = v
		}
		hash = copied
	}

	if lt, ok := star.(*infer.ListType); ok {
		star = lt.ToTuple()
	}

	j := 0
	for i := 0; i < pSize; i++ {
		arg := def.Args[i]
		var aType infer.Type
		switch {
		case i < aSize:
			aType = pos[i]
		case i-nPos >= 0 && i-nPos < dSize:
			aType = defaults[i-nPos]
		default:
			if name, ok := arg.(*syntax.Name); ok && hash != nil && hash[name.ID] != nil {
				aType = hash[name.ID]
				delete(hash, name.ID)
			} else if st, ok := star.(*infer.TupleType); ok && j < len(st.Elts) {
				aType = st.Elts[j]
				j++
			} else {
				aType = infer.Unknown
				if call != nil {
					a.Problem(arg, "unable to bind argument")
				}
			}
		}
		infer.Bind(a, funcTable, arg, aType, infer.ParameterBinding)
		fromType.Add(aType)
	}

	if def.Kwarg != nil {
		if len(hash) > 0 {
			keys := make([]string, 0, len(hash))
			for k := range hash {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			vals := make([]infer.Type, len(keys))
			for i, k := range keys {
				vals[i] = hash[k]
			}
			infer.Bind(a, funcTable, def.Kwarg,
				infer.NewDict(infer.StrAny, infer.UnionAll(vals...)), infer.ParameterBinding)
		} else {
			infer.Bind(a, funcTable, def.Kwarg, infer.Unknown, infer.ParameterBinding)
		}
	}

	if def.Vararg != nil {
		if aSize > pSize {
			if nAfter := len(def.AfterRest); nAfter > 0 {
				for i := 0; i < nAfter; i++ {
					infer.Bind(a, funcTable, def.AfterRest[i],
						pos[aSize-nAfter+i], infer.ParameterBinding)
				}
				if aSize-nAfter > pSize {
					rest := infer.NewTuple(pos[pSize : aSize-nAfter]...)
					infer.Bind(a, funcTable, def.Vararg, rest, infer.ParameterBinding)
				}
			} else {
				rest := infer.NewTuple(pos[pSize:]...)
				infer.Bind(a, funcTable, def.Vararg, rest, infer.ParameterBinding)
			}
		} else {
			infer.Bind(a, funcTable, def.Vararg, infer.Unknown, infer.ParameterBinding)
		}
	}

	if def.BlockArg != nil && block != nil {
		infer.Bind(a, funcTable, def.BlockArg, block, infer.ParameterBinding)
	}

	return fromType
}
