package infer

import "github.com/typetrace/typetrace/internal/syntax"

// ScopeKind tells what program construct owns a State.
type ScopeKind int

const (
	ModuleScope ScopeKind = iota
	ClassScope
	FunctionScope
	InstanceScope
	BlockScope
	GlobalScope
)

// State is one lexical environment. States form a parent chain up to the
// global builtin table; Path is the dotted qualified-name prefix for every
// binding created in this scope.
type State struct {
	Parent *State
	Kind   ScopeKind
	Path   string

	// Type backlinks to the owner for class/instance/module scopes.
	Type Type

	// OnInsert observes every binding created under this state tree; the
	// analyzer uses it to maintain the global binding index. Child states
	// inherit it.
	OnInsert func(*Binding)

	table       map[string][]*Binding
	supers      []*State
	globalNames map[string]struct{}
}

func NewState(parent *State, kind ScopeKind) *State {
	s := &State{
		Parent: parent,
		Kind:   kind,
		table:  make(map[string][]*Binding),
	}
	if parent != nil {
		s.OnInsert = parent.OnInsert
	}
	return s
}

// Copy produces a shallow snapshot used for branch-flow analysis: same
// parent, cloned table with cloned binding lists.
func (s *State) Copy() *State {
	c := &State{
		Parent:      s.Parent,
		Kind:        s.Kind,
		Path:        s.Path,
		Type:        s.Type,
		OnInsert:    s.OnInsert,
		table:       make(map[string][]*Binding, len(s.table)),
		supers:      s.supers,
		globalNames: s.globalNames,
	}
	for name, bs := range s.table {
		c.table[name] = append([]*Binding(nil), bs...)
	}
	return c
}

// Overwrite replaces this state's bindings with other's, keeping identity so
// captured environment pointers stay valid.
func (s *State) Overwrite(other *State) {
	s.table = other.table
	s.Path = other.Path
	s.Kind = other.Kind
}

// Merge unions binding lists per key from both states into a new state.
func Merge(a, b *State) *State {
	out := a.Copy()
	for name, bs := range b.table {
		have := out.table[name]
		for _, binding := range bs {
			seen := false
			for _, h := range have {
				if h == binding {
					seen = true
					break
				}
			}
			if !seen {
				have = append(have, binding)
			}
		}
		out.table[name] = have
	}
	return out
}

// AddSuper links a superclass scope for attribute resolution.
func (s *State) AddSuper(sup *State) { s.supers = append(s.supers, sup) }

// AddGlobalName marks a name as module-scoped for the rest of this scope.
func (s *State) AddGlobalName(name string) {
	if s.globalNames == nil {
		s.globalNames = make(map[string]struct{})
	}
	s.globalNames[name] = struct{}{}
}

func (s *State) IsGlobalName(name string) bool {
	if s.globalNames != nil {
		if _, ok := s.globalNames[name]; ok {
			return true
		}
	}
	if s.Parent != nil && (s.Kind == FunctionScope || s.Kind == BlockScope) {
		return s.Parent.IsGlobalName(name)
	}
	return false
}

// globalTable walks up to the nearest module (or outermost) state.
func (s *State) globalTable() *State {
	for cur := s; ; cur = cur.Parent {
		if cur.Kind == ModuleScope || cur.Parent == nil {
			return cur
		}
	}
}

// Insert creates or extends a binding in this scope and returns it. If the
// name exists here already, the new type unions in and the existing binding
// is reused: repeated assignment refines, never shadows, within one scope.
func (s *State) Insert(name string, node syntax.Node, t Type, kind Kind) *Binding {
	target := s
	if kind == VariableBinding && s.IsGlobalName(name) {
		target = s.globalTable()
	}

	if existing := target.table[name]; len(existing) > 0 {
		b := existing[0]
		b.AddType(t)
		return b
	}

	b := NewBinding(name, node, t, kind)
	b.QName = target.ExtendPath(name)
	if m, ok := t.(*ModuleType); ok && kind == ModuleBinding {
		b.QName = m.QName
	}
	target.table[name] = append(target.table[name], b)
	if target.OnInsert != nil {
		target.OnInsert(b)
	}
	return b
}

// Update replaces the binding list at name.
func (s *State) Update(name string, bs ...*Binding) {
	s.table[name] = bs
}

// Remove drops a name from this scope only.
func (s *State) Remove(name string) { delete(s.table, name) }

// LookupLocal returns the binding list declared directly in this scope.
func (s *State) LookupLocal(name string) []*Binding {
	return s.table[name]
}

// Lookup walks the parent chain and returns the innermost declaration.
func (s *State) Lookup(name string) []*Binding {
	for cur := s; cur != nil; cur = cur.Parent {
		if bs := cur.table[name]; len(bs) > 0 {
			return bs
		}
	}
	return nil
}

// LookupAttr resolves an attribute against this table and its superclass
// tables. It never walks the lexical parent chain.
func (s *State) LookupAttr(name string) []*Binding {
	return s.lookupAttr(name, make(map[*State]struct{}))
}

func (s *State) lookupAttr(name string, seen map[*State]struct{}) []*Binding {
	if _, ok := seen[s]; ok {
		return nil
	}
	seen[s] = struct{}{}
	if bs := s.table[name]; len(bs) > 0 {
		return bs
	}
	// Instance tables parent on their class table; class tables chain to
	// supers explicitly.
	if s.Kind == InstanceScope && s.Parent != nil && s.Parent.Kind == ClassScope {
		if bs := s.Parent.lookupAttr(name, seen); len(bs) > 0 {
			return bs
		}
	}
	for _, sup := range s.supers {
		if bs := sup.lookupAttr(name, seen); len(bs) > 0 {
			return bs
		}
	}
	return nil
}

// ExtendPath appends a segment to the qualified-name prefix.
func (s *State) ExtendPath(segment string) string {
	if s.Path == "" {
		return segment
	}
	return s.Path + "." + segment
}

// Names lists the names declared directly in this scope.
func (s *State) Names() []string {
	out := make([]string, 0, len(s.table))
	for name := range s.table {
		out = append(out, name)
	}
	return out
}

// Entries iterates the local table.
func (s *State) Entries(f func(name string, bs []*Binding)) {
	for name, bs := range s.table {
		f(name, bs)
	}
}
