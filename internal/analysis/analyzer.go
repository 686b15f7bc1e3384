// Package analysis implements the semantic analyzer: a recursive abstract
// interpretation over the AST that threads lexical state through every
// expression and records bindings, references and problems along the way.
package analysis

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/typetrace/typetrace/internal/infer"
	"github.com/typetrace/typetrace/internal/observability"
	"github.com/typetrace/typetrace/internal/syntax"
)

// Loader supplies parsed module roots; the AST cache implements it.
type Loader interface {
	Get(path string) *syntax.Module
}

// Diagnostic is one semantic problem attached to a node or a file.
type Diagnostic struct {
	File    string
	Start   int
	End     int
	Message string
}

// Options configure one analyzer instance.
type Options struct {
	// Extensions maps a file extension (with dot) to a language name.
	// Defaults to the Python and Ruby dialects.
	Extensions map[string]string
	// ExcludeDirs and ExcludeFiles are glob patterns skipped during
	// discovery.
	ExcludeDirs  []string
	ExcludeFiles []string
	Quiet        bool
	Debug        bool
}

func (o *Options) withDefaults() {
	if o.Extensions == nil {
		o.Extensions = map[string]string{".py": "python", ".rb": "ruby"}
	}
}

// Analyzer is the process-wide analysis context. It owns every State, Type
// and Binding created during a run; callers hold them by reference and must
// not mutate. It is not safe for concurrent use: analysis is sequential by
// design.
type Analyzer struct {
	Globals *infer.State

	loader Loader
	opts   Options

	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob

	modules     map[string]*infer.ModuleType
	loadedFiles map[string]struct{}
	asts        map[string]*syntax.Module

	callStack []*syntax.Call
	uncalled  map[*infer.FuncType]struct{}
	funcOrder []*infer.FuncType

	bindings     []*infer.Binding
	problems     map[syntax.Node][]Diagnostic
	fileProblems map[string][]Diagnostic
	references   map[infer.Ref][]*infer.Binding

	nCalled  int
	root     string
	finished bool
}

// New builds an analyzer with a populated builtin environment.
func New(loader Loader, opts Options) (*Analyzer, error) {
	opts.withDefaults()
	a := &Analyzer{
		loader:       loader,
		opts:         opts,
		modules:      make(map[string]*infer.ModuleType),
		loadedFiles:  make(map[string]struct{}),
		asts:         make(map[string]*syntax.Module),
		uncalled:     make(map[*infer.FuncType]struct{}),
		problems:     make(map[syntax.Node][]Diagnostic),
		fileProblems: make(map[string][]Diagnostic),
		references:   make(map[infer.Ref][]*infer.Binding),
	}

	for _, pattern := range opts.ExcludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		a.excludeDirs = append(a.excludeDirs, g)
	}
	for _, pattern := range opts.ExcludeFiles {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		a.excludeFiles = append(a.excludeFiles, g)
	}

	a.Globals = infer.NewState(nil, infer.GlobalScope)
	a.Globals.OnInsert = func(b *infer.Binding) {
		a.bindings = append(a.bindings, b)
	}
	a.installBuiltins()
	return a, nil
}

// Analyze enumerates source files under root (or analyzes root itself when
// it is a file) and transforms every module. Call Finish afterwards.
func (a *Analyzer) Analyze(root string) error {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	a.root = root
	paths, err := a.discover(root)
	if err != nil {
		return err
	}
	if !a.opts.Quiet {
		slog.Info("analyzing", "root", root, "files", len(paths))
	}
	for _, p := range paths {
		a.LoadFile(p)
	}
	return nil
}

// discover walks root and returns the matching source files in sorted order
// so module registration, and with it every qualified name, is
// deterministic.
func (a *Analyzer) discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if path != root && (strings.HasPrefix(base, ".") || a.matchAny(a.excludeDirs, base)) {
				return filepath.SkipDir
			}
			return nil
		}
		if a.matchAny(a.excludeFiles, base) {
			return nil
		}
		if _, ok := a.opts.Extensions[filepath.Ext(path)]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (a *Analyzer) matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// LoadFile returns the module type for path, analyzing the file on first
// load. A failed parse registers a file problem and returns nil.
func (a *Analyzer) LoadFile(path string) *infer.ModuleType {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	if mt, ok := a.modules[path]; ok {
		return mt
	}
	if _, loading := a.loadedFiles[path]; loading {
		// Already attempted and not registered: the parse failed, so
		// this returns nil. Modules mid-transform returned above.
		return a.modules[path]
	}
	a.loadedFiles[path] = struct{}{}

	start := time.Now()
	mod := a.loader.Get(path)
	observability.ParseDuration.WithLabelValues(a.languageOf(path)).Observe(time.Since(start).Seconds())
	if mod == nil {
		a.PutFileProblem(path, "parse failure")
		observability.ParseFailures.Inc()
		return nil
	}
	a.asts[path] = mod

	qname := a.moduleQName(path)
	mt := infer.NewModule(mod.Name, path, qname, a.Globals)
	a.modules[path] = mt
	a.Globals.Insert(mod.Name, mod, mt, infer.ModuleBinding)

	a.Transform(mod.Body, mt.Table)
	observability.ModulesLoaded.Inc()
	return mt
}

// moduleQName derives the dotted qualified name of a module from its path
// relative to the analysis root.
func (a *Analyzer) moduleQName(path string) string {
	rel := path
	if a.root != "" {
		if r, err := filepath.Rel(a.root, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		} else {
			rel = filepath.Base(path)
		}
	} else {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}

func (a *Analyzer) languageOf(path string) string {
	if lang, ok := a.opts.Extensions[filepath.Ext(path)]; ok {
		return lang
	}
	return "unknown"
}

// Finish applies every function that was defined but never called, so
// definitions reached only through indirect dispatch still get bindings,
// then builds the reference index.
func (a *Analyzer) Finish() {
	for {
		pending := a.pendingUncalled()
		if len(pending) == 0 {
			break
		}
		for _, ft := range pending {
			a.applyUncalled(ft)
		}
	}

	for _, b := range a.bindings {
		for r := range b.Refs {
			a.references[r] = append(a.references[r], b)
		}
	}
	observability.BindingsTotal.Set(float64(len(a.bindings)))
	a.finished = true
}

// pendingUncalled snapshots the uncalled set in definition order.
func (a *Analyzer) pendingUncalled() []*infer.FuncType {
	var out []*infer.FuncType
	for _, ft := range a.funcOrder {
		if _, ok := a.uncalled[ft]; ok {
			out = append(out, ft)
		}
	}
	return out
}

func (a *Analyzer) applyUncalled(ft *infer.FuncType) {
	args := make([]infer.Type, 0)
	if ft.Def != nil {
		for range ft.Def.Args {
			args = append(args, infer.Unknown)
		}
	}
	a.apply(ft, args, nil, nil, nil, nil, nil, nil)
}

func (a *Analyzer) addUncalled(ft *infer.FuncType) {
	if _, ok := a.uncalled[ft]; !ok {
		a.uncalled[ft] = struct{}{}
		a.funcOrder = append(a.funcOrder, ft)
	}
}

func (a *Analyzer) removeUncalled(ft *infer.FuncType) {
	delete(a.uncalled, ft)
}

// inStack reports whether this exact call node is being evaluated already.
func (a *Analyzer) inStack(call *syntax.Call) bool {
	for _, c := range a.callStack {
		if c == call {
			return true
		}
	}
	return false
}

func (a *Analyzer) pushStack(call *syntax.Call) {
	a.callStack = append(a.callStack, call)
}

func (a *Analyzer) popStack() {
	a.callStack = a.callStack[:len(a.callStack)-1]
}

// Problem attaches a diagnostic to a node. Implements infer.Evaluator.
func (a *Analyzer) Problem(n syntax.Node, msg string) {
	if n == nil {
		return
	}
	a.problems[n] = append(a.problems[n], Diagnostic{
		File:    syntax.FileOf(n),
		Start:   n.Start(),
		End:     n.End(),
		Message: msg,
	})
	observability.Diagnostics.Inc()
	if a.opts.Debug {
		slog.Debug("problem", "file", syntax.FileOf(n), "start", n.Start(), "msg", msg)
	}
}

// PutFileProblem attaches a diagnostic to a whole file.
func (a *Analyzer) PutFileProblem(file, msg string) {
	a.fileProblems[file] = append(a.fileProblems[file], Diagnostic{File: file, Message: msg})
	observability.Diagnostics.Inc()
}

// AstForFile returns the parsed module root for a loaded file, or nil.
func (a *Analyzer) AstForFile(path string) *syntax.Module {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return a.asts[path]
}

// ModuleForFile returns the module type registered for a loaded file.
func (a *Analyzer) ModuleForFile(path string) *infer.ModuleType {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return a.modules[path]
}

// AllBindings returns every binding created during analysis, in creation
// order.
func (a *Analyzer) AllBindings() []*infer.Binding {
	return a.bindings
}

// References returns the reference index built by Finish: every observed
// reference mapped to the bindings it resolves to.
func (a *Analyzer) References() map[infer.Ref][]*infer.Binding {
	return a.references
}

// Problems returns node-level diagnostics.
func (a *Analyzer) Problems() map[syntax.Node][]Diagnostic {
	return a.problems
}

// FileProblems returns file-level diagnostics such as parse failures.
func (a *Analyzer) FileProblems() map[string][]Diagnostic {
	return a.fileProblems
}

// LoadedFiles lists analyzed files in sorted order.
func (a *Analyzer) LoadedFiles() []string {
	out := make([]string, 0, len(a.modules))
	for f := range a.modules {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// CalledFunctions reports how many distinct function definitions were
// applied at least once.
func (a *Analyzer) CalledFunctions() int { return a.nCalled }
