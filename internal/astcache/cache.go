// Package astcache memoizes parsed module roots for the life of the process
// and mirrors them into an on-disk cache keyed by source-content hash, so
// re-analysis of unchanged files skips the parser entirely.
package astcache

import (
	"bytes"
	"encoding/gob"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/typetrace/typetrace/internal/observability"
	"github.com/typetrace/typetrace/internal/parser"
	"github.com/typetrace/typetrace/internal/syntax"
)

// Cache provides the analyzer's AST factory. Not safe for concurrent use;
// analysis is single-threaded by design.
type Cache struct {
	parser   *parser.Parser
	cacheDir string
	mem      map[string]*syntax.Module
}

// New builds a cache. cacheDir may be empty to disable the disk layer.
func New(p *parser.Parser, cacheDir string) (*Cache, error) {
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Cache{
		parser:   p,
		cacheDir: cacheDir,
		mem:      make(map[string]*syntax.Module),
	}, nil
}

// Get returns the AST for path, or nil when the parse failed. Failed parses
// are cached too: a nil hit returns immediately without touching the disk.
func (c *Cache) Get(path string) *syntax.Module {
	if mod, seen := c.mem[path]; seen {
		observability.CacheHits.WithLabelValues("memory").Inc()
		return mod
	}

	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read source", "path", path, "error", err)
		c.mem[path] = nil
		return nil
	}

	if mod := c.loadDisk(path, content); mod != nil {
		observability.CacheHits.WithLabelValues("disk").Inc()
		c.mem[path] = mod
		return mod
	}

	observability.CacheMisses.Inc()
	mod, err := c.parser.Parse(path, content)
	if err != nil {
		slog.Warn("parse failed", "path", path, "error", err)
		c.mem[path] = nil
		return nil
	}
	c.mem[path] = mod
	c.storeDisk(path, content, mod)
	return mod
}

// Clear drops the in-memory layer only.
func (c *Cache) Clear() {
	c.mem = make(map[string]*syntax.Module)
}

// Close releases the parser and removes the on-disk cache. Callers that want
// the disk cache to persist across runs must not call Close.
func (c *Cache) Close() {
	c.parser.Close()
	if c.cacheDir != "" {
		if err := os.RemoveAll(c.cacheDir); err != nil {
			slog.Warn("failed to clear disk cache", "dir", c.cacheDir, "error", err)
		}
	}
}

// diskPath is <basename><sha1>.ast inside the cache directory. Two paths
// with identical content share one entry.
func (c *Cache) diskPath(path string, content []byte) string {
	return filepath.Join(c.cacheDir, filepath.Base(path)+parser.SourceHash(content)+".ast")
}

func (c *Cache) loadDisk(path string, content []byte) *syntax.Module {
	if c.cacheDir == "" {
		return nil
	}
	data, err := os.ReadFile(c.diskPath(path, content))
	if err != nil {
		return nil
	}
	mod, err := Decode(data)
	if err != nil {
		slog.Warn("corrupt cache entry", "path", path, "error", err)
		return nil
	}
	// The entry may have been written under a different path with the same
	// content; adopt the current one.
	mod.SetFile(path)
	return mod
}

func (c *Cache) storeDisk(path string, content []byte, mod *syntax.Module) {
	if c.cacheDir == "" {
		return
	}
	data, err := Encode(mod)
	if err != nil {
		slog.Warn("failed to serialize ast", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(c.diskPath(path, content), data, 0o644); err != nil {
		slog.Warn("failed to write cache entry", "path", path, "error", err)
	}
}

// Encode serializes a module root. Parent links are rebuilt on decode, so
// the stored tree is acyclic.
func Encode(mod *syntax.Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(mod); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes a module root and restores the parent chain.
func Decode(data []byte) (*syntax.Module, error) {
	var mod syntax.Module
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&mod); err != nil {
		return nil, err
	}
	syntax.SetParents(&mod)
	return &mod, nil
}

func init() {
	// Every concrete node variant that can sit behind a Node interface
	// field must be registered for gob.
	gob.Register(&syntax.Module{})
	gob.Register(&syntax.Block{})
	gob.Register(&syntax.Function{})
	gob.Register(&syntax.ClassDef{})
	gob.Register(&syntax.Call{})
	gob.Register(&syntax.Keyword{})
	gob.Register(&syntax.If{})
	gob.Register(&syntax.While{})
	gob.Register(&syntax.For{})
	gob.Register(&syntax.Try{})
	gob.Register(&syntax.Handler{})
	gob.Register(&syntax.Return{})
	gob.Register(&syntax.Yield{})
	gob.Register(&syntax.Break{})
	gob.Register(&syntax.Continue{})
	gob.Register(&syntax.Pass{})
	gob.Register(&syntax.Assign{})
	gob.Register(&syntax.Global{})
	gob.Register(&syntax.Import{})
	gob.Register(&syntax.Name{})
	gob.Register(&syntax.Attribute{})
	gob.Register(&syntax.Subscript{})
	gob.Register(&syntax.Slice{})
	gob.Register(&syntax.TupleLit{})
	gob.Register(&syntax.ListLit{})
	gob.Register(&syntax.SetLit{})
	gob.Register(&syntax.DictLit{})
	gob.Register(&syntax.Starred{})
	gob.Register(&syntax.Int{})
	gob.Register(&syntax.Float{})
	gob.Register(&syntax.Str{})
	gob.Register(&syntax.SymbolLit{})
	gob.Register(&syntax.BoolLit{})
	gob.Register(&syntax.NilLit{})
	gob.Register(&syntax.BinOp{})
	gob.Register(&syntax.UnaryOp{})
	gob.Register(&syntax.BoolOp{})
	gob.Register(&syntax.Compare{})
	gob.Register(&syntax.ExprStmt{})
	gob.Register(&syntax.Dummy{})
}
