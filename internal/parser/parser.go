// Package parser bridges tree-sitter concrete syntax trees into the node
// taxonomy the analyzer consumes. The grammars act as the external parsing
// oracle; anything a builder does not model degrades to a Dummy node.
package parser

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/typetrace/typetrace/internal/syntax"
)

// ErrUnsupportedLanguage marks files no registered grammar covers. The AST
// cache treats it like any other parse error, so such a file is reported as
// a parse failure.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrParseFailed is a hard parse failure: the grammar produced no tree. The
// AST cache records it as a nil sentinel.
var ErrParseFailed = errors.New("parse failed")

// builder converts one language's CST into the shared AST.
type builder interface {
	Build(root *sitter.Node, source []byte) syntax.Node
}

type Parser struct {
	languages map[string]*sitter.Language
	builders  map[string]builder
}

func New() *Parser {
	return &Parser{
		languages: map[string]*sitter.Language{
			"python": sitter.NewLanguage(tree_sitter_python.Language()),
			"ruby":   sitter.NewLanguage(tree_sitter_ruby.Language()),
		},
		builders: map[string]builder{
			"python": &pythonBuilder{},
			"ruby":   &rubyBuilder{},
		},
	}
}

// ParseFile reads and parses one source file into a module root carrying the
// file path and the sha1 of its content.
func (p *Parser) ParseFile(path string) (*syntax.Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	return p.Parse(path, content)
}

// Parse builds the module for already-read content.
func (p *Parser) Parse(path string, content []byte) (*syntax.Module, error) {
	lang := DetectLanguage(path)
	if lang == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filepath.Ext(path))
	}

	grammar := p.languages[lang]
	b := p.builders[lang]
	if grammar == nil || b == nil {
		return nil, fmt.Errorf("%w: no grammar for %s", ErrUnsupportedLanguage, lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(grammar); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrParseFailed)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%s: %w: no tree produced", path, ErrParseFailed)
	}

	body := b.Build(root, content)
	block, ok := body.(*syntax.Block)
	if !ok {
		block = &syntax.Block{Span: spanOf(root)}
		if body != nil {
			block.Seq = []syntax.Node{body}
		}
	}

	mod := &syntax.Module{
		Span: spanOf(root),
		Name: ModuleName(path),
		File: path,
		SHA1: SourceHash(content),
		Body: block,
	}
	syntax.SetParents(mod)
	return mod, nil
}

// Close releases parser resources. Grammar handles are process-wide in the
// tree-sitter bindings, so this is a no-op kept for the cache contract.
func (p *Parser) Close() {}

// DetectLanguage maps a file extension to a grammar name.
func DetectLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	default:
		return ""
	}
}

// ModuleName is the qualified-name leaf for a file.
func ModuleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SourceHash is the content hash the disk cache keys on.
func SourceHash(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

func spanOf(n *sitter.Node) syntax.Span {
	return syntax.Span{StartByte: int(n.StartByte()), EndByte: int(n.EndByte())}
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

func dummy(n *sitter.Node) *syntax.Dummy {
	return &syntax.Dummy{Span: spanOf(n)}
}

func nameNode(n *sitter.Node, src []byte) *syntax.Name {
	return &syntax.Name{Span: spanOf(n), ID: text(n, src)}
}

// unquote strips matching string delimiters and literal prefixes.
func unquote(raw string) string {
	s := raw
	for len(s) > 0 {
		switch s[0] {
		case 'r', 'b', 'u', 'f', 'R', 'B', 'U', 'F':
			s = s[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// parseFloat is forgiving: literal oddities fall back to zero.
func parseFloat(raw string) float64 {
	var f float64
	if _, err := fmt.Sscanf(strings.ReplaceAll(raw, "_", ""), "%g", &f); err != nil {
		return 0
	}
	return f
}
