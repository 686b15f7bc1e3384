package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typetrace/typetrace/internal/analysis"
	"github.com/typetrace/typetrace/internal/astcache"
	"github.com/typetrace/typetrace/internal/index"
	"github.com/typetrace/typetrace/internal/parser"
)

func analyzedFixture(t *testing.T) (*analysis.Analyzer, string) {
	t.Helper()
	dir := t.TempDir()
	code := "def hello(name):\n    return name\n\ngreeting = hello(\"world\")\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(code), 0o644))

	cache, err := astcache.New(parser.New(), "")
	require.NoError(t, err)
	a, err := analysis.New(cache, analysis.Options{Quiet: true})
	require.NoError(t, err)
	require.NoError(t, a.Analyze(dir))
	a.Finish()
	return a, dir
}

func TestLinkerCollectsDefsAndRefs(t *testing.T) {
	a, _ := analyzedFixture(t)

	l := NewLinker()
	l.FindLinks(a)

	files := l.Files()
	require.Len(t, files, 1)

	styles := l.StylesFor(files[0])
	require.NotEmpty(t, styles)

	anchors, links := 0, 0
	for i, s := range styles {
		switch s.Kind {
		case StyleAnchor:
			anchors++
		case StyleLink:
			links++
		}
		if i > 0 {
			assert.GreaterOrEqual(t, s.Start, styles[i-1].Start, "styles must be sorted")
		}
	}
	assert.NotZero(t, anchors, "definition sites produce anchors")
	assert.NotZero(t, links, "references produce links")

	// Builtins never style user files.
	for _, s := range styles {
		assert.NotContains(t, s.URL, "docs.python.org/3/library/functions.html#print")
	}
}

func TestLinkerDeduplicates(t *testing.T) {
	a, _ := analyzedFixture(t)

	l := NewLinker()
	l.FindLinks(a)
	once := len(l.StylesFor(l.Files()[0]))
	l.FindLinks(a)
	assert.Equal(t, once, len(l.StylesFor(l.Files()[0])))
}

func TestStylerWritesPages(t *testing.T) {
	a, _ := analyzedFixture(t)
	out := t.TempDir()

	l := NewLinker()
	l.FindLinks(a)
	s := NewStyler(a, l, filepath.Join(out, "html"))
	require.NoError(t, s.WriteAll())

	entries, err := os.ReadDir(filepath.Join(out, "html"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	idx, err := os.ReadFile(filepath.Join(out, "html", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(idx), "main.py")

	var page string
	for _, e := range entries {
		if e.Name() == "index.html" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(out, "html", e.Name()))
		require.NoError(t, err)
		page = string(data)
	}
	require.NotEmpty(t, page)
	assert.Contains(t, page, `class="def"`)
	assert.Contains(t, page, `class="ref"`)
	assert.Contains(t, page, "hello")
}

func TestBindingsTable(t *testing.T) {
	a, _ := analyzedFixture(t)

	var buf bytes.Buffer
	WriteBindingsTable(&buf, index.Records(a.AllBindings()), false)
	out := buf.String()

	assert.Contains(t, out, "main.hello")
	assert.Contains(t, out, "QNAME")
	assert.NotContains(t, out, "docs.python.org")
}

func TestSummary(t *testing.T) {
	a, root := analyzedFixture(t)
	s := BuildSummary(root, a, 42*time.Millisecond)

	assert.Equal(t, 1, s.Files)
	assert.NotZero(t, s.Bindings)
	assert.NotZero(t, s.References)
	assert.Equal(t, 1, s.Called)

	var buf bytes.Buffer
	s.Print(&buf)
	assert.True(t, strings.Contains(buf.String(), "1 files"))
}
