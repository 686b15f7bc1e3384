package astcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typetrace/typetrace/internal/parser"
	"github.com/typetrace/typetrace/internal/syntax"
)

func writeSource(t *testing.T, dir, name, code string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(code), 0o644))
	return path
}

func TestRoundTripPreservesStructure(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "m.py", "def f(a):\n    return a + 1\n\nx = f(2)\n")

	p := parser.New()
	mod, err := p.ParseFile(path)
	require.NoError(t, err)

	data, err := Encode(mod)
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, mod.Name, back.Name)
	assert.Equal(t, mod.SHA1, back.SHA1)
	assert.Equal(t, countNodes(mod), countNodes(back))

	// The parent chain is rebuilt on decode.
	syntax.Walk(back, func(n syntax.Node) bool {
		for _, c := range n.Children() {
			if c == nil {
				continue
			}
			require.Same(t, n, c.Parent())
		}
		return true
	})

	// The file field is resettable.
	back.SetFile("/other/m2.py")
	assert.Equal(t, "/other/m2.py", back.File)
	assert.Equal(t, "m2", back.Name)
	assert.Equal(t, countNodes(mod), countNodes(back))
}

func countNodes(root syntax.Node) int {
	n := 0
	syntax.Walk(root, func(syntax.Node) bool { n++; return true })
	return n
}

func TestMemoryLayerCachesNil(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(parser.New(), "")
	require.NoError(t, err)

	missing := filepath.Join(dir, "gone.py")
	assert.Nil(t, cache.Get(missing))

	// The nil sentinel is served from memory even if the file appears
	// later.
	writeSource(t, dir, "gone.py", "x = 1\n")
	assert.Nil(t, cache.Get(missing))

	cache.Clear()
	assert.NotNil(t, cache.Get(missing))
}

func TestDiskCacheSharedByContent(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	dirA := filepath.Join(dir, "a")
	dirB := filepath.Join(dir, "b")
	require.NoError(t, os.MkdirAll(dirA, 0o755))
	require.NoError(t, os.MkdirAll(dirB, 0o755))

	// Identical content under the same basename shares one disk entry.
	code := "def shared():\n    return 1\n"
	p1 := writeSource(t, dirA, "mod.py", code)
	p2 := writeSource(t, dirB, "mod.py", code)

	cache, err := New(parser.New(), cacheDir)
	require.NoError(t, err)

	m1 := cache.Get(p1)
	require.NotNil(t, m1)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	m2 := cache.Get(p2)
	require.NotNil(t, m2)

	// Still one entry: the second load was a disk hit that adopted the
	// new path.
	entries, err = os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Equal(t, m1.SHA1, m2.SHA1)
	assert.NotEqual(t, m1.File, m2.File)
	assert.Equal(t, p2, m2.File)
	assert.Equal(t, countNodes(m1), countNodes(m2))

	// A fresh instance hits the disk layer and adopts the requested path.
	cache2, err := New(parser.New(), cacheDir)
	require.NoError(t, err)
	again := cache2.Get(p1)
	require.NotNil(t, again)
	assert.Equal(t, p1, again.File)
	assert.Equal(t, m1.SHA1, again.SHA1)
}

func TestCloseClearsDiskCache(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	path := writeSource(t, dir, "m.rb", "x = 1\n")

	cache, err := New(parser.New(), cacheDir)
	require.NoError(t, err)
	require.NotNil(t, cache.Get(path))

	cache.Close()
	_, err = os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err))
}
