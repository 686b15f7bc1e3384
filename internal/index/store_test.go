package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typetrace/typetrace/internal/analysis"
	"github.com/typetrace/typetrace/internal/astcache"
	"github.com/typetrace/typetrace/internal/parser"
)

func analyzedFixture(t *testing.T) (*analysis.Analyzer, string) {
	t.Helper()
	dir := t.TempDir()
	code := "def add(a, b):\n    return a + b\n\ntotal = add(1, 2)\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(code), 0o644))

	cache, err := astcache.New(parser.New(), "")
	require.NoError(t, err)
	a, err := analysis.New(cache, analysis.Options{Quiet: true})
	require.NoError(t, err)
	require.NoError(t, a.Analyze(dir))
	a.Finish()
	return a, dir
}

func TestOpenRejectsBadPaths(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)

	dir := t.TempDir()
	_, err = Open(dir)
	assert.Error(t, err)
}

func TestSaveAndLookup(t *testing.T) {
	a, root := analyzedFixture(t)

	store, err := Open(filepath.Join(t.TempDir(), "idx", "index.db"))
	require.NoError(t, err)
	defer store.Close()

	runID, err := store.SaveRun(root, a)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	records, err := store.LookupQName("main.add")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "function", records[0].Kind)
	assert.Equal(t, "add", records[0].Name)
	assert.Equal(t, 1, records[0].RefCount)

	byFile, err := store.BindingsForFile(records[0].File)
	require.NoError(t, err)
	assert.NotEmpty(t, byFile)
}

func TestLookupReadsLatestRun(t *testing.T) {
	a, root := analyzedFixture(t)

	store, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.SaveRun(root, a)
	require.NoError(t, err)
	_, err = store.SaveRun(root, a)
	require.NoError(t, err)

	records, err := store.LookupQName("main.total")
	require.NoError(t, err)
	assert.Len(t, records, 1, "only the newest run should answer")
}

func TestPruneRuns(t *testing.T) {
	a, root := analyzedFixture(t)

	store, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 4; i++ {
		_, err = store.SaveRun(root, a)
		require.NoError(t, err)
	}
	require.NoError(t, store.PruneRuns(2))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRecordsSortedAndComplete(t *testing.T) {
	a, _ := analyzedFixture(t)

	records := Records(a.AllBindings())
	require.NotEmpty(t, records)
	assert.Len(t, records, len(a.AllBindings()))
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.File == cur.File {
			assert.LessOrEqual(t, prev.Start, cur.Start)
		} else {
			assert.Less(t, prev.File, cur.File)
		}
	}
}
