package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) onChange(paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func waitFor(t *testing.T, ch chan struct{}, d time.Duration) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

func TestWatcherBatchesChanges(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()

	w, err := New(50*time.Millisecond, 100, nil, nil, rec.onChange)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.py"), []byte("y = 2\n"), 0o644))

	require.True(t, waitFor(t, rec.notify, 3*time.Second), "expected a change batch")

	paths := rec.all()
	assert.NotEmpty(t, paths)
}

func TestWatcherExcludesFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()

	w, err := New(50*time.Millisecond, 100, nil, []string{"*.tmp"}, rec.onChange)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.py"), []byte("x = 1\n"), 0o644))

	require.True(t, waitFor(t, rec.notify, 3*time.Second))

	for _, p := range rec.all() {
		assert.NotEqual(t, "scratch.tmp", filepath.Base(p))
	}
}

func TestExcludePatternsValidated(t *testing.T) {
	_, err := New(time.Millisecond, 1, []string{"[bad"}, nil, func([]string) {})
	assert.Error(t, err)
}

func TestShouldExcludeDir(t *testing.T) {
	w, err := New(time.Millisecond, 1, []string{"vendor"}, nil, func([]string) {})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.shouldExcludeDir("/src/vendor"))
	assert.True(t, w.shouldExcludeDir("/src/.git"))
	assert.False(t, w.shouldExcludeDir("/src/app"))
}
