package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typetrace.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ".typetrace/cache", cfg.Paths.CacheDir)
	assert.Equal(t, 5, cfg.Analysis.KeepRuns)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Watch.Debounce)

	exts := cfg.Extensions()
	assert.Equal(t, "python", exts[".py"])
	assert.Equal(t, "ruby", exts[".rb"])
}

func TestLoadOverridesAndDurations(t *testing.T) {
	path := writeConfig(t, `
version = 1

[paths]
cache_dir = "/tmp/tt-cache"

[watch]
debounce = "250ms"
rate_limit = 4.0

[languages.python]
extensions = [".py", ".pyi"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tt-cache", cfg.Paths.CacheDir)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Watch.Debounce)
	assert.Equal(t, 4.0, cfg.Watch.RateLimit)

	exts := cfg.Extensions()
	assert.Equal(t, "python", exts[".pyi"])
	assert.Equal(t, "ruby", exts[".rb"], "unmentioned languages keep defaults")
}

func TestDisabledLanguageDropsExtensions(t *testing.T) {
	path := writeConfig(t, `
version = 1

[languages.ruby]
enabled = false
extensions = [".rb"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	exts := cfg.Extensions()
	_, ok := exts[".rb"]
	assert.False(t, ok)
	assert.Equal(t, "python", exts[".py"])
}

func TestValidateRejectsBadVersion(t *testing.T) {
	path := writeConfig(t, "version = 2\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadExtension(t *testing.T) {
	path := writeConfig(t, `
version = 1

[languages.python]
extensions = ["py"]
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.True(t, os.IsNotExist(err))
}
