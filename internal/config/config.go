// Package config loads the typetrace.toml configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version   int                 `toml:"version"`
	Paths     Paths               `toml:"paths"`
	Analysis  Analysis            `toml:"analysis"`
	Languages map[string]Language `toml:"languages"`
	Exclude   Exclude             `toml:"exclude"`
	Watch     Watch               `toml:"watch"`
	Metrics   Metrics             `toml:"metrics"`
}

type Paths struct {
	CacheDir string `toml:"cache_dir"`
	DBPath   string `toml:"db_path"`
	HTMLDir  string `toml:"html_dir"`
}

type Analysis struct {
	Quiet           bool `toml:"quiet"`
	Debug           bool `toml:"debug"`
	IncludeBuiltins bool `toml:"include_builtins"`
	KeepRuns        int  `toml:"keep_runs"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// Duration decodes TOML strings like "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Watch struct {
	Debounce  Duration `toml:"debounce"`
	RateLimit float64  `toml:"rate_limit"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{Version: 1}
	ApplyDefaults(cfg)
	return cfg
}

func ApplyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Paths.CacheDir == "" {
		cfg.Paths.CacheDir = ".typetrace/cache"
	}
	if cfg.Paths.DBPath == "" {
		cfg.Paths.DBPath = ".typetrace/index.db"
	}
	if cfg.Paths.HTMLDir == "" {
		cfg.Paths.HTMLDir = ".typetrace/html"
	}
	if cfg.Analysis.KeepRuns <= 0 {
		cfg.Analysis.KeepRuns = 5
	}
	if cfg.Languages == nil {
		cfg.Languages = map[string]Language{}
	}
	if _, ok := cfg.Languages["python"]; !ok {
		cfg.Languages["python"] = Language{Extensions: []string{".py"}}
	}
	if _, ok := cfg.Languages["ruby"]; !ok {
		cfg.Languages["ruby"] = Language{Extensions: []string{".rb"}}
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", ".typetrace", "node_modules", "vendor", "__pycache__"}
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = Duration(500 * time.Millisecond)
	}
	if cfg.Watch.RateLimit <= 0 {
		cfg.Watch.RateLimit = 2
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = "127.0.0.1:9178"
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	for name, lang := range cfg.Languages {
		for _, ext := range lang.Extensions {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("language %s: extension %q must start with a dot", name, ext)
			}
		}
	}
	return nil
}

// Extensions returns the extension→language map of enabled languages.
func (c *Config) Extensions() map[string]string {
	out := make(map[string]string)
	for name, lang := range c.Languages {
		if lang.Enabled != nil && !*lang.Enabled {
			continue
		}
		for _, ext := range lang.Extensions {
			out[ext] = name
		}
	}
	return out
}
