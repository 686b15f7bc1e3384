package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/typetrace/typetrace/internal/analysis"
	"github.com/typetrace/typetrace/internal/astcache"
	"github.com/typetrace/typetrace/internal/config"
	"github.com/typetrace/typetrace/internal/index"
	"github.com/typetrace/typetrace/internal/observability"
	"github.com/typetrace/typetrace/internal/parser"
	"github.com/typetrace/typetrace/internal/report"
	"github.com/typetrace/typetrace/internal/watcher"
)

const version = "0.3.0"

var (
	configPath string
	cacheDir   string
	verbose    bool
	quiet      bool
	debug      bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "typetrace",
		Short: "Type inference and cross-reference indexing for dynamic languages",
		Long: `Typetrace performs whole-program static type inference over Python and
Ruby sources. For every name occurrence it infers a type, binds it to its
definition sites and assigns a stable qualified name, then renders the
results as HTML cross-reference pages, a queryable sqlite index, or a
terminal table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if verbose || debug {
				level = slog.LevelDebug
			}
			if quiet {
				level = slog.LevelWarn
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "./typetrace.toml", "path to config file")
	cmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "override the AST cache directory")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every diagnostic as it is recorded")
	return cmd
}

// loadConfig falls back to defaults when the default config file is absent;
// an explicitly named file must exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if os.IsNotExist(err) && configPath == "./typetrace.toml" {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	if cacheDir != "" {
		cfg.Paths.CacheDir = cacheDir
	}
	if quiet {
		cfg.Analysis.Quiet = true
	}
	if debug {
		cfg.Analysis.Debug = true
	}
	return cfg, nil
}

// runPass executes one full analysis over root with a fresh analyzer. The
// cache is owned by the caller so watch mode can reuse the disk layer.
func runPass(cfg *config.Config, cache *astcache.Cache, root string) (*analysis.Analyzer, report.Summary, error) {
	start := time.Now()
	a, err := analysis.New(cache, analysis.Options{
		Extensions:   cfg.Extensions(),
		ExcludeDirs:  cfg.Exclude.Dirs,
		ExcludeFiles: cfg.Exclude.Files,
		Quiet:        cfg.Analysis.Quiet,
		Debug:        cfg.Analysis.Debug,
	})
	if err != nil {
		return nil, report.Summary{}, err
	}
	if err := a.Analyze(root); err != nil {
		return nil, report.Summary{}, err
	}
	a.Finish()
	duration := time.Since(start)
	observability.AnalysisDuration.Observe(duration.Seconds())
	return a, report.BuildSummary(root, a, duration), nil
}

func newCache(cfg *config.Config) (*astcache.Cache, error) {
	return astcache.New(parser.New(), cfg.Paths.CacheDir)
}

// persist saves a run to the sqlite index, pruning old runs.
func persist(cfg *config.Config, root string, a *analysis.Analyzer) error {
	store, err := index.Open(cfg.Paths.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, err := store.SaveRun(root, a)
	if err != nil {
		return err
	}
	if err := store.PruneRuns(cfg.Analysis.KeepRuns); err != nil {
		slog.Warn("failed to prune old runs", "error", err)
	}
	slog.Info("run persisted", "run", runID, "db", cfg.Paths.DBPath)
	return nil
}

func startMetrics(cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics listener starting", "addr", cfg.Metrics.Addr)
	go func() {
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			slog.Error("metrics listener failed", "error", err)
		}
	}()
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("typetrace v%s\n", version)
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var noHTML, noDB bool
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a source tree and write the index and HTML pages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			startMetrics(cfg)

			cache, err := newCache(cfg)
			if err != nil {
				return err
			}
			a, summary, err := runPass(cfg, cache, root)
			if err != nil {
				return err
			}

			if !noDB {
				if err := persist(cfg, root, a); err != nil {
					slog.Error("failed to persist run", "error", err)
				}
			}
			if !noHTML {
				linker := report.NewLinker()
				linker.FindLinks(a)
				styler := report.NewStyler(a, linker, cfg.Paths.HTMLDir)
				if err := styler.WriteAll(); err != nil {
					slog.Error("failed to write html", "error", err)
				} else {
					slog.Info("html written", "dir", cfg.Paths.HTMLDir)
				}
			}

			summary.Print(os.Stdout)
			// Per-file parse failures are reported, not fatal.
			return nil
		},
	}
	cmd.Flags().BoolVar(&noHTML, "no-html", false, "skip HTML output")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "skip the sqlite index")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-run the full analysis whenever the tree changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			startMetrics(cfg)

			rebuild := func() {
				// A fresh memory layer per pass; the content-keyed disk
				// layer carries over unchanged files.
				cache, err := newCache(cfg)
				if err != nil {
					slog.Error("failed to open cache", "error", err)
					return
				}
				a, summary, err := runPass(cfg, cache, root)
				if err != nil {
					slog.Error("analysis failed", "error", err)
					return
				}
				if err := persist(cfg, root, a); err != nil {
					slog.Error("failed to persist run", "error", err)
				}
				summary.Print(os.Stdout)
			}

			rebuild()

			w, err := watcher.New(cfg.Watch.Debounce.Std(), cfg.Watch.RateLimit,
				cfg.Exclude.Dirs, cfg.Exclude.Files, func(paths []string) {
					slog.Info("detected changes", "count", len(paths))
					rebuild()
				})
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Watch([]string{root}); err != nil {
				return err
			}
			select {}
		},
	}
}

func newDumpCmd() *cobra.Command {
	var qname string
	var builtins bool
	cmd := &cobra.Command{
		Use:   "dump [path]",
		Short: "Analyze and print the binding index as a table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if qname != "" {
				store, err := index.Open(cfg.Paths.DBPath)
				if err != nil {
					return err
				}
				defer store.Close()
				records, err := store.LookupQName(qname)
				if err != nil {
					return err
				}
				report.WriteBindingsTable(os.Stdout, records, true)
				return nil
			}

			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			cache, err := newCache(cfg)
			if err != nil {
				return err
			}
			a, _, err := runPass(cfg, cache, root)
			if err != nil {
				return err
			}
			report.WriteBindingsTable(os.Stdout, index.Records(a.AllBindings()), builtins)
			return nil
		},
	}
	cmd.Flags().StringVar(&qname, "qname", "", "look up one qualified name in the persisted index")
	cmd.Flags().BoolVar(&builtins, "builtins", false, "include builtin bindings")
	return cmd
}
