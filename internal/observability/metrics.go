package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "typetrace_parse_seconds",
		Help:    "Time spent obtaining the AST for a source file, cache hits included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typetrace_parse_failures_total",
		Help: "Total number of files whose parse failed.",
	})

	ModulesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typetrace_modules_loaded_total",
		Help: "Total number of modules analyzed.",
	})

	Diagnostics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typetrace_diagnostics_total",
		Help: "Total number of semantic and parse diagnostics recorded.",
	})

	BindingsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "typetrace_bindings_total",
		Help: "Number of bindings in the index after the last analysis.",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typetrace_ast_cache_hits_total",
		Help: "AST cache hits by layer.",
	}, []string{"layer"})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typetrace_ast_cache_misses_total",
		Help: "AST cache misses that required a full parse.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typetrace_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "typetrace_analysis_seconds",
		Help:    "Wall time of one full analysis pass.",
		Buckets: prometheus.DefBuckets,
	})
)
