package pathing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathing_searches_total",
		Help: "Searches run by the orchestrator, by tier and result.",
	}, []string{"tier", "result"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathing_cache_lookups_total",
		Help: "Path cache lookups by tier and outcome.",
	}, []string{"tier", "outcome"})

	blockUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathing_block_updates_total",
		Help: "Obsolete blocks recomputed incrementally.",
	}, []string{"tier"})

	queuedBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pathing_queued_blocks",
		Help: "Obsolete blocks waiting for recomputation.",
	}, []string{"tier"})

	precomputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathing_precompute_duration_seconds",
		Help:    "Time spent in block offset and edge cost computation.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
	}, []string{"tier", "kind"})

	activePaths = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pathing_active_paths",
		Help: "Multi-resolution paths currently held by the manager.",
	})
)
