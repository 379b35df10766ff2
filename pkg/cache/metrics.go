package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks successful cached-table loads.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formsite_cache_hits_total",
			Help: "Total number of cached-table hits",
		},
	)

	// cacheMisses tracks loads for forms without a cached table.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formsite_cache_misses_total",
			Help: "Total number of cached-table misses",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formsite_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "save", "load"
	)
)
