package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_cache_hits_total",
		Help: "Total number of asset cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_cache_misses_total",
		Help: "Total number of asset cache misses",
	})

	cacheSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shelf_cache_size_bytes",
		Help: "Bytes written to the asset cache",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "put", "delete", "activate", "evict"

	installsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_cache_installs_total",
		Help: "Total number of successful generation installs",
	})

	installFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_cache_install_failures_total",
		Help: "Total number of aborted generation installs",
	})

	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_cache_evictions_total",
		Help: "Total number of evicted cache entries",
	})
)
