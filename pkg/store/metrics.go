package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks result-store hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "noise_cache_hits_total",
			Help: "Total number of result-store hits",
		},
	)

	// cacheMisses tracks result-store misses.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "noise_cache_misses_total",
			Help: "Total number of result-store misses",
		},
	)

	// cacheEvictions tracks entries evicted at capacity.
	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "noise_cache_evictions_total",
			Help: "Total number of entries evicted from the result store",
		},
	)

	// cacheEntries tracks the current entry count.
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "noise_cache_entries",
			Help: "Current number of entries in the result store",
		},
	)
)
