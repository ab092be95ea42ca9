package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of cart lines added or merged",
	})

	CartItemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_removed_total",
		Help: "Total number of cart lines removed",
	})

	CartsClearedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_cleared_total",
		Help: "Total number of carts cleared",
	})

	CartsAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_abandoned_total",
		Help: "Total number of carts flagged as abandoned",
	})

	CartMutationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_failed_total",
		Help: "Total number of failed cart mutations",
	}, []string{"reason"})

	CartCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_cache_hits_total",
		Help: "Total number of cart reads served from cache",
	})

	CartCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_cache_misses_total",
		Help: "Total number of cart reads that missed the cache",
	})

	SyncLocalFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_local_fallbacks_total",
		Help: "Total number of adds routed to the local store",
	})

	SyncRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_rollbacks_total",
		Help: "Total number of optimistic updates rolled back",
	})

	SyncDrainedLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_drained_lines_total",
		Help: "Total number of local lines drained to the server",
	})

	SyncDrainFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_drain_failures_total",
		Help: "Total number of drain requests that failed",
	})

	SyncRefreshLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_refresh_latency_seconds",
		Help:    "Latency of background cart refreshes",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
