// Package metrics provides Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, for the process's admin surface (/metrics, /healthz).
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dqlite_gw_http_requests_total",
		Help: "Total number of admin HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dqlite_gw_http_request_duration_seconds",
		Help:    "Admin HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Gateway request metrics.
var (
	GatewaysActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dqlite_gw_gateways_active",
		Help: "Number of currently open client connections (gateways).",
	})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dqlite_gw_requests_total",
		Help: "Total number of requests handled, by opcode.",
	}, []string{"opcode"})

	RequestFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dqlite_gw_request_failures_total",
		Help: "Total number of requests that produced a FAILURE response, by opcode and error code.",
	}, []string{"opcode", "code"})

	StreamingBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dqlite_gw_streaming_batches_total",
		Help: "Total number of ROWS batches flushed across all streaming queries.",
	})

	BarrierDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dqlite_gw_barrier_duration_seconds",
		Help:    "Time spent blocked in the cluster commit barrier.",
		Buckets: prometheus.DefBuckets,
	})
)

// Checkpoint metrics.
var (
	CheckpointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dqlite_gw_checkpoints_total",
		Help: "Total number of WAL checkpoint attempts, by outcome (ok, busy, error).",
	}, []string{"outcome"})
)
