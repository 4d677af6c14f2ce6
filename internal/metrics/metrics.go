// Package metrics exposes the process-wide prometheus collectors. Recording
// is safe from any goroutine; the registry is scraped at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks API requests by method, route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsdeck_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ServiceHealth is 1 when the named dependency is healthy, 0 otherwise
	ServiceHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opsdeck_service_health",
			Help: "Dependency health (1 = healthy, 0 = unhealthy)",
		},
		[]string{"service"},
	)

	// ProbeDuration tracks per-probe latency
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsdeck_probe_duration_seconds",
			Help:    "Health probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// CacheHitRatio tracks the cache keyspace hit ratio (0..1)
	CacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsdeck_cache_hit_ratio",
			Help: "Cache keyspace hit ratio",
		},
	)

	// DBQueryDuration tracks relational store query latency
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsdeck_db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// BackupLastOutcome is 1 when the last backup of a type succeeded
	BackupLastOutcome = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opsdeck_backup_last_outcome",
			Help: "Outcome of the last backup run (1 = success, 0 = failed)",
		},
		[]string{"type"},
	)

	// BackupSizeBytes records the size of the last successful backup
	BackupSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opsdeck_backup_size_bytes",
			Help: "Size of the last successful backup artifact",
		},
		[]string{"type"},
	)

	// AlertsTotal counts dispatched alerts by level and service
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"level", "service"},
	)

	// PushDeliveriesTotal counts push delivery attempts by outcome
	PushDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_push_deliveries_total",
			Help: "Total number of push delivery attempts",
		},
		[]string{"outcome"},
	)

	// SSLCertExpiryDays tracks days until certificate expiry per host
	SSLCertExpiryDays = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opsdeck_ssl_cert_expiry_days",
			Help: "Days remaining until SSL certificate expiry",
		},
		[]string{"host"},
	)
)
