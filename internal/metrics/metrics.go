// Package metrics defines the Prometheus collectors for the migration engine and its HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plmigrate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plmigrate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plmigrate_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog client metrics
var (
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plmigrate_catalog_requests_total",
			Help: "Total number of catalog API requests by outcome",
		},
		[]string{"service", "op", "outcome"},
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plmigrate_catalog_request_duration_seconds",
			Help:    "Catalog API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "op"},
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plmigrate_token_refreshes_total",
			Help: "Total number of OAuth token refreshes",
		},
		[]string{"service", "status"},
	)
)

// Migration metrics
var (
	MigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plmigrate_migrations_total",
			Help: "Total number of migration runs by final playlist status",
		},
		[]string{"status"},
	)

	MigrationsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plmigrate_migrations_running",
			Help: "Number of migration runs in progress",
		},
	)

	TracksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plmigrate_tracks_processed_total",
			Help: "Total number of tracks processed by terminal status",
		},
		[]string{"status"},
	)

	MatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plmigrate_match_score",
			Help:    "Best candidate score per searched track",
			Buckets: []float64{0, 0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.2},
		},
	)

	MigrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plmigrate_migration_duration_seconds",
			Help:    "Wall time of a migration run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)
