package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP metrics, labelled by route template rather than raw path
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdfund_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// Domain counters
var (
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_auth_attempts_total",
			Help: "Authentication attempts by method (password, magic_link, reset) and outcome",
		},
		[]string{"method", "outcome"},
	)

	UsersRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdfund_users_registered_total",
			Help: "Number of accounts created through registration",
		},
	)

	ProjectTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_project_status_transitions_total",
			Help: "Project status changes by target status",
		},
		[]string{"status"},
	)

	ContributionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdfund_contributions_total",
			Help: "Number of contributions recorded against financing projects",
		},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route",
		},
		[]string{"path"},
	)

	MigrationsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_migrations_total",
			Help: "Schema migration outcomes (applied, stamped, fallback)",
		},
		[]string{"outcome"},
	)
)

// Database metrics
var (
	DBQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crowdfund_db_query_duration_seconds",
			Help:    "Latency of ORM queries",
			Buckets: prometheus.DefBuckets,
		},
	)

	DBSlowQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdfund_db_slow_queries_total",
			Help: "Queries slower than the slow query threshold",
		},
	)

	DBOpenConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
	)

	DBIdleConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
	)

	DBInUseConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
	)
)

// ObserveDBStats copies pool statistics into the gauges.
func ObserveDBStats(stats sql.DBStats) {
	DBOpenConns.Set(float64(stats.OpenConnections))
	DBIdleConns.Set(float64(stats.Idle))
	DBInUseConns.Set(float64(stats.InUse))
}

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	prometheus.MustRegister(AuthAttempts, UsersRegistered, ProjectTransitions, ContributionsTotal, RateLimited, MigrationsApplied)
	prometheus.MustRegister(DBQueryDuration, DBSlowQueries, DBOpenConns, DBIdleConns, DBInUseConns)
}
