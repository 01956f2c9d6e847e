package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffing_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staffing_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	MatchScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staffing_match_score",
			Help:    "Distribution of computed match scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"target"},
	)

	Assignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffing_assignments_total",
			Help: "Total number of task assignments",
		},
		[]string{"mode"},
	)

	Interviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffing_interviews_total",
			Help: "Total number of interviews by result",
		},
		[]string{"result"},
	)

	OfferResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffing_offer_responses_total",
			Help: "Total number of offer responses",
		},
		[]string{"status"},
	)

	PerformanceRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staffing_performance_records_total",
			Help: "Total number of performance records registered",
		},
	)

	Executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffing_executions_total",
			Help: "Total number of task executions by outcome",
		},
		[]string{"outcome"},
	)

	ExecutionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "staffing_executions_active",
			Help: "Number of task executions currently running",
		},
	)

	StaleExecutions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staffing_stale_executions_total",
			Help: "Total number of stale executions marked failed by cleanup",
		},
	)
)

// Assignment modes
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)
