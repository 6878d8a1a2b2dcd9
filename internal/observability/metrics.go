// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsProcessed prometheus.Counter
	EventErrors     prometheus.Counter
	FeedReconnects  prometheus.Counter
	FeedBufferSize  prometheus.Gauge

	// Decision metrics
	TradesOpened     prometheus.Counter
	RiskRejections   prometheus.Counter
	TradesByStrategy *prometheus.CounterVec

	// Position metrics
	PositionsClosed prometheus.Counter
	PartialExits    prometheus.Counter
	OpenPositions   prometheus.Gauge

	// Cycle metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
	CyclesSkipped  *prometheus.CounterVec

	// Health metrics
	LastIngestCycle prometheus.Gauge
	LastManageCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "copy_trader_lab"
	}

	return &Metrics{
		EventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_processed_total",
			Help:      "Total number of transaction events processed",
		}),
		EventErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_errors_total",
			Help:      "Total number of events that failed processing",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_reconnects_total",
			Help:      "Total number of websocket feed reconnects",
		}),
		FeedBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_buffer_size",
			Help:      "Current number of buffered feed events",
		}),

		TradesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "trades_opened_total",
			Help:      "Total number of paper positions opened",
		}),
		RiskRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "risk_rejections_total",
			Help:      "Total number of trades rejected by the risk gate",
		}),
		TradesByStrategy: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "trades_by_strategy_total",
			Help:      "Total number of trades opened by strategy",
		}, []string{"strategy"}),

		PositionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "closed_total",
			Help:      "Total number of positions fully closed",
		}),
		PartialExits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "partial_exits_total",
			Help:      "Total number of partial exits applied",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "open",
			Help:      "Current number of open positions",
		}),

		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_runs_total",
			Help:      "Total number of cycle runs by job and status",
		}, []string{"job", "status"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Cycle execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		CyclesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_skipped_total",
			Help:      "Total number of cycles skipped because the previous run was still going",
		}, []string{"job"}),

		LastIngestCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_ingest_cycle_timestamp",
			Help:      "Unix timestamp of the last completed ingestion cycle",
		}),
		LastManageCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_manage_cycle_timestamp",
			Help:      "Unix timestamp of the last completed management cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
