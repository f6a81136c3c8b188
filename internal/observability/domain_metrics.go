package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_turns_total",
			Help: "Total number of conversation turns by final state.",
		},
		[]string{"state"},
	)
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_model_calls_total",
			Help: "Total number of model backend calls by candidate and status.",
		},
		[]string{"model", "status"},
	)
	modelFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_model_fallbacks_total",
			Help: "Total number of times the gateway advanced past a failing candidate.",
		},
	)
	guardRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_guard_rejections_total",
			Help: "Total number of generated statements rejected by the read-only guard.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlscout_query_duration_seconds",
			Help:    "Database query execution latency.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlscout_query_rows_returned",
			Help:    "Row counts of successful query results.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 250, 500},
		},
	)
	chartsSelectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_charts_selected_total",
			Help: "Total number of chart specs produced by kind.",
		},
		[]string{"kind"},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_exports_total",
			Help: "Total number of result exports by format and status.",
		},
		[]string{"format", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		modelCallsTotal,
		modelFallbacksTotal,
		guardRejectionsTotal,
		queryDurationSeconds,
		queryRowsReturned,
		chartsSelectedTotal,
		exportsTotal,
	)
}

func ObserveTurn(state string) {
	turnsTotal.WithLabelValues(state).Inc()
}

func ObserveModelCall(model, status string) {
	modelCallsTotal.WithLabelValues(model, status).Inc()
}

func IncrementModelFallback() {
	modelFallbacksTotal.Inc()
}

func IncrementGuardRejection() {
	guardRejectionsTotal.Inc()
}

func ObserveQuery(elapsed time.Duration, rows int) {
	queryDurationSeconds.Observe(elapsed.Seconds())
	if rows >= 0 {
		queryRowsReturned.Observe(float64(rows))
	}
}

func ObserveChartSelected(kind string) {
	chartsSelectedTotal.WithLabelValues(kind).Inc()
}

func ObserveExport(format, status string) {
	exportsTotal.WithLabelValues(format, status).Inc()
}
