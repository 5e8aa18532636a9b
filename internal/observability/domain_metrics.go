package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	datasetLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huggingduck_dataset_loads_total",
			Help: "Total number of dataset loads by status.",
		},
		[]string{"connection", "dataset", "status"},
	)
	tablesLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huggingduck_tables_loaded_total",
			Help: "Total number of tables materialized from dataset resources.",
		},
		[]string{"connection", "dataset"},
	)
	rowsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huggingduck_rows_loaded_total",
			Help: "Total number of rows materialized from dataset resources.",
		},
		[]string{"connection", "dataset"},
	)
	loadDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huggingduck_dataset_load_duration_seconds",
			Help:    "Dataset load latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"connection", "dataset"},
	)
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huggingduck_queries_total",
			Help: "Total number of queries by outcome (executed, cached, failed).",
		},
		[]string{"connection", "dataset", "outcome"},
	)
	queryLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huggingduck_query_latency_ms",
			Help:    "Store query execution latency in milliseconds (cache misses only).",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"connection", "dataset"},
	)
	unhealthyTables = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "huggingduck_unhealthy_tables",
			Help: "Number of expected tables missing or empty at the last health check.",
		},
		[]string{"connection", "dataset"},
	)
)

func init() {
	prometheus.MustRegister(
		datasetLoadsTotal,
		tablesLoadedTotal,
		rowsLoadedTotal,
		loadDurationSeconds,
		queriesTotal,
		queryLatencyMs,
		unhealthyTables,
	)
}

func ObserveDatasetLoad(labels Labels, tables int, rows int64, elapsed time.Duration, err error) {
	if err != nil {
		datasetLoadsTotal.WithLabelValues(labels.values("failed")...).Inc()
		return
	}
	datasetLoadsTotal.WithLabelValues(labels.values("ok")...).Inc()
	tablesLoadedTotal.WithLabelValues(labels.values()...).Add(float64(tables))
	if rows > 0 {
		rowsLoadedTotal.WithLabelValues(labels.values()...).Add(float64(rows))
	}
	loadDurationSeconds.WithLabelValues(labels.values()...).Observe(elapsed.Seconds())
}

func ObserveQueryExecuted(labels Labels, elapsed time.Duration) {
	queriesTotal.WithLabelValues(labels.values("executed")...).Inc()
	queryLatencyMs.WithLabelValues(labels.values()...).Observe(float64(elapsed.Milliseconds()))
}

func IncrementQueryCached(labels Labels) {
	queriesTotal.WithLabelValues(labels.values("cached")...).Inc()
}

func IncrementQueryFailed(labels Labels) {
	queriesTotal.WithLabelValues(labels.values("failed")...).Inc()
}

func SetUnhealthyTables(labels Labels, count int) {
	if count < 0 {
		count = 0
	}
	unhealthyTables.WithLabelValues(labels.values()...).Set(float64(count))
}
