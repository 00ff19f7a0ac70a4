// Package metrics holds the Prometheus collectors of the analyzer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK           = "ok"
	ResultInvalidInput = "invalid_input"
	ResultError        = "error"
	ResultNotFound     = "not_found"

	ScopeOwner  = "owner"
	ScopeGlobal = "global"
)

var (
	IngestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_ingestions_total",
		Help: "Dataset uploads processed, by result",
	}, []string{"result"})

	IngestRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_ingest_rows",
		Help:    "Rows per successfully ingested dataset",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_ingest_duration_seconds",
		Help:    "Time spent parsing, aggregating and storing an upload",
		Buckets: prometheus.DefBuckets,
	})

	RetentionEvictedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_retention_evicted_total",
		Help: "Dataset summaries deleted by retention",
	}, []string{"scope"})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_queries_total",
		Help: "Summary reads, by kind and result",
	}, []string{"kind", "result"})

	ReportsRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_reports_rendered_total",
		Help: "PDF reports rendered, by origin",
	}, []string{"origin"})
)
