// Package observability holds the process-wide prometheus metrics and the
// otel tracer used around discovery, extraction, builds and publishing.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symlog_builds_total",
		Help: "Total number of changelog builds by mode and outcome.",
	}, []string{"mode", "outcome"})

	VersionsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symlog_versions_processed_total",
		Help: "Total number of versions diffed into a changelog.",
	}, []string{"package"})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "symlog_extraction_seconds",
		Help:    "Time spent extracting the IR of one version.",
		Buckets: prometheus.DefBuckets,
	})

	DeltaEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symlog_delta_entries_total",
		Help: "Total number of delta entries produced, by category.",
	}, []string{"category"})

	FetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symlog_fetch_retries_total",
		Help: "Total number of retried fetches of a published changelog.",
	})
)

// WriteTextfile writes every registered metric to path in the node-exporter
// textfile format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
