package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/IshaanNene/TrendGoat/internal/types"
)

// Metrics tracks operational metrics for scrape runs.
type Metrics struct {
	// Run metrics
	RunsTotal     atomic.Int64
	RunsSucceeded atomic.Int64
	RunsFailed    atomic.Int64
	ActiveRuns    atomic.Int32

	// Failure metrics, one counter per kind
	LaunchFailures     atomic.Int64
	AuthTimeouts       atomic.Int64
	ExtractionTimeouts atomic.Int64
	StorageFailures    atomic.Int64
	UnknownFailures    atomic.Int64

	// Result metrics
	TrendsExtracted  atomic.Int64
	TrendPlaceholder atomic.Int64
	EgressFallbacks  atomic.Int64
	SnapshotsStored  atomic.Int64

	// Milliseconds spent in the most recent run
	LastRunMillis atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// RecordFailure bumps the counter for err's kind.
func (m *Metrics) RecordFailure(err error) {
	m.RunsFailed.Add(1)
	switch types.KindOf(err) {
	case types.KindLaunch:
		m.LaunchFailures.Add(1)
	case types.KindAuthTimeout:
		m.AuthTimeouts.Add(1)
	case types.KindExtractionTimeout:
		m.ExtractionTimeouts.Add(1)
	case types.KindStorage:
		m.StorageFailures.Add(1)
	default:
		m.UnknownFailures.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"trendgoat_runs_total", "Total scrape runs started", "counter", m.RunsTotal.Load()},
		{"trendgoat_runs_succeeded_total", "Total runs that returned a snapshot", "counter", m.RunsSucceeded.Load()},
		{"trendgoat_runs_failed_total", "Total runs that returned an error", "counter", m.RunsFailed.Load()},
		{"trendgoat_launch_failures_total", "Total browser launch failures", "counter", m.LaunchFailures.Load()},
		{"trendgoat_auth_timeouts_total", "Total login timeouts", "counter", m.AuthTimeouts.Load()},
		{"trendgoat_extraction_timeouts_total", "Total extraction timeouts", "counter", m.ExtractionTimeouts.Load()},
		{"trendgoat_storage_failures_total", "Total storage failures", "counter", m.StorageFailures.Load()},
		{"trendgoat_unknown_failures_total", "Total unclassified failures", "counter", m.UnknownFailures.Load()},
		{"trendgoat_trends_extracted_total", "Total trend texts read", "counter", m.TrendsExtracted.Load()},
		{"trendgoat_trend_placeholders_total", "Total trend slots filled with a placeholder", "counter", m.TrendPlaceholder.Load()},
		{"trendgoat_egress_fallbacks_total", "Total runs recorded with an unknown egress address", "counter", m.EgressFallbacks.Load()},
		{"trendgoat_snapshots_stored_total", "Total snapshots persisted", "counter", m.SnapshotsStored.Load()},
		{"trendgoat_active_runs", "Runs currently in progress", "gauge", int64(m.ActiveRuns.Load())},
		{"trendgoat_last_run_duration_milliseconds", "Duration of the most recent run", "gauge", m.LastRunMillis.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_total":          m.RunsTotal.Load(),
		"runs_succeeded":      m.RunsSucceeded.Load(),
		"runs_failed":         m.RunsFailed.Load(),
		"launch_failures":     m.LaunchFailures.Load(),
		"auth_timeouts":       m.AuthTimeouts.Load(),
		"extraction_timeouts": m.ExtractionTimeouts.Load(),
		"storage_failures":    m.StorageFailures.Load(),
		"unknown_failures":    m.UnknownFailures.Load(),
		"trends_extracted":    m.TrendsExtracted.Load(),
		"trend_placeholders":  m.TrendPlaceholder.Load(),
		"egress_fallbacks":    m.EgressFallbacks.Load(),
		"snapshots_stored":    m.SnapshotsStored.Load(),
		"active_runs":         int64(m.ActiveRuns.Load()),
		"last_run_ms":         m.LastRunMillis.Load(),
	}
}
