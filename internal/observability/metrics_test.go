package observability

import (
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/TrendGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestRecordFailure(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RecordFailure(types.NewError(types.KindAuthTimeout, "awaiting_handle", types.ErrTimeout))
	m.RecordFailure(types.NewError(types.KindStorage, "insert", errors.New("down")))
	m.RecordFailure(errors.New("plain"))

	snap := m.Snapshot()
	if snap["runs_failed"] != 3 {
		t.Errorf("runs_failed = %d", snap["runs_failed"])
	}
	if snap["auth_timeouts"] != 1 || snap["storage_failures"] != 1 || snap["unknown_failures"] != 1 {
		t.Errorf("per-kind counters wrong: %v", snap)
	}
}

func TestServeHTTP(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RunsTotal.Add(2)
	m.ActiveRuns.Add(1)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "trendgoat_runs_total 2\n") {
		t.Errorf("missing runs counter:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE trendgoat_active_runs gauge") {
		t.Errorf("active runs should be a gauge:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}
