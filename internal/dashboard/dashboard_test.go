package dashboard

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type stubStats map[string]any

func (s stubStats) GetStats() map[string]any { return s }

func TestDashboardRender(t *testing.T) {
	d := NewDashboard(stubStats{"state": "running"}, "/metrics", testLogger)

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `fetch('/run-scraper')`) {
		t.Error("index page should call /run-scraper")
	}
	if !strings.Contains(body, `class="status running"`) {
		t.Error("state not rendered")
	}
	if !strings.Contains(body, `href="/metrics"`) {
		t.Error("metrics link missing")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
}

func TestDashboardWithoutMetrics(t *testing.T) {
	d := NewDashboard(nil, "", testLogger)

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	if strings.Contains(body, "metrics</a>") {
		t.Error("metrics link rendered while disabled")
	}
	if !strings.Contains(body, `class="status idle"`) {
		t.Error("default state should be idle")
	}
}
