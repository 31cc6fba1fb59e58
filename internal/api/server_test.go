package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/engine"
	"github.com/IshaanNene/TrendGoat/internal/storage"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type stubEngine struct {
	snap   *types.TrendSnapshot
	err    error
	panics any
	runs   int
}

func (e *stubEngine) Run(ctx context.Context) (*types.TrendSnapshot, error) {
	e.runs++
	if e.panics != nil {
		panic(e.panics)
	}
	return e.snap, e.err
}

func (e *stubEngine) GetStats() map[string]any {
	return map[string]any{"state": "idle", "runs": e.runs}
}

type stubLatest struct {
	snap *types.TrendSnapshot
	err  error
}

func (l *stubLatest) Latest(ctx context.Context) (*types.TrendSnapshot, error) {
	return l.snap, l.err
}

func newTestServer(eng *stubEngine, latest *stubLatest, opts ...Option) *Server {
	return NewServer(config.DefaultConfig().Server, eng, latest, testLogger, opts...)
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s response %q: %v", path, rec.Body.String(), err)
	}
	return rec, body
}

func TestRunScraperOK(t *testing.T) {
	snap := types.SampleSnapshot()
	snap.ID = "abc123"
	s := newTestServer(&stubEngine{snap: snap}, &stubLatest{})

	rec, body := get(t, s, "/run-scraper")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	for _, key := range []string{"unique_id", "trends", "trend1", "trend4", "start_time", "end_time", "ip_address"} {
		if body[key] == nil {
			t.Errorf("missing %q in %v", key, body)
		}
	}
	if body["unique_id"] != "abc123" || body["trend1"] != "#SampleTrend1" {
		t.Errorf("unexpected body %v", body)
	}
	if body["start_time"] != "2024-12-26 10:00:00" {
		t.Errorf("start_time = %v", body["start_time"])
	}

	start, _ := time.Parse(types.TimeLayout, body["start_time"].(string))
	end, _ := time.Parse(types.TimeLayout, body["end_time"].(string))
	if end.Before(start) {
		t.Errorf("end %v before start %v", end, start)
	}
}

func TestRunScraperStorageFailure(t *testing.T) {
	err := types.NewError(types.KindStorage, "insert", errors.New("server selection timeout"))
	s := newTestServer(&stubEngine{err: err}, &stubLatest{})

	rec, body := get(t, s, "/run-scraper")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Errorf("expected non-empty error, got %v", body)
	}
	if body["kind"] != "storage_failure" {
		t.Errorf("kind = %v", body["kind"])
	}
}

func TestRunScraperPanic(t *testing.T) {
	s := newTestServer(&stubEngine{panics: "boom"}, &stubLatest{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/run-scraper")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body["error"], "boom") {
		t.Errorf("error = %q", body["error"])
	}
}

// recordingEngine persists a fixed snapshot through a real Recorder.
type recordingEngine struct {
	recorder *engine.Recorder
}

func (e *recordingEngine) Run(ctx context.Context) (*types.TrendSnapshot, error) {
	return e.recorder.Record(ctx, types.SampleSnapshot())
}

func (e *recordingEngine) GetStats() map[string]any { return map[string]any{} }

func TestRunScraperStorageUnreachable(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.URI = "mongodb://127.0.0.1:1"
	cfg.Timeout = 300 * time.Millisecond
	store, err := storage.New(context.Background(), &cfg, testLogger, storage.Lazy())
	if err != nil {
		t.Fatalf("storage should open lazily: %v", err)
	}
	defer store.Close()

	rec := engine.NewRecorder(store, nil, testLogger)
	s := NewServer(config.DefaultConfig().Server, &recordingEngine{recorder: rec}, rec, testLogger)

	resp, body := get(t, s, "/run-scraper")
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Code)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Errorf("expected non-empty error, got %v", body)
	}
	if body["kind"] != "storage_failure" {
		t.Errorf("kind = %v", body["kind"])
	}

	if resp, _ := get(t, s, "/api/latest"); resp.Code != http.StatusInternalServerError {
		t.Errorf("latest status = %d", resp.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"launch", types.NewError(types.KindLaunch, "launch", errors.New("no chromium")), http.StatusInternalServerError},
		{"auth", types.NewError(types.KindAuthTimeout, "awaiting_handle", types.ErrTimeout), http.StatusInternalServerError},
		{"extraction", types.NewError(types.KindExtractionTimeout, "extract", types.ErrTimeout), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
		{"empty read-back", types.ErrNoSnapshot, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubEngine{err: tt.err}, &stubLatest{})
			rec, body := get(t, s, "/run-scraper")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if body["error"] == "" || body["error"] == nil {
				t.Errorf("missing error in %v", body)
			}
		})
	}
}

func TestLatest(t *testing.T) {
	s := newTestServer(&stubEngine{}, &stubLatest{err: types.ErrNoSnapshot})
	if rec, _ := get(t, s, "/api/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("empty store: status = %d", rec.Code)
	}

	eng := &stubEngine{}
	s = newTestServer(eng, &stubLatest{snap: types.SampleSnapshot()})
	rec, body := get(t, s, "/api/latest")
	if rec.Code != http.StatusOK || body["ip_address"] != "203.0.113.195" {
		t.Errorf("status = %d body = %v", rec.Code, body)
	}
	if eng.runs != 0 {
		t.Error("latest must not trigger a run")
	}
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(&stubEngine{}, &stubLatest{})

	rec, body := get(t, s, "/api/health")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", rec.Code, body)
	}

	rec, body = get(t, s, "/api/stats")
	if rec.Code != http.StatusOK || body["state"] != "idle" {
		t.Errorf("stats: %d %v", rec.Code, body)
	}
}

func TestOptionalRoutes(t *testing.T) {
	index := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("index")) })
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("metrics")) })
	s := newTestServer(&stubEngine{}, &stubLatest{}, WithIndex(index), WithMetrics("/metrics", metrics))

	for path, want := range map[string]string{"/": "index", "/metrics": "metrics"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Body.String() != want {
			t.Errorf("%s served %q", path, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s := NewServer(cfg, &stubEngine{}, &stubLatest{}, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("shutdown returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
