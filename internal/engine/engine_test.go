package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/TrendGoat/internal/automation"
	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/fetcher"
	"github.com/IshaanNene/TrendGoat/internal/storage"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// --- Fakes ---

type nopPage struct{ navErr error }

func (p *nopPage) Navigate(ctx context.Context, url string) error { return p.navErr }
func (p *nopPage) Element(ctx context.Context, sel fetcher.Selector) (fetcher.Element, error) {
	return nil, types.ErrNotFound
}
func (p *nopPage) Elements(ctx context.Context, sel fetcher.Selector) ([]fetcher.Element, error) {
	return nil, types.ErrNotFound
}
func (p *nopPage) URL(ctx context.Context) (string, error) { return "https://x.com/home", nil }

type fakeSession struct {
	page   fetcher.Page
	closed int
}

func (s *fakeSession) Page() fetcher.Page { return s.page }
func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeLauncher struct {
	session *fakeSession
	err     error
}

func (l *fakeLauncher) Launch(ctx context.Context) (fetcher.Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

type fakeAuth struct{ err error }

func (a *fakeAuth) Login(ctx context.Context, page fetcher.Page) error { return a.err }

type fakeExtractor struct {
	res *automation.Result
	err error
}

func (x *fakeExtractor) Extract(ctx context.Context, page fetcher.Page) (*automation.Result, error) {
	return x.res, x.err
}

type fakeEgress struct {
	ip  string
	err error
}

func (e *fakeEgress) Identify(ctx context.Context) (string, error) { return e.ip, e.err }

// memStore is an in-memory Store; onInsert runs after each successful insert.
type memStore struct {
	mu        sync.Mutex
	docs      []types.TrendSnapshot
	insertErr error
	latestErr error
	onInsert  func()
}

func (s *memStore) Name() string { return "memory" }
func (s *memStore) Close() error { return nil }

func (s *memStore) Insert(ctx context.Context, snap *types.TrendSnapshot) (string, error) {
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.mu.Lock()
	rec := *snap
	rec.ID = fmt.Sprintf("doc-%d", len(s.docs)+1)
	s.docs = append(s.docs, rec)
	s.mu.Unlock()
	if s.onInsert != nil {
		s.onInsert()
	}
	return rec.ID, nil
}

func (s *memStore) Latest(ctx context.Context) (*types.TrendSnapshot, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.docs) == 0 {
		return nil, types.ErrNoSnapshot
	}
	rec := s.docs[len(s.docs)-1]
	return &rec, nil
}

type harness struct {
	launcher  *fakeLauncher
	session   *fakeSession
	auth      *fakeAuth
	extractor *fakeExtractor
	egress    *fakeEgress
	store     *memStore
}

func newHarness() *harness {
	session := &fakeSession{page: &nopPage{}}
	return &harness{
		launcher: &fakeLauncher{session: session},
		session:  session,
		auth:     &fakeAuth{},
		extractor: &fakeExtractor{res: &automation.Result{
			Trends: []string{"#one", "#two", "#three", "#four"},
		}},
		egress: &fakeEgress{ip: "198.51.100.7"},
		store:  &memStore{},
	}
}

func (h *harness) engine(t *testing.T) *Engine {
	t.Helper()
	return New(config.DefaultConfig(), Components{
		Launcher:      h.launcher,
		Authenticator: h.auth,
		Extractor:     h.extractor,
		Egress:        h.egress,
		Recorder:      NewRecorder(h.store, nil, testLogger),
	}, testLogger)
}

// --- Engine Tests ---

func TestRunSuccess(t *testing.T) {
	h := newHarness()
	e := h.engine(t)

	snap, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap.ID != "doc-1" {
		t.Errorf("expected read-back id doc-1, got %q", snap.ID)
	}
	if len(snap.Trends) != 4 || snap.IPAddress != "198.51.100.7" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.EndTime.Before(snap.StartTime) {
		t.Errorf("end %v before start %v", snap.EndTime, snap.StartTime)
	}
	if h.session.closed != 1 {
		t.Errorf("session closed %d times", h.session.closed)
	}
	if len(h.store.docs) != 1 {
		t.Errorf("expected one persisted record, got %d", len(h.store.docs))
	}
	if e.GetState() != StateIdle {
		t.Errorf("state after run = %s", e.GetState())
	}

	m := e.Metrics().Snapshot()
	if m["runs_succeeded"] != 1 || m["trends_extracted"] != 4 {
		t.Errorf("metrics = %v", m)
	}
}

func TestRunClampsEndTime(t *testing.T) {
	h := newHarness()
	e := h.engine(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	e.now = func() time.Time {
		calls++
		// the clock steps back after the start is taken
		return base.Add(-time.Duration(calls) * time.Minute)
	}

	snap, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap.EndTime.Before(snap.StartTime) {
		t.Errorf("end %v before start %v", snap.EndTime, snap.StartTime)
	}
}

func TestRunEgressFallback(t *testing.T) {
	h := newHarness()
	h.egress.ip = types.UnknownIP
	h.egress.err = types.NewError(types.KindEgressLookup, "lookup", errors.New("status 503"))
	e := h.engine(t)

	snap, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("egress failure must not abort the run: %v", err)
	}
	if snap.IPAddress != types.UnknownIP {
		t.Errorf("ip = %q", snap.IPAddress)
	}
	if e.Metrics().EgressFallbacks.Load() != 1 {
		t.Error("expected egress fallback to be counted")
	}
}

func TestRunPlaceholdersCounted(t *testing.T) {
	h := newHarness()
	h.extractor.res = &automation.Result{
		Trends: []string{"#a", "#b", "error fetching trend 3", "#d"},
		Failed: 1,
	}
	e := h.engine(t)

	snap, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap.Trends[2] != "error fetching trend 3" {
		t.Errorf("placeholder lost: %v", snap.Trends)
	}
	m := e.Metrics().Snapshot()
	if m["trends_extracted"] != 3 || m["trend_placeholders"] != 1 {
		t.Errorf("metrics = %v", m)
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		kind      types.Kind
		wantClose int
	}{
		{
			name:      "launch",
			setup:     func(h *harness) { h.launcher.err = errors.New("no chromium") },
			kind:      types.KindLaunch,
			wantClose: 0,
		},
		{
			name:      "navigate",
			setup:     func(h *harness) { h.session.page = &nopPage{navErr: types.ErrTimeout} },
			kind:      types.KindLaunch,
			wantClose: 1,
		},
		{
			name: "login",
			setup: func(h *harness) {
				h.auth.err = types.NewError(types.KindAuthTimeout, "awaiting_password", types.ErrTimeout)
			},
			kind:      types.KindAuthTimeout,
			wantClose: 1,
		},
		{
			name:      "extraction",
			setup:     func(h *harness) { h.extractor.err = types.ErrTimeout },
			kind:      types.KindExtractionTimeout,
			wantClose: 1,
		},
		{
			name:      "insert",
			setup:     func(h *harness) { h.store.insertErr = errors.New("connection refused") },
			kind:      types.KindStorage,
			wantClose: 1,
		},
		{
			name:      "read back",
			setup:     func(h *harness) { h.store.latestErr = errors.New("cursor killed") },
			kind:      types.KindStorage,
			wantClose: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			tt.setup(h)
			e := h.engine(t)

			snap, err := e.Run(context.Background())
			if err == nil {
				t.Fatalf("expected error, got %+v", snap)
			}
			if got := types.KindOf(err); got != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", got, tt.kind, err)
			}
			if h.session.closed != tt.wantClose {
				t.Errorf("session closed %d times, want %d", h.session.closed, tt.wantClose)
			}
			if e.Metrics().RunsFailed.Load() != 1 {
				t.Error("failure not counted")
			}
			last, ok := e.GetStats()["last_run"].(map[string]any)
			if !ok || last["error"] == "" {
				t.Errorf("last run error missing: %v", e.GetStats())
			}
		})
	}
}

func TestRunStorageUnreachable(t *testing.T) {
	h := newHarness()
	cfg := config.DefaultConfig().Storage
	cfg.URI = "mongodb://127.0.0.1:1"
	cfg.Timeout = 300 * time.Millisecond
	store, err := storage.New(context.Background(), &cfg, testLogger, storage.Lazy())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	e := New(config.DefaultConfig(), Components{
		Launcher:      h.launcher,
		Authenticator: h.auth,
		Extractor:     h.extractor,
		Egress:        h.egress,
		Recorder:      NewRecorder(store, nil, testLogger),
	}, testLogger)

	_, err = e.Run(context.Background())
	if types.KindOf(err) != types.KindStorage {
		t.Fatalf("expected KindStorage, got %v", err)
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
	if h.session.closed != 1 {
		t.Errorf("session closed %d times", h.session.closed)
	}
}

func TestRunReadBackEmpty(t *testing.T) {
	h := newHarness()
	h.store.latestErr = types.ErrNoSnapshot
	e := h.engine(t)

	_, err := e.Run(context.Background())
	if !errors.Is(err, types.ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestRunsSerialized(t *testing.T) {
	h := newHarness()
	e := h.engine(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Run(context.Background()); err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := e.Metrics().RunsTotal.Load(); got != 4 {
		t.Errorf("runs total = %d", got)
	}
	if h.session.closed != 4 {
		t.Errorf("session closed %d times", h.session.closed)
	}
}

// --- Recorder Tests ---

func TestRecorderReturnsReadBack(t *testing.T) {
	store := &memStore{}
	// another writer lands between our insert and the read-back
	store.onInsert = func() {
		store.onInsert = nil
		store.Insert(context.Background(), &types.TrendSnapshot{IPAddress: "other"})
	}
	r := NewRecorder(store, nil, testLogger)

	got, err := r.Record(context.Background(), &types.TrendSnapshot{IPAddress: "mine"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.IPAddress != "other" || got.ID != "doc-2" {
		t.Errorf("expected the newest stored record, got %+v", got)
	}
}

func TestRecorderWithJSONL(t *testing.T) {
	store, err := storage.NewJSONLStorage(filepath.Join(t.TempDir(), "snaps.jsonl"), testLogger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	r := NewRecorder(store, nil, testLogger)

	start := time.Now().UTC().Truncate(time.Second)
	got, err := r.Record(context.Background(), &types.TrendSnapshot{
		Trends:    []string{"#x"},
		StartTime: start,
		EndTime:   start,
		IPAddress: types.UnknownIP,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.ID == "" || got.Trends[0] != "#x" {
		t.Errorf("unexpected read-back %+v", got)
	}
}
