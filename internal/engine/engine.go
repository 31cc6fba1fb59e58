package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/TrendGoat/internal/automation"
	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/fetcher"
	"github.com/IshaanNene/TrendGoat/internal/monitor"
	"github.com/IshaanNene/TrendGoat/internal/observability"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// SessionLauncher opens a browser session scoped to one run.
type SessionLauncher interface {
	Launch(ctx context.Context) (fetcher.Session, error)
}

// Authenticator completes the login form on an open page.
type Authenticator interface {
	Login(ctx context.Context, page fetcher.Page) error
}

// TrendExtractor reads trend labels from the authenticated page.
type TrendExtractor interface {
	Extract(ctx context.Context, page fetcher.Page) (*automation.Result, error)
}

// Identifier reports the public address the run is seen from. On failure it
// still returns the address to record, normally types.UnknownIP.
type Identifier interface {
	Identify(ctx context.Context) (string, error)
}

// Components are the collaborators of one Engine.
type Components struct {
	Launcher      SessionLauncher
	Authenticator Authenticator
	Extractor     TrendExtractor
	Egress        Identifier
	Recorder      *Recorder
	Metrics       *observability.Metrics
	// Changes is optional.
	Changes *monitor.ChangeDetector
}

// lastRun is what the dashboard shows about the previous run.
type lastRun struct {
	ID         string
	SnapshotID string
	Finished   time.Time
	Duration   time.Duration
	Err        string
}

// Engine runs launch, login, extraction, egress lookup and recording once per call.
type Engine struct {
	loginURL        string
	navigateTimeout time.Duration
	c               Components
	logger          *slog.Logger
	now             func() time.Time

	runMu   sync.Mutex
	state   atomic.Int32
	started time.Time

	mu   sync.RWMutex
	last lastRun
}

// New creates an Engine. A nil Metrics gets a private instance.
func New(cfg *config.Config, c Components, logger *slog.Logger) *Engine {
	if c.Metrics == nil {
		c.Metrics = observability.NewMetrics(logger)
	}
	return &Engine{
		loginURL:        cfg.Login.URL,
		navigateTimeout: cfg.Login.NavigateTimeout,
		c:               c,
		logger:          logger.With("component", "engine"),
		now:             time.Now,
		started:         time.Now(),
	}
}

// Run executes one scrape and returns the snapshot read back from storage.
// Calls are serialized.
func (e *Engine) Run(ctx context.Context) (*types.TrendSnapshot, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)

	e.state.Store(int32(StateRunning))
	defer e.state.Store(int32(StateIdle))

	m := e.c.Metrics
	m.RunsTotal.Add(1)
	m.ActiveRuns.Add(1)
	defer m.ActiveRuns.Add(-1)

	start := e.now()
	logger.Info("run started")

	snap, err := e.run(ctx, logger, start)

	elapsed := e.now().Sub(start)
	m.LastRunMillis.Store(elapsed.Milliseconds())

	last := lastRun{ID: runID, Finished: e.now(), Duration: elapsed}
	if err != nil {
		m.RecordFailure(err)
		last.Err = err.Error()
		e.setLast(last)
		logger.Error("run failed", "kind", types.KindOf(err), "error", err, "elapsed", elapsed)
		return nil, err
	}

	m.RunsSucceeded.Add(1)
	if e.c.Changes != nil {
		for _, c := range e.c.Changes.Detect(snap) {
			logger.Debug("trend change", "type", c.Type, "trend", c.Trend, "old_rank", c.OldRank, "new_rank", c.NewRank)
		}
	}
	last.SnapshotID = snap.ID
	e.setLast(last)
	logger.Info("run finished",
		"snapshot_id", snap.ID,
		"trends", len(snap.Trends),
		"ip_address", snap.IPAddress,
		"elapsed", elapsed,
	)
	return snap, nil
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger, start time.Time) (*types.TrendSnapshot, error) {
	session, err := e.c.Launcher.Launch(ctx)
	if err != nil {
		return nil, classify(types.KindLaunch, "launch", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("session close failed", "error", err)
		}
	}()

	page := session.Page()

	navCtx, cancel := context.WithTimeout(ctx, e.navigateTimeout)
	err = page.Navigate(navCtx, e.loginURL)
	cancel()
	if err != nil {
		return nil, classify(types.KindLaunch, "navigate", err)
	}

	if err := e.c.Authenticator.Login(ctx, page); err != nil {
		return nil, classify(types.KindAuthTimeout, "login", err)
	}

	res, err := e.c.Extractor.Extract(ctx, page)
	if err != nil {
		return nil, classify(types.KindExtractionTimeout, "extract", err)
	}
	e.c.Metrics.TrendsExtracted.Add(int64(len(res.Trends) - res.Failed))
	e.c.Metrics.TrendPlaceholder.Add(int64(res.Failed))
	logger.Info("trends extracted", "count", len(res.Trends), "placeholders", res.Failed)

	ip, err := e.c.Egress.Identify(ctx)
	if err != nil {
		logger.Warn("egress lookup failed, recording sentinel", "error", err)
	}
	if ip == "" || ip == types.UnknownIP {
		ip = types.UnknownIP
		e.c.Metrics.EgressFallbacks.Add(1)
	}

	end := e.now()
	if end.Before(start) {
		end = start
	}

	return e.c.Recorder.Record(ctx, &types.TrendSnapshot{
		Trends:    res.Trends,
		StartTime: start,
		EndTime:   end,
		IPAddress: ip,
	})
}

// classify wraps err in kind unless a step already classified it.
func classify(kind types.Kind, op string, err error) error {
	if types.KindOf(err) != types.KindUnknown {
		return err
	}
	return types.NewError(kind, op, err)
}

func (e *Engine) setLast(l lastRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = l
}

// GetState returns the current engine state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// GetStats returns run counters and details of the previous run.
func (e *Engine) GetStats() map[string]any {
	e.mu.RLock()
	last := e.last
	e.mu.RUnlock()

	stats := map[string]any{
		"state":   e.GetState().String(),
		"uptime":  time.Since(e.started).Round(time.Second).String(),
		"metrics": e.c.Metrics.Snapshot(),
	}
	if last.ID != "" {
		run := map[string]any{
			"run_id":      last.ID,
			"finished_at": last.Finished.Format(types.TimeLayout),
			"duration":    last.Duration.String(),
		}
		if last.SnapshotID != "" {
			run["snapshot_id"] = last.SnapshotID
		}
		if last.Err != "" {
			run["error"] = last.Err
		}
		stats["last_run"] = run
	}
	if e.c.Changes != nil {
		stats["last_changes"] = e.c.Changes.Last()
	}
	return stats
}

// Metrics returns the counters the engine feeds.
func (e *Engine) Metrics() *observability.Metrics {
	return e.c.Metrics
}
