package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IshaanNene/TrendGoat/internal/observability"
	"github.com/IshaanNene/TrendGoat/internal/storage"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// Recorder persists a snapshot and returns the most recent stored record.
type Recorder struct {
	store   storage.Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRecorder creates a Recorder over store. metrics may be nil.
func NewRecorder(store storage.Store, metrics *observability.Metrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		metrics: metrics,
		logger:  logger.With("component", "recorder", "backend", store.Name()),
	}
}

// Record inserts snap, then reads back the newest record. The read-back is
// returned even when another writer got in between.
func (r *Recorder) Record(ctx context.Context, snap *types.TrendSnapshot) (*types.TrendSnapshot, error) {
	id, err := r.store.Insert(ctx, snap)
	if err != nil {
		return nil, classify(types.KindStorage, "insert", err)
	}
	if r.metrics != nil {
		r.metrics.SnapshotsStored.Add(1)
	}
	r.logger.Debug("snapshot inserted", "id", id)

	return r.Latest(ctx)
}

// Latest returns the newest stored record without writing.
func (r *Recorder) Latest(ctx context.Context) (*types.TrendSnapshot, error) {
	latest, err := r.store.Latest(ctx)
	if errors.Is(err, types.ErrNoSnapshot) {
		return nil, err
	}
	if err != nil {
		return nil, classify(types.KindStorage, "latest", err)
	}
	return latest, nil
}
