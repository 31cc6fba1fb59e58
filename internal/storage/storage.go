package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// Store is the interface for all snapshot backends.
type Store interface {
	// Insert persists a snapshot and returns the id the backend assigned.
	Insert(ctx context.Context, snap *types.TrendSnapshot) (string, error)

	// Latest returns the most recently inserted snapshot, or types.ErrNoSnapshot.
	Latest(ctx context.Context) (*types.TrendSnapshot, error)

	// Close releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Option adjusts how New opens a backend.
type Option func(*openOptions)

type openOptions struct {
	lazy bool
}

// Lazy lets a network backend start while its server is unreachable. The
// failed startup check is logged and every request reports the outage itself.
func Lazy() Option {
	return func(o *openOptions) { o.lazy = true }
}

// New opens the backend selected by storage.type.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger, opts ...Option) (Store, error) {
	switch cfg.Type {
	case config.StorageMongo:
		return NewMongoStorage(ctx, cfg, logger, opts...)
	case config.StorageJSONL:
		return NewJSONLStorage(cfg.OutputPath, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
