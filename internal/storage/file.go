package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/IshaanNene/TrendGoat/internal/types"
)

// JSONLStorage appends snapshots to a newline-delimited JSON file.
type JSONLStorage struct {
	path   string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates the output directory; the file is created on first insert.
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.ScrapeError{Kind: types.KindStorage, Op: "mkdir", Err: err}
	}

	return &JSONLStorage{
		path:   outputPath,
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Insert(ctx context.Context, snap *types.TrendSnapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *snap
	rec.ID = uuid.NewString()
	if rec.Trends == nil {
		rec.Trends = []string{}
	}

	line, err := json.Marshal(&rec)
	if err != nil {
		return "", fmt.Errorf("encode JSONL: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("write JSONL: %w", err)
	}

	s.count++
	s.logger.Debug("snapshot appended", "id", rec.ID, "total", s.count)
	return rec.ID, nil
}

// Latest returns the last decodable line of the file.
func (s *JSONLStorage) Latest(ctx context.Context) (*types.TrendSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, types.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	var latest *types.TrendSnapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec types.TrendSnapshot
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			s.logger.Warn("skipping corrupt line", "path", s.path, "error", err)
			continue
		}
		latest = &rec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if latest == nil {
		return nil, types.ErrNoSnapshot
	}
	if latest.Trends == nil {
		latest.Trends = []string{}
	}
	return latest, nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL storage closing", "path", s.path, "written", s.count)
	return nil
}
