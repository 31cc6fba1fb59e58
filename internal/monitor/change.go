package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/IshaanNene/TrendGoat/internal/types"
)

// ChangeType identifies what kind of change occurred.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeMoved   ChangeType = "moved"
	ChangeRemoved ChangeType = "removed"
)

// Change is one difference between consecutive snapshots.
type Change struct {
	Type      ChangeType `json:"type"`
	Trend     string     `json:"trend"`
	OldRank   int        `json:"old_rank,omitempty"`
	NewRank   int        `json:"new_rank,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ChangeDetector compares each snapshot's trends against the previous one.
// Placeholder entries are never reported as trends.
type ChangeDetector struct {
	placeholder func(string) bool
	logger      *slog.Logger

	mu       sync.Mutex
	previous map[string]int
	seen     bool
	last     []Change
}

// NewChangeDetector creates a detector. isPlaceholder may be nil.
func NewChangeDetector(isPlaceholder func(string) bool, logger *slog.Logger) *ChangeDetector {
	if isPlaceholder == nil {
		isPlaceholder = func(string) bool { return false }
	}
	return &ChangeDetector{
		placeholder: isPlaceholder,
		logger:      logger.With("component", "change_detector"),
	}
}

// Detect records snap and returns its changes against the previous call.
// The first call only establishes the baseline.
func (cd *ChangeDetector) Detect(snap *types.TrendSnapshot) []Change {
	ranks := make(map[string]int, len(snap.Trends))
	for i, t := range snap.Trends {
		if cd.placeholder(t) {
			continue
		}
		if _, dup := ranks[t]; !dup {
			ranks[t] = i + 1
		}
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()

	if !cd.seen {
		cd.seen = true
		cd.previous = ranks
		cd.last = nil
		return nil
	}

	now := snap.EndTime
	var changes []Change
	for i, t := range snap.Trends {
		rank, ok := ranks[t]
		if !ok || rank != i+1 {
			continue
		}
		switch old, had := cd.previous[t]; {
		case !had:
			changes = append(changes, Change{Type: ChangeAdded, Trend: t, NewRank: rank, Timestamp: now})
		case old != rank:
			changes = append(changes, Change{Type: ChangeMoved, Trend: t, OldRank: old, NewRank: rank, Timestamp: now})
		}
	}
	for t, old := range cd.previous {
		if _, ok := ranks[t]; !ok {
			changes = append(changes, Change{Type: ChangeRemoved, Trend: t, OldRank: old, Timestamp: now})
		}
	}

	cd.previous = ranks
	cd.last = changes
	if len(changes) > 0 {
		cd.logger.Info("trends changed", "changes", len(changes))
	}
	return changes
}

// Last returns the changes found by the most recent Detect.
func (cd *ChangeDetector) Last() []Change {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return append([]Change(nil), cd.last...)
}
