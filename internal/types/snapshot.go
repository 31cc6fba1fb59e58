package types

import (
	"fmt"
	"time"
)

// UnknownIP is recorded when the egress address could not be determined.
const UnknownIP = "Unknown"

// TimeLayout is the timestamp format used in HTTP responses and legacy documents.
const TimeLayout = "2006-01-02 15:04:05"

// TrendSnapshot is the record produced by one scrape attempt.
type TrendSnapshot struct {
	ID        string    `json:"id,omitempty"`
	Trends    []string  `json:"trends"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IPAddress string    `json:"ip_address"`
}

// Duration returns how long the attempt took.
func (s *TrendSnapshot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// View renders the snapshot in the shape returned by /run-scraper.
// Both the ordered list and the flat trend1..trendN keys are emitted.
func (s *TrendSnapshot) View() map[string]any {
	trends := s.Trends
	if trends == nil {
		trends = []string{}
	}
	view := map[string]any{
		"unique_id":  s.ID,
		"trends":     trends,
		"start_time": s.StartTime.Format(TimeLayout),
		"end_time":   s.EndTime.Format(TimeLayout),
		"ip_address": s.IPAddress,
	}
	for i, t := range trends {
		view[fmt.Sprintf("trend%d", i+1)] = t
	}
	return view
}

// SampleSnapshot is the placeholder document seeded by init-db.
func SampleSnapshot() *TrendSnapshot {
	start := time.Date(2024, 12, 26, 10, 0, 0, 0, time.UTC)
	return &TrendSnapshot{
		Trends:    []string{"#SampleTrend1", "#SampleTrend2", "#SampleTrend3", "#SampleTrend4"},
		StartTime: start,
		EndTime:   start.Add(10 * time.Minute),
		IPAddress: "203.0.113.195",
	}
}
