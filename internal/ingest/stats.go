package ingest

import (
	"sync"
	"time"
)

// RunStats is a point-in-time copy of cumulative ingestion statistics.
type RunStats struct {
	TotalRuns       int64
	FailedRuns      int64
	StationsSuccess int64
	StationsFailed  int64
	StationsSkipped int64

	LastRunID       string
	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastRunError    string
}

// Stats tracks cumulative ingestion statistics for the ops status endpoint.
type Stats struct {
	mu    sync.RWMutex
	stats RunStats
}

func (s *Stats) record(summary *Summary, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalRuns++
	s.stats.LastRunError = ""
	if runErr != nil {
		s.stats.FailedRuns++
		s.stats.LastRunError = runErr.Error()
	}
	if summary == nil {
		return
	}
	s.stats.StationsSuccess += int64(len(summary.Success))
	s.stats.StationsFailed += int64(len(summary.Failed))
	s.stats.StationsSkipped += int64(len(summary.Skipped))
	s.stats.LastRunID = summary.RunID
	s.stats.LastRunAt = summary.StartedAt
	s.stats.LastRunDuration = summary.FinishedAt.Sub(summary.StartedAt)
}

// Snapshot returns a copy of the current statistics.
func (s *Stats) Snapshot() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Map returns the statistics keyed for JSON output.
func (s *Stats) Map() map[string]interface{} {
	snap := s.Snapshot()
	out := map[string]interface{}{
		"total_runs":        snap.TotalRuns,
		"failed_runs":       snap.FailedRuns,
		"stations_success":  snap.StationsSuccess,
		"stations_failed":   snap.StationsFailed,
		"stations_skipped":  snap.StationsSkipped,
		"last_run_id":       snap.LastRunID,
		"last_run_duration": snap.LastRunDuration.String(),
	}
	if !snap.LastRunAt.IsZero() {
		out["last_run_at"] = snap.LastRunAt
	}
	if snap.LastRunError != "" {
		out["last_run_error"] = snap.LastRunError
	}
	return out
}
