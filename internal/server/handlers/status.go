package handlers

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// WorkerStats is the /status payload: a live view of the worker's progress.
type WorkerStats struct {
	StartedAt         time.Time `json:"startedAt"`
	Uptime            string    `json:"uptime"`
	JobsProcessed     int64     `json:"jobsProcessed"`
	JobsSucceeded     int64     `json:"jobsSucceeded"`
	JobsSkipped       int64     `json:"jobsSkipped"`
	JobsFailed        int64     `json:"jobsFailed"`
	JobsWarned        int64     `json:"jobsWarned"`
	LastJobLogGroup   string    `json:"lastJobLogGroup,omitempty"`
	LastJobFinishedAt time.Time `json:"lastJobFinishedAt,omitzero"`
}

// StatusTracker accumulates worker counters. Safe for concurrent use.
type StatusTracker struct {
	startedAt time.Time
	processed atomic.Int64
	succeeded atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	warned    atomic.Int64

	lastGroup    atomic.Value // string
	lastFinished atomic.Value // time.Time
}

// NewStatusTracker creates a tracker anchored at now.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{startedAt: time.Now()}
}

// Outcome labels for RecordJob.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeWarned  = "warned"
	OutcomeFailed  = "failed"
)

// RecordJob counts one finished job.
func (t *StatusTracker) RecordJob(logGroup, outcome string) {
	t.processed.Add(1)
	switch outcome {
	case OutcomeSuccess:
		t.succeeded.Add(1)
	case OutcomeSkipped:
		t.skipped.Add(1)
	case OutcomeWarned:
		t.warned.Add(1)
	default:
		t.failed.Add(1)
	}
	t.lastGroup.Store(logGroup)
	t.lastFinished.Store(time.Now())
}

// Stats returns the current counters.
func (t *StatusTracker) Stats() WorkerStats {
	stats := WorkerStats{
		StartedAt:     t.startedAt,
		Uptime:        time.Since(t.startedAt).Round(time.Second).String(),
		JobsProcessed: t.processed.Load(),
		JobsSucceeded: t.succeeded.Load(),
		JobsSkipped:   t.skipped.Load(),
		JobsFailed:    t.failed.Load(),
		JobsWarned:    t.warned.Load(),
	}
	if g, ok := t.lastGroup.Load().(string); ok {
		stats.LastJobLogGroup = g
	}
	if ts, ok := t.lastFinished.Load().(time.Time); ok {
		stats.LastJobFinishedAt = ts
	}
	return stats
}

// StatusHandler serves the tracker's counters as JSON.
func (t *StatusTracker) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(t.Stats())
}
