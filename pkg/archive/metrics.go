package archive

import (
	"sync"
	"sync/atomic"
	"time"
)

// Failure categories used in the run's failure registry.
const (
	CategorySource           = "LogGroupSource"
	CategoryTagEnrichment    = "LogGroupTagEnrichment"
	CategoryWindowEnrichment = "ExportJobEnrichment"
	CategoryPublish          = "sqsMessagesSent"
)

// RunMetrics aggregates counters for one pipeline run.
//
// Every backoff sleep anywhere in the run increments the shared retry
// counter, regardless of which stage slept. Safe for concurrent use.
type RunMetrics struct {
	logGroupsProcessed    atomic.Int64
	logGroupsTagsReceived atomic.Int64
	messagesSent          atomic.Int64
	retries               atomic.Int64

	mu       sync.Mutex
	start    time.Time
	failures map[string][]string
}

// NewRunMetrics creates an empty metrics registry.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{failures: make(map[string][]string)}
}

// Start records the run's start time.
func (m *RunMetrics) Start() {
	m.mu.Lock()
	m.start = time.Now()
	m.mu.Unlock()
}

// AddProcessed counts log groups returned by the listing.
func (m *RunMetrics) AddProcessed(n int) { m.logGroupsProcessed.Add(int64(n)) }

// AddTagsReceived counts log groups enriched with tags.
func (m *RunMetrics) AddTagsReceived(n int) { m.logGroupsTagsReceived.Add(int64(n)) }

// AddMessagesSent counts messages flushed to the queue.
func (m *RunMetrics) AddMessagesSent(n int) { m.messagesSent.Add(int64(n)) }

// AddRetry counts one backoff sleep.
func (m *RunMetrics) AddRetry() { m.retries.Add(1) }

// Processed returns the log-groups-processed counter.
func (m *RunMetrics) Processed() int64 { return m.logGroupsProcessed.Load() }

// Retries returns the retry counter.
func (m *RunMetrics) Retries() int64 { return m.retries.Load() }

// AddFailure records err under the given category for the post-mortem view.
func (m *RunMetrics) AddFailure(category string, err error) {
	m.mu.Lock()
	m.failures[category] = append(m.failures[category], err.Error())
	m.mu.Unlock()
}

// Failures returns a copy of the failure registry.
func (m *RunMetrics) Failures() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.failures))
	for k, v := range m.failures {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Snapshot is the read-once view of a completed run.
type Snapshot struct {
	Duration              string              `json:"duration"`
	LogGroupsProcessed    int64               `json:"logGroupsProcessed"`
	LogGroupsTagsReceived int64               `json:"logGroupsTagsReceived"`
	MessagesSent          int64               `json:"sqsMessagesSent"`
	RetryCount            int64               `json:"retryCount"`
	Failures              map[string][]string `json:"failures"`
}

// Snapshot captures the current counters and elapsed time.
func (m *RunMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	start := m.start
	m.mu.Unlock()

	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	return Snapshot{
		Duration:              elapsed.Round(10 * time.Millisecond).String(),
		LogGroupsProcessed:    m.logGroupsProcessed.Load(),
		LogGroupsTagsReceived: m.logGroupsTagsReceived.Load(),
		MessagesSent:          m.messagesSent.Load(),
		RetryCount:            m.retries.Load(),
		Failures:              m.Failures(),
	}
}
