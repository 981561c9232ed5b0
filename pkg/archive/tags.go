package archive

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/logvault/pkg/backoff"
	"github.com/3leaps/logvault/pkg/logstore"
	"github.com/3leaps/logvault/pkg/throttle"
)

// internalTagMarker marks provider-internal metadata tags that must never
// surface on exported jobs.
const internalTagMarker = "aws:"

// ErrTagRetriesExceeded is returned when the tag fetch retry budget runs out.
var ErrTagRetriesExceeded = errors.New("max retries exceeded fetching tags")

// ErrCircuitOpen is returned while the stage's circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// TagConfig tunes the tag enrichment stage.
type TagConfig struct {
	// MaxRetries bounds throttling retries per log group. Default: 3
	MaxRetries int

	// BaseDelay is the starting backoff delay. Default: 1s
	BaseDelay time.Duration

	// BreakerThreshold is the failure count that opens the stage's
	// circuit. Default: 5
	BreakerThreshold int

	// BreakerResetTimeout is the cool-down before the circuit closes
	// again. Default: 60s
	BreakerResetTimeout time.Duration
}

// DefaultTagConfig returns the default tag-stage configuration.
func DefaultTagConfig() TagConfig {
	return TagConfig{
		MaxRetries:          3,
		BaseDelay:           time.Second,
		BreakerThreshold:    5,
		BreakerResetTimeout: 60 * time.Second,
	}
}

// TagEnricher annotates log groups with their resource tags.
//
// The stage keeps its own inline circuit breaker rather than a shared one.
// Unlike the standalone breaker, a non-throttling fetch failure force-trips
// it straight to the threshold: one hard error from the tag API opens the
// circuit immediately. Throttling errors retry with exponential backoff.
type TagEnricher struct {
	store   logstore.Store
	limiter *throttle.TokenBucket
	metrics *RunMetrics
	cfg     TagConfig
	logger  *zap.Logger

	failures    int
	lastFailure time.Time
	now         func() time.Time // injectable for tests
}

// NewTagEnricher creates the tag enrichment stage.
func NewTagEnricher(store logstore.Store, limiter *throttle.TokenBucket, metrics *RunMetrics, cfg TagConfig, logger *zap.Logger) *TagEnricher {
	def := DefaultTagConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerResetTimeout <= 0 {
		cfg.BreakerResetTimeout = def.BreakerResetTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagEnricher{
		store:   store,
		limiter: limiter,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run consumes log groups from in and emits tag-enriched copies to out,
// preserving order. Any unrecovered failure is recorded under the
// LogGroupTagEnrichment category and returned, aborting the pipeline.
func (t *TagEnricher) Run(ctx context.Context, in <-chan logstore.LogGroup, out chan<- logstore.LogGroup) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case g, ok := <-in:
			if !ok {
				return nil
			}
			enriched, err := t.enrich(ctx, g)
			if err != nil {
				t.handleFailure(g, err)
				return err
			}
			select {
			case out <- enriched:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Enrich annotates one log group with its filtered resource tags.
func (t *TagEnricher) enrich(ctx context.Context, g logstore.LogGroup) (logstore.LogGroup, error) {
	if t.circuitOpen() {
		return logstore.LogGroup{}, ErrCircuitOpen
	}

	tags, err := t.fetchTags(ctx, g)
	if err != nil {
		return logstore.LogGroup{}, err
	}

	g.Tags = tags
	t.failures = 0
	t.metrics.AddTagsReceived(1)
	t.logger.Info("tags retrieved",
		zap.String("log_group", g.Name),
		zap.Int("tag_count", len(tags)))
	return g, nil
}

// fetchTags retrieves and filters the resource tags, retrying throttling
// failures. A non-throttling failure force-trips the circuit and is
// returned immediately.
func (t *TagEnricher) fetchTags(ctx context.Context, g logstore.LogGroup) (map[string]string, error) {
	for attempt := 0; attempt < t.cfg.MaxRetries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		tags, err := t.store.ListTags(ctx, g.ARN)
		if err == nil {
			return filterInternalTags(tags), nil
		}

		t.logger.Error("error fetching tags",
			zap.String("log_group", g.Name),
			zap.Int("retries_remaining", t.cfg.MaxRetries-attempt-1),
			zap.Error(err))

		if !logstore.IsThrottled(err) {
			t.tripCircuit()
			return nil, err
		}

		t.metrics.AddRetry()
		if err := backoff.Sleep(ctx, backoff.Exponential(t.cfg.BaseDelay, attempt, 0)); err != nil {
			return nil, err
		}
	}
	return nil, ErrTagRetriesExceeded
}

func (t *TagEnricher) circuitOpen() bool {
	if t.failures < t.cfg.BreakerThreshold {
		return false
	}
	return t.now().Sub(t.lastFailure) < t.cfg.BreakerResetTimeout
}

// tripCircuit opens the circuit without waiting for the threshold: a hard
// error from the tag API is not worth hammering.
func (t *TagEnricher) tripCircuit() {
	t.failures = t.cfg.BreakerThreshold
	t.lastFailure = t.now()
}

func (t *TagEnricher) handleFailure(g logstore.LogGroup, err error) {
	t.failures++
	t.lastFailure = t.now()
	t.metrics.AddFailure(CategoryTagEnrichment, err)
	t.logger.Error("failed to retrieve tags",
		zap.String("log_group", g.Name),
		zap.Error(err))
}

// filterInternalTags drops provider-internal metadata tags.
func filterInternalTags(tags map[string]string) map[string]string {
	filtered := make(map[string]string, len(tags))
	for k, v := range tags {
		if strings.Contains(k, internalTagMarker) {
			continue
		}
		filtered[k] = v
	}
	return filtered
}
