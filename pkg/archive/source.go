package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/logvault/pkg/backoff"
	"github.com/3leaps/logvault/pkg/logstore"
	"github.com/3leaps/logvault/pkg/throttle"
)

// SourceConfig tunes the log-group producer.
type SourceConfig struct {
	// BatchSize is the listing page size. Default: 5
	BatchSize int32

	// MaxRetries bounds throttling retries per page. Default: 5
	MaxRetries int

	// BaseDelay is the starting backoff delay. Default: 100ms
	BaseDelay time.Duration

	// MaxBackoffDelay caps the backoff delay. Default: 2s
	MaxBackoffDelay time.Duration
}

// DefaultSourceConfig returns the default source configuration.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		BatchSize:       5,
		MaxRetries:      5,
		BaseDelay:       100 * time.Millisecond,
		MaxBackoffDelay: 2 * time.Second,
	}
}

// Source produces log groups from the store, page by page.
//
// The pagination token is single-use state: a Source drives exactly one
// pipeline run and is not restartable.
type Source struct {
	store   logstore.Store
	limiter *throttle.TokenBucket
	filter  *GroupFilter
	metrics *RunMetrics
	cfg     SourceConfig
	logger  *zap.Logger

	nextToken  string
	retryCount int
}

// NewSource creates a log-group source. Filter may be nil to admit every
// log group.
func NewSource(store logstore.Store, limiter *throttle.TokenBucket, filter *GroupFilter, metrics *RunMetrics, cfg SourceConfig, logger *zap.Logger) *Source {
	def := DefaultSourceConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxBackoffDelay <= 0 {
		cfg.MaxBackoffDelay = def.MaxBackoffDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		store:   store,
		limiter: limiter,
		filter:  filter,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run streams log groups into out until the listing is exhausted, then
// returns nil. Sends block when the downstream is slow; that is the
// backpressure contract. Run closes nothing; the caller owns the channel.
//
// Throttling failures are retried with exponential backoff up to MaxRetries.
// Any other failure, or retry exhaustion, is recorded under the
// LogGroupSource category and returned, aborting the pipeline.
func (s *Source) Run(ctx context.Context, out chan<- logstore.LogGroup) error {
	for {
		page, err := s.fetchPage(ctx)
		if err != nil {
			s.metrics.AddFailure(CategorySource, err)
			s.logger.Error("error processing log groups",
				zap.Int("retry_count", s.retryCount),
				zap.String("last_token", s.nextToken),
				zap.Error(err))
			return err
		}

		if len(page.LogGroups) == 0 && page.NextToken == "" {
			s.logger.Warn("no log groups found")
			return nil
		}

		s.metrics.AddProcessed(len(page.LogGroups))
		if err := s.emit(ctx, page.LogGroups, out); err != nil {
			return err
		}

		if page.NextToken == "" {
			s.logger.Info("no more log groups to retrieve",
				zap.Int64("total_processed", s.metrics.Processed()))
			return nil
		}
		s.nextToken = page.NextToken
		s.retryCount = 0
	}
}

// fetchPage lists one page, retrying throttling-class failures.
func (s *Source) fetchPage(ctx context.Context) (*logstore.Page, error) {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := s.store.ListLogGroups(ctx, s.nextToken, s.cfg.BatchSize)
		if err == nil {
			return page, nil
		}

		if !logstore.IsThrottled(err) || s.retryCount >= s.cfg.MaxRetries {
			return nil, err
		}

		s.retryCount++
		delay := backoff.Exponential(s.cfg.BaseDelay, s.retryCount, s.cfg.MaxBackoffDelay)
		s.logger.Warn("retrying after throttling exception",
			zap.Int("retry_count", s.retryCount),
			zap.Duration("backoff", delay))
		s.metrics.AddRetry()
		if err := backoff.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// emit pushes valid log groups downstream in listing order. Records missing
// an ARN are dropped with a warning and never enter the pipeline.
func (s *Source) emit(ctx context.Context, groups []logstore.LogGroup, out chan<- logstore.LogGroup) error {
	for _, g := range groups {
		if g.ARN == "" {
			s.logger.Warn("log group has no ARN, skipping",
				zap.String("log_group", g.Name))
			continue
		}
		if !s.filter.Match(g.Name) {
			s.logger.Debug("log group excluded by filter",
				zap.String("log_group", g.Name))
			continue
		}
		select {
		case out <- g:
		case <-ctx.Done():
			return fmt.Errorf("emit log groups: %w", ctx.Err())
		}
	}
	return nil
}
