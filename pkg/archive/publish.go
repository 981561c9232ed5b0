package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/logvault/pkg/backoff"
	"github.com/3leaps/logvault/pkg/queue"
	"github.com/3leaps/logvault/pkg/throttle"
)

// ErrMessageTooLarge indicates a serialized job over the transport's
// per-message size cap.
var ErrMessageTooLarge = errors.New("message exceeds queue size limit")

// PublisherConfig tunes the queue sink.
type PublisherConfig struct {
	// BatchSize is the flush threshold. Must not exceed queue.MaxBatchSize.
	// Default: 10
	BatchSize int

	// MaxRetries bounds retries of one batch send. Default: 5
	MaxRetries int

	// PauseBase is the base delay for jittered retry backoff. Default: 100ms
	PauseBase time.Duration

	// DryRun skips the actual queue send, dropping batches after logging.
	DryRun bool
}

// DefaultPublisherConfig returns the default publisher configuration.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		BatchSize:  10,
		MaxRetries: 5,
		PauseBase:  100 * time.Millisecond,
	}
}

// Publisher buffers export jobs and flushes them to the queue in batches.
//
// Batches flush when the buffer reaches BatchSize; the only smaller batch is
// the final partial one sent by Flush. Retryable transport failures are
// retried with jittered backoff; anything else is recorded under the
// sqsMessagesSent category and aborts the pipeline.
type Publisher struct {
	q       queue.Publisher
	limiter *throttle.TokenBucket
	metrics *RunMetrics
	cfg     PublisherConfig
	logger  *zap.Logger

	buffer  []queue.Entry
	batchID string
	seq     int
}

// NewPublisher creates the queue sink. Configuration is validated here so a
// misconfigured publisher fails at startup, not mid-pipeline.
func NewPublisher(q queue.Publisher, limiter *throttle.TokenBucket, metrics *RunMetrics, cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	def := DefaultPublisherConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchSize > queue.MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds queue limit of %d", cfg.BatchSize, queue.MaxBatchSize)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.PauseBase <= 0 {
		cfg.PauseBase = def.PauseBase
	}
	if q == nil {
		return nil, errors.New("queue publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		q:       q,
		limiter: limiter,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Run consumes jobs from in, buffering and flushing batches, then sends the
// final partial batch when in closes.
func (p *Publisher) Run(ctx context.Context, in <-chan Job) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-in:
			if !ok {
				return p.Flush(ctx)
			}
			if err := p.Publish(ctx, job); err != nil {
				return err
			}
		}
	}
}

// Publish buffers one job, flushing a full batch when the threshold is hit.
func (p *Publisher) Publish(ctx context.Context, job Job) error {
	body, err := job.Marshal()
	if err != nil {
		p.fail(err)
		return err
	}
	if len(body) > queue.MaxMessageBytes {
		err := fmt.Errorf("%w: %d bytes for %s", ErrMessageTooLarge, len(body), job.Name)
		p.fail(err)
		return err
	}

	p.batchID = fmt.Sprintf("job-batch-%d", time.Now().UnixMilli())
	p.buffer = append(p.buffer, queue.Entry{
		ID:   fmt.Sprintf("%s-%d", p.batchID, p.seq),
		Body: string(body),
	})
	p.seq++

	if len(p.buffer) >= p.cfg.BatchSize {
		return p.sendBatch(ctx, p.cfg.MaxRetries)
	}
	return nil
}

// Flush sends any remaining buffered jobs. This is the only point where a
// batch smaller than the configured size is sent.
func (p *Publisher) Flush(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}
	p.logger.Info("flushing remaining messages to queue",
		zap.Int("remaining", len(p.buffer)))
	return p.sendBatch(ctx, p.cfg.MaxRetries)
}

// sendBatch flushes the buffer, retrying retryable transport failures with
// jittered backoff until the retry budget is spent.
func (p *Publisher) sendBatch(ctx context.Context, retries int) error {
	if p.cfg.DryRun {
		p.logger.Info("dry run, skipping queue send",
			zap.Int("batch_len", len(p.buffer)))
		p.buffer = p.buffer[:0]
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	err := p.q.SendBatch(ctx, p.buffer)
	if err == nil {
		p.metrics.AddMessagesSent(len(p.buffer))
		p.logger.Info("batch sent to queue",
			zap.Int("batch_len", len(p.buffer)))
		p.buffer = p.buffer[:0]
		return nil
	}

	if !queue.IsRetryable(err) || retries <= 1 {
		p.fail(err)
		return fmt.Errorf("batch send failed: %w", err)
	}

	p.metrics.AddRetry()
	delay := backoff.Jittered(p.cfg.PauseBase, retries)
	p.logger.Warn("retrying queue batch send",
		zap.Int("retries_remaining", retries-1),
		zap.Duration("backoff", delay))
	if err := backoff.Sleep(ctx, delay); err != nil {
		return err
	}
	return p.sendBatch(ctx, retries-1)
}

func (p *Publisher) fail(err error) {
	p.metrics.AddFailure(CategoryPublish, err)
	p.logger.Error("failed to send message batch to queue", zap.Error(err))
}

// Buffered reports the number of jobs waiting in the buffer.
func (p *Publisher) Buffered() int {
	return len(p.buffer)
}
