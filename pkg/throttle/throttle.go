// Package throttle implements the token-bucket rate limiter shared by all
// outbound calls to the CloudWatch Logs API.
//
// One TokenBucket instance is constructed at wiring time and injected into
// every pipeline stage and executor, approximating a single outbound channel
// to the API regardless of how many callers use it concurrently.
package throttle

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config tunes the token bucket.
type Config struct {
	// MaxTokens is the bucket capacity: the largest burst permitted before
	// the first enforced wait. Default: 10
	MaxTokens float64

	// RefillRate is the sustained rate in tokens per second. Default: 5
	RefillRate float64
}

// DefaultConfig returns the default token-bucket configuration.
func DefaultConfig() Config {
	return Config{
		MaxTokens:  10,
		RefillRate: 5,
	}
}

// TokenBucket rate-limits callers with a token bucket. The bucket refills
// continuously at RefillRate; when it runs low the caller is suspended until
// a token becomes available.
//
// Safe for concurrent use.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	lastReq  time.Time
	cfg      Config
	logger   *zap.Logger
	// Injectable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a TokenBucket. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *TokenBucket {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = DefaultConfig().RefillRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenBucket{
		tokens: cfg.MaxTokens,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  defaultSleep,
	}
}

// Wait blocks until the caller may proceed, consuming one token.
//
// Tokens refill by elapsedSeconds*RefillRate up to MaxTokens. When fewer
// than five tokens remain, the caller is suspended for
// ceil((1-tokens) * 1000/RefillRate) milliseconds and the bucket resets to a
// single token. Every outbound log-management call must pass through Wait
// immediately before the request.
func (b *TokenBucket) Wait(ctx context.Context) error {
	b.mu.Lock()
	now := b.now()
	if !b.lastReq.IsZero() {
		elapsed := now.Sub(b.lastReq).Seconds()
		b.tokens = math.Min(b.cfg.MaxTokens, b.tokens+elapsed*b.cfg.RefillRate)
	}

	// Below five tokens the bucket is considered drained: wait out the
	// deficit (if any) and restart from a single token.
	if b.tokens < 5 {
		var wait time.Duration
		if waitMs := math.Ceil((1 - b.tokens) * (1000 / b.cfg.RefillRate)); waitMs > 0 {
			wait = time.Duration(waitMs) * time.Millisecond
		}
		if wait > 0 {
			b.mu.Unlock()
			b.logger.Warn("rate limited, pausing before next request",
				zap.Duration("wait", wait))
			if err := b.sleep(ctx, wait); err != nil {
				return err
			}
			b.mu.Lock()
			now = b.now()
		}
		b.tokens = 1
	}

	b.tokens--
	b.lastReq = now
	b.mu.Unlock()
	return nil
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
