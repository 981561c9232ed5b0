// Package breaker implements the circuit breaker guarding outbound calls to
// an unhealthy dependency.
//
// The breaker trips open after a threshold of consecutive failures and
// rejects calls immediately until a cool-down window has elapsed, after which
// it resets and the next call is attempted.
package breaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen is returned by Execute while the circuit is open and the cool-down
// window has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

const (
	// DefaultTimeout is the cool-down window before an open circuit resets.
	DefaultTimeout = 60 * time.Second

	// DefaultThreshold is the consecutive-failure count that opens the circuit.
	DefaultThreshold = 5
)

// Breaker is a circuit breaker over an arbitrary operation.
//
// A Breaker instance is owned exclusively by the component that constructs
// it; instances are not shared across concurrent runs. It is nevertheless
// safe for concurrent use within its owner.
type Breaker struct {
	mu          sync.Mutex
	open        bool
	failures    int
	lastFailure time.Time

	timeout   time.Duration
	threshold int
	logger    *zap.Logger
	now       func() time.Time // injectable for tests
}

// New creates a Breaker. Zero timeout or threshold select the defaults.
// A nil logger disables logging.
func New(timeout time.Duration, threshold int, logger *zap.Logger) *Breaker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		timeout:   timeout,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute runs fn with circuit breaker protection.
//
// While open, calls fail fast with ErrOpen until the cool-down window has
// elapsed since the last failure; the first call after the window resets the
// circuit and proceeds. A success clears the failure count. A failure
// increments it, opening the circuit at the threshold, and the original
// error is always returned unchanged.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.open {
		elapsed := b.now().Sub(b.lastFailure)
		b.logger.Info("circuit breaker is open",
			zap.Duration("since_last_failure", elapsed))
		if elapsed < b.timeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.logger.Info("circuit breaker cool-down elapsed, resetting circuit")
		b.resetLocked()
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return nil
	}

	b.failures++
	b.lastFailure = b.now()
	b.logger.Error("operation failed",
		zap.Int("failures", b.failures),
		zap.Error(err))
	if b.failures >= b.threshold {
		b.open = true
		b.logger.Warn("circuit breaker opened",
			zap.Int("failures", b.failures))
	}
	return err
}

// Reset closes the circuit and clears the failure bookkeeping.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Breaker) resetLocked() {
	b.open = false
	b.failures = 0
	b.lastFailure = time.Time{}
}

// Open reports whether the circuit is currently open.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
