// Package requestq provides a bounded request queue: an admission-control
// primitive that caps the number of in-flight operations and admits waiters
// in FIFO order.
package requestq

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultConcurrency is the default in-flight cap.
const DefaultConcurrency = 2

// Queue limits concurrent execution of submitted functions.
//
// An explicit waiter list is used rather than a buffered-channel semaphore
// because channel wakeup order is unspecified and admission must be FIFO.
type Queue struct {
	mu          sync.Mutex
	running     int
	waiters     []chan struct{}
	concurrency int
	logger      *zap.Logger
}

// New creates a Queue with the given concurrency cap. Non-positive values
// select DefaultConcurrency. A nil logger disables logging.
func New(concurrency int, logger *zap.Logger) *Queue {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("created request queue", zap.Int("concurrency", concurrency))
	return &Queue{
		concurrency: concurrency,
		logger:      logger,
	}
}

// Do executes fn once a slot is free, suspending the caller until then.
//
// The slot is released and the next waiter admitted regardless of fn's
// outcome; fn's error is propagated to the caller unchanged. While waiting
// for admission, cancellation of ctx aborts with the context error.
func (q *Queue) Do(ctx context.Context, fn func() error) error {
	if err := q.acquire(ctx); err != nil {
		return err
	}
	defer q.release()
	return fn()
}

func (q *Queue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if q.running < q.concurrency {
		q.running++
		q.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	q.logger.Debug("request queue full, waiting",
		zap.Int("running", q.running),
		zap.Int("queued", len(q.waiters)))
	q.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		q.abandon(ready)
		return ctx.Err()
	}
}

// abandon removes a cancelled waiter, or forwards the slot it was handed in
// the race where release signalled it before cancellation won.
func (q *Queue) abandon(ready chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.waiters {
		if w == ready {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}
	// Already admitted: hand the slot to the next waiter.
	q.releaseLocked()
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.releaseLocked()
}

func (q *Queue) releaseLocked() {
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	q.running--
}

// Running reports the number of functions currently executing.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
