package requestq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	q := New(0, nil)
	assert.Equal(t, DefaultConcurrency, q.concurrency)
}

func TestQueue_Do_RunsFunction(t *testing.T) {
	q := New(2, nil)

	calls := 0
	err := q.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, q.Running())
}

func TestQueue_Do_PropagatesError(t *testing.T) {
	q := New(2, nil)
	errBoom := errors.New("boom")

	err := q.Do(context.Background(), func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, q.Running(), "the slot must be released after a failure")
}

func TestQueue_Do_BoundsConcurrency(t *testing.T) {
	q := New(2, nil)

	var current, peak atomic.Int64
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func() error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				current.Add(-1)
				return nil
			})
		}()
	}

	// Let the goroutines pile up against the cap before releasing them.
	require.Eventually(t, func() bool {
		return current.Load() == 2
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(2), peak.Load())
	assert.Equal(t, 0, q.Running())
}

func TestQueue_Do_AdmitsWaitersInOrder(t *testing.T) {
	q := New(1, nil)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func() error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	// Enqueue waiters one at a time so their queue positions are known.
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		require.Eventually(t, func() bool {
			q.mu.Lock()
			defer q.mu.Unlock()
			return len(q.waiters) == i+1
		}, time.Second, time.Millisecond)
	}

	close(block)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueue_Do_CancelledWhileWaiting(t *testing.T) {
	q := New(1, nil)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func() error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Do(ctx, func() error { return nil })
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	// The abandoned slot must not leak: the queue admits new work.
	close(block)
	require.NoError(t, q.Do(context.Background(), func() error { return nil }))
	assert.Equal(t, 0, q.Running())
}
