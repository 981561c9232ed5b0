package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock provides a controllable now() and records sleeps instead of
// actually pausing.
type testClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestBucket(cfg Config) (*TokenBucket, *testClock) {
	b := New(cfg, nil)
	clock := newTestClock()
	b.now = clock.Now
	b.sleep = clock.Sleep
	return b, clock
}

func TestNew_Defaults(t *testing.T) {
	b := New(Config{}, nil)
	assert.Equal(t, float64(10), b.cfg.MaxTokens)
	assert.Equal(t, float64(5), b.cfg.RefillRate)
	assert.Equal(t, float64(10), b.tokens)
}

func TestTokenBucket_Wait_BurstWithoutPausing(t *testing.T) {
	b, clock := newTestBucket(DefaultConfig())
	ctx := context.Background()

	// The first six calls see five or more tokens and pass straight through.
	for i := 0; i < 6; i++ {
		require.NoError(t, b.Wait(ctx))
	}
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, float64(4), b.tokens)
}

func TestTokenBucket_Wait_LowWaterResetsToOne(t *testing.T) {
	b, clock := newTestBucket(DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, b.Wait(ctx))
	}

	// Four tokens left: below the low-water mark but the computed wait is
	// negative, so the call proceeds immediately from a reset bucket.
	require.NoError(t, b.Wait(ctx))
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, float64(0), b.tokens)
}

func TestTokenBucket_Wait_DrainedBucketPauses(t *testing.T) {
	b, clock := newTestBucket(DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, b.Wait(ctx))
	}
	require.Equal(t, float64(0), b.tokens)

	// Empty bucket, no elapsed time: wait ceil(1 * 1000/5) = 200ms.
	require.NoError(t, b.Wait(ctx))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 200*time.Millisecond, clock.sleeps[0])
	assert.Equal(t, float64(0), b.tokens)
}

func TestTokenBucket_Wait_RefillsWithElapsedTime(t *testing.T) {
	b, clock := newTestBucket(DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, b.Wait(ctx))
	}
	require.Equal(t, float64(0), b.tokens)

	// Two seconds at five tokens/second refills ten, capped at capacity.
	clock.now = clock.now.Add(2 * time.Second)
	require.NoError(t, b.Wait(ctx))
	assert.Len(t, clock.sleeps, 0)
	assert.Equal(t, float64(9), b.tokens)
}

func TestTokenBucket_Wait_RefillCappedAtMax(t *testing.T) {
	b, clock := newTestBucket(Config{MaxTokens: 10, RefillRate: 5})
	ctx := context.Background()

	require.NoError(t, b.Wait(ctx))
	clock.now = clock.now.Add(time.Hour)
	require.NoError(t, b.Wait(ctx))
	assert.Equal(t, float64(9), b.tokens)
}

func TestTokenBucket_Wait_CancelledDuringPause(t *testing.T) {
	b, _ := newTestBucket(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	for i := 0; i < 7; i++ {
		require.NoError(t, b.Wait(ctx))
	}

	b.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenBucket_Wait_SlowRefillRateWaitsLonger(t *testing.T) {
	b, clock := newTestBucket(Config{MaxTokens: 10, RefillRate: 1})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, b.Wait(ctx))
	}
	require.Equal(t, float64(0), b.tokens)

	// One token per second: the deficit wait is a full second.
	require.NoError(t, b.Wait(ctx))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, time.Second, clock.sleeps[0])
}
