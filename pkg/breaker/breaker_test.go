package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestBreaker(timeout time.Duration, threshold int) (*Breaker, *time.Time) {
	b := New(timeout, threshold, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_Execute_PassesThroughSuccess(t *testing.T) {
	b, _ := newTestBreaker(time.Minute, 5)

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, b.Open())
}

func TestBreaker_Execute_ReturnsOriginalError(t *testing.T) {
	b, _ := newTestBreaker(time.Minute, 5)

	err := b.Execute(func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, b.Open())
}

func TestBreaker_Execute_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(time.Minute, 5)

	for i := 0; i < 4; i++ {
		_ = b.Execute(func() error { return errBoom })
		assert.False(t, b.Open(), "circuit must stay closed below the threshold")
	}

	err := b.Execute(func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, b.Open())
}

func TestBreaker_Execute_FailsFastWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(time.Minute, 5)

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return errBoom })
	}
	require.True(t, b.Open())

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 0, calls, "the operation must not run while the circuit is open")
}

func TestBreaker_Execute_ResetsAfterCoolDown(t *testing.T) {
	b, now := newTestBreaker(time.Minute, 5)

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return errBoom })
	}
	require.True(t, b.Open())

	*now = now.Add(61 * time.Second)

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, b.Open())
}

func TestBreaker_Execute_SuccessClearsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(time.Minute, 5)

	for i := 0; i < 4; i++ {
		_ = b.Execute(func() error { return errBoom })
	}
	require.NoError(t, b.Execute(func() error { return nil }))

	// The streak restarted: four more failures stay under the threshold.
	for i := 0; i < 4; i++ {
		_ = b.Execute(func() error { return errBoom })
	}
	assert.False(t, b.Open())
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(time.Minute, 5)

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return errBoom })
	}
	require.True(t, b.Open())

	b.Reset()
	assert.False(t, b.Open())

	calls := 0
	require.NoError(t, b.Execute(func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}

func TestNew_Defaults(t *testing.T) {
	b := New(0, 0, nil)
	assert.Equal(t, DefaultTimeout, b.timeout)
	assert.Equal(t, DefaultThreshold, b.threshold)
}
