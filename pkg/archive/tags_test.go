package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/logvault/pkg/logstore"
)

// enrichOne runs a single log group through the tag stage.
func enrichOne(t *testing.T, e *TagEnricher, g logstore.LogGroup) (logstore.LogGroup, error) {
	t.Helper()
	in := make(chan logstore.LogGroup, 1)
	out := make(chan logstore.LogGroup, 1)
	in <- g
	close(in)

	err := e.Run(context.Background(), in, out)
	select {
	case enriched := <-out:
		return enriched, err
	default:
		return logstore.LogGroup{}, err
	}
}

func fastTagConfig() TagConfig {
	return TagConfig{BaseDelay: time.Nanosecond}
}

func TestTagEnricher_Run_AttachesTags(t *testing.T) {
	store := &mockStore{}
	store.tagsFn = func(arn string) (map[string]string, error) {
		return map[string]string{"team": "platform", "env": "prod"}, nil
	}

	metrics := NewRunMetrics()
	e := NewTagEnricher(store, testLimiter(), metrics, fastTagConfig(), nil)

	enriched, err := enrichOne(t, e, group("/aws/lambda/a", 1))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "platform", "env": "prod"}, enriched.Tags)
	assert.Equal(t, int64(1), metrics.logGroupsTagsReceived.Load())
}

func TestTagEnricher_Run_FiltersInternalTags(t *testing.T) {
	store := &mockStore{}
	store.tagsFn = func(arn string) (map[string]string, error) {
		return map[string]string{
			"aws:cloudformation:stack-name": "stack",
			"custom:aws:something":          "x",
			"team":                          "platform",
		}, nil
	}

	e := NewTagEnricher(store, testLimiter(), NewRunMetrics(), fastTagConfig(), nil)

	enriched, err := enrichOne(t, e, group("/aws/lambda/a", 1))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "platform"}, enriched.Tags)
}

func TestTagEnricher_Run_RetriesThrottlingThenSucceeds(t *testing.T) {
	store := &mockStore{}
	calls := 0
	store.tagsFn = func(arn string) (map[string]string, error) {
		calls++
		if calls <= 2 {
			return nil, &logstore.StoreError{Op: "ListTags", Err: logstore.ErrThrottled}
		}
		return map[string]string{"team": "platform"}, nil
	}

	metrics := NewRunMetrics()
	e := NewTagEnricher(store, testLimiter(), metrics, fastTagConfig(), nil)

	enriched, err := enrichOne(t, e, group("/aws/lambda/a", 1))
	require.NoError(t, err)
	assert.Equal(t, "platform", enriched.Tags["team"])
	assert.Equal(t, int64(2), metrics.Retries())
	assert.Equal(t, 3, store.tagsCalls)
}

func TestTagEnricher_Run_ThrottlingRetryBudgetExhausted(t *testing.T) {
	store := &mockStore{}
	store.tagsFn = func(arn string) (map[string]string, error) {
		return nil, &logstore.StoreError{Op: "ListTags", Err: logstore.ErrThrottled}
	}

	metrics := NewRunMetrics()
	e := NewTagEnricher(store, testLimiter(), metrics, fastTagConfig(), nil)

	_, err := enrichOne(t, e, group("/aws/lambda/a", 1))
	assert.ErrorIs(t, err, ErrTagRetriesExceeded)
	assert.Equal(t, 3, store.tagsCalls, "the default budget is three attempts")
	assert.Contains(t, metrics.Failures(), CategoryTagEnrichment)
}

func TestTagEnricher_Run_HardErrorTripsCircuit(t *testing.T) {
	store := &mockStore{}
	boom := errors.New("access denied")
	store.tagsFn = func(arn string) (map[string]string, error) {
		return nil, boom
	}

	e := NewTagEnricher(store, testLimiter(), NewRunMetrics(), fastTagConfig(), nil)

	_, err := enrichOne(t, e, group("/aws/lambda/a", 1))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.tagsCalls, "a hard error must not be retried")

	// One hard failure opens the circuit immediately.
	_, err = enrichOne(t, e, group("/aws/lambda/b", 2))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, store.tagsCalls)
}

func TestTagEnricher_Run_CircuitClosesAfterResetTimeout(t *testing.T) {
	store := &mockStore{}
	boom := errors.New("access denied")
	failing := true
	store.tagsFn = func(arn string) (map[string]string, error) {
		if failing {
			return nil, boom
		}
		return map[string]string{"team": "platform"}, nil
	}

	e := NewTagEnricher(store, testLimiter(), NewRunMetrics(), fastTagConfig(), nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	_, err := enrichOne(t, e, group("/aws/lambda/a", 1))
	require.ErrorIs(t, err, boom)

	failing = false
	now = now.Add(61 * time.Second)

	enriched, err := enrichOne(t, e, group("/aws/lambda/b", 2))
	require.NoError(t, err)
	assert.Equal(t, "platform", enriched.Tags["team"])
}

func TestTagEnricher_Run_PreservesOrder(t *testing.T) {
	store := &mockStore{}
	store.tagsFn = func(arn string) (map[string]string, error) {
		return map[string]string{"arn": arn}, nil
	}

	e := NewTagEnricher(store, testLimiter(), NewRunMetrics(), fastTagConfig(), nil)

	in := make(chan logstore.LogGroup, 3)
	out := make(chan logstore.LogGroup, 3)
	in <- group("/one", 1)
	in <- group("/two", 2)
	in <- group("/three", 3)
	close(in)

	require.NoError(t, e.Run(context.Background(), in, out))
	close(out)

	var names []string
	for g := range out {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"/one", "/two", "/three"}, names)
}
