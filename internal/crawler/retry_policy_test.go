package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fastPolicy struct {
	*ExponentialRetryPolicy
}

func (fastPolicy) Backoff(int) time.Duration { return time.Millisecond }

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3)
	assert.False(t, p.ShouldRetry(nil, 0))
	assert.True(t, p.ShouldRetry(errors.New("boom"), 0))
	assert.True(t, p.ShouldRetry(errors.New("boom"), 1))
	assert.False(t, p.ShouldRetry(errors.New("boom"), 2))
	assert.False(t, p.ShouldRetry(fmt.Errorf("fetch: %w", ErrNotFound), 0))
	assert.False(t, p.ShouldRetry(context.Canceled, 0))
}

func TestExponentialRetryPolicyBackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := Retry(context.Background(), fastPolicy{NewExponentialRetryPolicy(3)}, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := Retry(context.Background(), fastPolicy{NewExponentialRetryPolicy(3)}, func(context.Context) error {
			calls++
			return ErrNotFound
		})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, calls)
	})
}

func TestFetchErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := &FetchError{Title: "Cat", Err: ErrNotFound}
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `"Cat"`)
}
