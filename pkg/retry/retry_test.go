package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)...)
}

func TestRetrier_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	err := fast(WithMaxAttempts(3), WithRetryIf(isTransient), WithOnRetry(func(attempt int, err error, _ time.Duration) {
		assert.ErrorIs(t, err, errTransient)
		retried = append(retried, attempt)
	})).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetrier_NonTransientErrorReturnedAsIs(t *testing.T) {
	calls := 0
	sentinel := errors.New("duplicate")
	err := fast(WithRetryIf(isTransient)).Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_NoPredicateMeansSingleAttempt(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestRetrier_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(2), WithRetryIf(func(error) bool { return true })).
		Do(context.Background(), func(context.Context) error {
			calls++
			return errTransient
		})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}

func TestRetrier_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast(WithRetryIf(isTransient)).Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetrier_BackoffIsCapped(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMaxDelay(25*time.Millisecond), WithJitter(0))
	assert.Equal(t, 10*time.Millisecond, r.backoff(1))
	assert.Equal(t, 20*time.Millisecond, r.backoff(2))
	assert.Equal(t, 25*time.Millisecond, r.backoff(3))
}

func TestLedgerRetrier(t *testing.T) {
	calls, hooks := 0, 0
	err := LedgerRetrier(isTransient, func(int, error, time.Duration) { hooks++ }).
		Do(context.Background(), func(context.Context) error {
			calls++
			if calls == 1 {
				return errTransient
			}
			return nil
		})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, hooks)
}
