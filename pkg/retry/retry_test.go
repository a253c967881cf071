package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBusy = errors.New("busy")

func fastRetrier(attempts int) *Retrier {
	return New(WithMaxAttempts(attempts), WithInitialDelay(time.Millisecond), WithMaxDelay(time.Millisecond))
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errBusy)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsUnwrappedErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := fastRetrier(2).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errBusy)
	})
	assert.Same(t, errBusy, err)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsOnPermanentAndPlainErrors(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errBusy)
	})
	assert.Same(t, errBusy, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = fastRetrier(5).Do(context.Background(), func(context.Context) error {
		calls++
		return errBusy
	})
	assert.Same(t, errBusy, err)
	assert.Equal(t, 1, calls)
}

func TestTxRetrier_UsesPredicate(t *testing.T) {
	calls := 0
	r := TxRetrier(4, func(err error) bool { return errors.Is(err, errBusy) })
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, r.MaxAttempts())
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fastRetrier(3).Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTxRetrier_ReportsEachRetry(t *testing.T) {
	var attempts []int
	r := TxRetrier(3, func(err error) bool { return errors.Is(err, errBusy) },
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(time.Millisecond),
		WithOnRetry(func(attempt int, err error, _ time.Duration) {
			assert.ErrorIs(t, err, errBusy)
			attempts = append(attempts, attempt)
		}),
	)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts, "no callback after the final attempt")
}
