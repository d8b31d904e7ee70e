package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	scanerrors "menu-scan/pkg/errors"
)

func fastPolicy(retries int) Policy {
	return Policy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}.WithMaxRetries(retries)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(2), "test", func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("attempt %d failed", calls)
	})

	assert.EqualError(t, err, "attempt 3 failed")
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unparseable", err: &scanerrors.UnparseableError{Excerpt: "oops", Reason: "not json"}},
		{name: "count mismatch", err: fmt.Errorf("batch: %w", scanerrors.ErrCountMismatch)},
		{name: "explicit", err: Permanent(errors.New("bad request"))},
		{name: "google client error", err: fmt.Errorf("annotate: %w", &googleapi.Error{Code: 403, Message: "forbidden"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), fastPolicy(5), "test", func(context.Context) (bool, error) {
				calls++
				return false, tt.err
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDoZeroRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(0), "test", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastPolicy(10), "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithMaxRetriesClampsNegative(t *testing.T) {
	assert.Equal(t, uint64(0), DefaultPolicy().WithMaxRetries(-3).MaxRetries)
	assert.Equal(t, uint64(2), DefaultPolicy().MaxRetries)
}

func TestDoRetriesGoogleRateLimit(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(1), "test", func(context.Context) (int, error) {
		calls++
		return 0, &googleapi.Error{Code: 429, Message: "slow down"}
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
