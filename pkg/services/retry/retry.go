// Package retry wraps provider calls in bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/logging"
)

var log = logging.For("retry")

// Policy bounds how often and how slowly a failing call is retried.
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy retries twice starting at half a second.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// WithMaxRetries returns a copy of p with a different retry count.
func (p Policy) WithMaxRetries(n int) Policy {
	if n < 0 {
		n = 0
	}
	p.MaxRetries = uint64(n)
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	if errors.Is(err, scanerrors.ErrUnparseable) ||
		errors.Is(err, scanerrors.ErrInvalidImage) ||
		errors.Is(err, scanerrors.ErrCountMismatch) ||
		errors.Is(err, scanerrors.ErrProviderUnavailable) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return false
		}
		return gerr.Code >= 400 && gerr.Code < 500
	}
	return false
}

// Do runs fn until it succeeds, returns a permanent error, the policy gives
// up or ctx ends. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err != nil && permanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		logging.Ctx(ctx, log).WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"wait":    wait,
			"error":   err,
		}).Warn("Provider call failed, retrying")
	}

	return backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
}
