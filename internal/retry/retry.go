// Package retry wraps every external-service call in the system with
// exponential backoff. Only errors the apierr package marks retryable are
// retried; anything else propagates on the first attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-insights-go/internal/apierr"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
)

// Executor retries an operation with exponentially growing delays:
// min(BaseDelay * Multiplier^attempt, MaxDelay). A rate-limit error carrying a
// server wait hint overrides the computed delay for that attempt.
type Executor struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// Timer lets tests replace the real wait; nil means real sleeps.
	Timer backoff.Timer

	log *logger.Logger
}

// New builds an executor with the standard multiplier of 2.
func New(log *logger.Logger, maxRetries uint64, baseDelay, maxDelay time.Duration) *Executor {
	return &Executor{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: 2,
		log:        log,
	}
}

// Do runs fn, retrying retryable failures up to MaxRetries times. The final
// failure is returned unchanged.
func (e *Executor) Do(ctx context.Context, name string, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.BaseDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = e.Multiplier
	exp.MaxInterval = e.MaxDelay
	exp.MaxElapsedTime = 0

	var last error
	wrapped := func() error {
		err := fn()
		last = err
		if err == nil {
			return nil
		}
		if !apierr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(&hintBackOff{
		next:     backoff.WithMaxRetries(exp, e.MaxRetries),
		maxDelay: e.MaxDelay,
		last:     &last,
	}, ctx)

	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		metrics.RetryAttempts.Inc()
		e.log.WithFields(logrus.Fields{
			"op":          name,
			"attempt":     attempt,
			"max_retries": e.MaxRetries,
			"delay":       delay.String(),
		}).WithError(err).Warn("operation failed, backing off")
	}

	return backoff.RetryNotifyWithTimer(wrapped, bo, notify, e.Timer)
}

// hintBackOff swaps the computed delay for a server-supplied retry-after hint
// when the last error carried one. The underlying backoff still advances so
// retry accounting is unaffected.
type hintBackOff struct {
	next     backoff.BackOff
	maxDelay time.Duration
	last     *error
}

func (b *hintBackOff) NextBackOff() time.Duration {
	d := b.next.NextBackOff()
	if d == backoff.Stop {
		return backoff.Stop
	}
	if hint := apierr.RetryAfterHint(*b.last); hint > 0 {
		if b.maxDelay > 0 && hint > b.maxDelay {
			hint = b.maxDelay
		}
		return hint
	}
	return d
}

func (b *hintBackOff) Reset() { b.next.Reset() }
