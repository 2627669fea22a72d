// Package util holds small helpers shared by the glidein commands.
package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// Retrier retries a function with exponential backoff until it succeeds,
// returns a permanent error, or runs out of tries.
type Retrier struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
	MaxTries        int
	// ShouldRetry reports whether err is transient. A nil ShouldRetry
	// retries every error.
	ShouldRetry func(err error) bool
	Notify      func(err error, d time.Duration)
}

// NewRetrier creates a new Retrier instance using default values.
func NewRetrier() *Retrier {
	return &Retrier{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      1.5,
		MaxElapsedTime:  30 * time.Second,
		MaxTries:        20,
	}
}

// Retry calls f until it does not return an error or the backoff stops.
// The last error from f is returned.
func (r *Retrier) Retry(ctx context.Context, f func() error) error {
	b := backoff.WithContext(r.backoff(), ctx)
	return backoff.RetryNotify(func() error {
		err := f()
		if err != nil && r.ShouldRetry != nil && !r.ShouldRetry(err) {
			return &backoff.PermanentError{Err: err}
		}
		return err
	}, b, func(err error, d time.Duration) {
		if r.Notify != nil {
			r.Notify(err, d)
		}
	})
}

func (r *Retrier) backoff() backoff.BackOff {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     r.InitialInterval,
		MaxInterval:         r.MaxInterval,
		Multiplier:          r.Multiplier,
		RandomizationFactor: 0.2,
		MaxElapsedTime:      r.MaxElapsedTime,
		Clock:               backoff.SystemClock,
	}
	eb.Reset()

	tries := r.MaxTries - 1
	if tries < 0 {
		tries = 0
	}
	return backoff.WithMaxRetries(eb, uint64(tries))
}
