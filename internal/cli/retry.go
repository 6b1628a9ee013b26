package cli

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/semmy-space/skc/internal/keychain"
)

// Retrier re-runs keychain reads and writes that failed with a transient
// backend status (locked keychain, IO, service unavailable). Other errors
// are returned on the first attempt.
type Retrier struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsed      time.Duration
	logger          *slog.Logger
}

// NewRetrier returns a Retrier allowing maxRetries extra attempts.
func NewRetrier(maxRetries uint64, logger *slog.Logger) *Retrier {
	return &Retrier{
		MaxRetries:      maxRetries,
		InitialInterval: 250 * time.Millisecond,
		MaxElapsed:      10 * time.Second,
		logger:          logger,
	}
}

// Do runs op until it succeeds, fails permanently, or retries run out.
func (r *Retrier) Do(op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.MaxElapsedTime = r.MaxElapsed

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !keychain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(b, r.MaxRetries), func(err error, wait time.Duration) {
		if r.logger != nil {
			r.logger.Debug("retrying keychain operation", "err", err, "wait", wait)
		}
	})
}

// retryValue is Do for operations that return a value.
func retryValue[T any](r *Retrier, op func() (T, error)) (T, error) {
	var v T
	err := r.Do(func() error {
		var err error
		v, err = op()
		return err
	})
	return v, err
}
