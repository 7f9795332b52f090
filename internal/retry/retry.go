// Package retry re-runs whole units of work that failed for transient
// infrastructure reasons.
package retry

import (
	"context"
	"time"

	"vouchers/internal/config"
	"vouchers/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Policy bounds the retries of one operation.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// FromConfig builds a Policy from configuration.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     20 * cfg.InitialInterval,
	}
}

// Do runs op until it succeeds, returns a non-transient error, ctx is done
// or MaxAttempts is reached. Only errors for which repository.IsTransient
// holds are retried; business outcomes are returned as they are.
func Do(ctx context.Context, p Policy, logger zerolog.Logger, op func(ctx context.Context) error) error {
	if p.MaxAttempts <= 1 {
		return op(ctx)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		expBackoff.MaxInterval = p.MaxInterval
	}
	expBackoff.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(p.MaxAttempts-1)), ctx)

	operation := func() error {
		err := op(ctx)
		if err != nil && !repository.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("transient failure, retrying")
	}

	return backoff.RetryNotify(operation, policy, notify)
}
