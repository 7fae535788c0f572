// Package retry runs venue calls with bounded exponential backoff.
//
// Only errors classified as transient (see errors.IsTransient) are retried.
// Everything else, including not-found and rejection errors, is returned to
// the caller on the first attempt so the order state machine can interpret it.
package retry

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"go.uber.org/zap"
)

// Policy bounds a retry loop.
type Policy struct {
	// Tries is the total number of attempts, including the first one.
	Tries int `json:"tries" yaml:"tries" jsonschema:"title=Tries,description=Total attempts per venue call,default=3" validate:"gte=1"`
	// MinBackoff is the sleep after the first failed attempt.
	MinBackoff time.Duration `json:"min_backoff" yaml:"min_backoff" jsonschema:"title=Min Backoff,description=Sleep after the first failure,default=1s"`
	// MaxBackoff caps the doubling sleep.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff" jsonschema:"title=Max Backoff,description=Upper bound of the sleep,default=10s"`
}

// DefaultPolicy mirrors the broker defaults: 3 tries, 1s doubling up to 10s.
func DefaultPolicy() Policy {
	return Policy{
		Tries:      3,
		MinBackoff: time.Second,
		MaxBackoff: 10 * time.Second,
	}
}

// Delay returns the sleep that follows failed attempt number attempt (1-based).
// It is min(MaxBackoff, MinBackoff * 2^(attempt-1)).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	b := &backoff.Backoff{
		Min:    p.MinBackoff,
		Max:    p.MaxBackoff,
		Factor: 2,
		Jitter: false,
	}

	return b.ForAttempt(float64(attempt - 1))
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError is returned once every attempt failed with a transient error.
// It unwraps to the last error unmodified.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return e.Operation + ": retries exhausted: " + e.Last.Error()
}

// Unwrap returns the error of the final attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Retrier executes operations under a Policy.
type Retrier struct {
	policy Policy
	sleep  Sleeper
	log    *logger.Logger
}

// NewRetrier creates a Retrier that sleeps with ContextSleep.
func NewRetrier(policy Policy, log *logger.Logger) *Retrier {
	return NewRetrierWithSleeper(policy, log, ContextSleep)
}

// NewRetrierWithSleeper creates a Retrier with a custom Sleeper.
func NewRetrierWithSleeper(policy Policy, log *logger.Logger, sleep Sleeper) *Retrier {
	if policy.Tries < 1 {
		policy.Tries = 1
	}

	return &Retrier{
		policy: policy,
		sleep:  sleep,
		log:    log,
	}
}

// Policy returns the policy in use.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do runs op until it succeeds, fails with a non-transient error, or runs out of attempts.
func Do[T any](ctx context.Context, r *Retrier, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !errors.IsTransient(err) {
			return zero, err
		}

		r.log.Warn("Venue call failed",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("tries", r.policy.Tries),
			zap.Error(err),
		)

		if attempt >= r.policy.Tries {
			return zero, &ExhaustedError{
				Operation: operation,
				Attempts:  attempt,
				Last:      err,
			}
		}

		if sleepErr := r.sleep(ctx, r.policy.Delay(attempt)); sleepErr != nil {
			return zero, errors.Wrap(errors.ErrCodeRetriesExhausted, operation+": interrupted while backing off", err)
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, r *Retrier, operation string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, r, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}
