package db

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 5 * time.Second
)

// Retrier re-runs idempotent strict-mode work after timeout and network failures.
// Writes must not be wrapped.
type Retrier struct {
	state      *StateManager
	log        logrus.FieldLogger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

type RetrierOption func(*Retrier)

func WithMaxRetries(n int) RetrierOption {
	return func(r *Retrier) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBackoff sets the first delay and the cap of the exponential backoff
func WithBackoff(base, max time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.baseDelay = base
		r.maxDelay = max
	}
}

func WithRetryLogger(log logrus.FieldLogger) RetrierOption {
	return func(r *Retrier) {
		r.log = log
	}
}

func NewRetrier(state *StateManager, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		state:      state,
		log:        logrus.StandardLogger(),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backoff is the wait before retry number attempt+1: base*2^attempt capped at max, no jitter.
func (r *Retrier) Backoff(attempt uint) time.Duration {
	delay := r.baseDelay
	for i := uint(0); i < attempt; i++ {
		delay *= 2
		if delay >= r.maxDelay {
			return r.maxDelay
		}
	}
	if delay > r.maxDelay {
		return r.maxDelay
	}
	return delay
}

// Do invokes work at most maxRetries+1 times. Only errors matched by IsRetryable are
// retried; the last error is returned exactly as work produced it.
func (r *Retrier) Do(ctx context.Context, work func(ctx context.Context) error) error {
	attempts := uint(r.maxRetries + 1)
	return retry.Do(
		func() error {
			return work(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return r.Backoff(n)
		}),
		retry.OnRetry(func(n uint, err error) {
			if n+1 >= attempts {
				return
			}
			retriesCounter.Inc()
			r.state.Reset()
			r.log.WithFields(logrus.Fields{
				"attempt": n + 1,
				"delay":   r.Backoff(n),
			}).WithError(err).Info("retrying after transient database failure")
		}),
	)
}

// WithRetry is Do for work that produces a value
func WithRetry[T any](ctx context.Context, r *Retrier, work func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := work(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
