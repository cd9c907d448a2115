package fetch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_retries_total",
		Help: "Total retry attempts by failure reason",
	}, []string{"reason"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_retry_exhausted_total",
		Help: "Identifiers that exhausted all retry attempts, by last failure reason",
	}, []string{"reason"})
)

// Policy is the stateless retry policy: attempt budget and backoff spacing.
// Backoff is a pure function of the attempt index so it can be tested
// without network calls.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first request.
	MaxAttempts int

	// BackoffBase is one backoff time unit. The wait after attempt i
	// (0-based) is BackoffBase * 2^i.
	BackoffBase time.Duration
}

// DefaultPolicy returns the default retry policy: 3 attempts, 1s base.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: 1 * time.Second,
	}
}

// Backoff returns the wait inserted after the given 0-based attempt index.
func (p Policy) Backoff(attempt int) time.Duration {
	return p.BackoffBase << attempt
}

// Permits gates network calls on the run-wide concurrency limiter. A permit
// is held strictly for the duration of one attempt, never across backoff.
type Permits interface {
	Acquire(ctx context.Context) error
	Release()
}

// Retrier wraps a Worker with the retry policy and permit gating. It is
// itself a Worker, so the coordinator treats retried and plain fetches alike.
type Retrier struct {
	worker  Worker
	permits Permits
	policy  Policy
	logger  zerolog.Logger
}

// NewRetrier creates a retry wrapper around worker. Zero policy fields fall
// back to the defaults.
func NewRetrier(worker Worker, permits Permits, policy Policy) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = DefaultPolicy().BackoffBase
	}

	return &Retrier{
		worker:  worker,
		permits: permits,
		policy:  policy,
		logger:  log.With().Str("component", "retrier").Logger(),
	}
}

// Fetch attempts the identifier up to the policy budget, waiting
// Backoff(attempt) between attempts except after the last. It returns the
// first success, or the last failure once the budget is spent. All failure
// reasons are retried: the remote collection intermittently serves errors
// and mislabeled content for records that succeed on a later attempt.
func (r *Retrier) Fetch(ctx context.Context, id string) Outcome {
	var last Outcome

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := r.permits.Acquire(ctx); err != nil {
			return failure(id, &FetchError{
				Reason:  ReasonTransport,
				Message: "acquire permit",
				Err:     err,
			})
		}
		out := r.worker.Fetch(ctx, id)
		r.permits.Release()

		if out.OK() {
			if attempt > 0 {
				r.logger.Debug().
					Str("identifier", id).
					Int("attempt", attempt+1).
					Msg("Fetch succeeded after retry")
			}
			return out
		}
		last = out

		if attempt == r.policy.MaxAttempts-1 {
			break
		}

		reason := string(last.Failure.Reason)
		retriesTotal.WithLabelValues(reason).Inc()
		wait := r.policy.Backoff(attempt)
		r.logger.Debug().
			Str("identifier", id).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Str("reason", reason).
			Msg("Retrying fetch after backoff")

		select {
		case <-ctx.Done():
			return failure(id, &FetchError{
				Reason:  ReasonTransport,
				Message: "backoff interrupted",
				Err:     ctx.Err(),
			})
		case <-time.After(wait):
		}
	}

	retryExhaustedTotal.WithLabelValues(string(last.Failure.Reason)).Inc()
	r.logger.Error().
		Str("identifier", id).
		Str("reason", string(last.Failure.Reason)).
		Int("attempts", r.policy.MaxAttempts).
		Msg("Fetch failed after all retries")

	return last
}
