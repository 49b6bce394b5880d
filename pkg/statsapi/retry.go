package statsapi

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	statsRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noise_stats_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	statsRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noise_stats_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"kind"})
)

// maxBackoff caps the exponential backoff between attempts.
const maxBackoff = 10 * time.Second

// retryWithBackoff executes fn with exponential backoff for retryable
// errors. It respects context cancellation and adds jitter to avoid
// synchronized retries.
func (c *Client) retryWithBackoff(ctx context.Context, fn func() *QueryError) error {
	maxAttempts := c.config.MaxRetries
	backoff := c.config.InitialBackoff

	var lastErr *QueryError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		qerr := fn()
		if qerr == nil {
			if attempt > 1 {
				c.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = qerr

		if !shouldRetry(qerr) {
			return qerr
		}

		if attempt >= maxAttempts {
			break
		}

		statsRetriesTotal.WithLabelValues(string(qerr.Kind)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		c.logger.Debug().
			Str("kind", string(qerr.Kind)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			// A deadline during backoff is a timeout the UI may retry,
			// not a supersession to be swallowed.
			kind := ErrorKindCancelled
			if ctx.Err() == context.DeadlineExceeded {
				kind = ErrorKindNetwork
			}
			return &QueryError{
				Kind:    kind,
				Message: "aborted during retry backoff",
				Err:     ctx.Err(),
			}
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * 2)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	statsRetryExhaustedTotal.WithLabelValues(string(lastErr.Kind)).Inc()
	c.logger.Warn().
		Str("kind", string(lastErr.Kind)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return &QueryError{
		Kind:       lastErr.Kind,
		StatusCode: lastErr.StatusCode,
		Message:    fmt.Sprintf("%v after %d attempts", ErrRetryExhausted, maxAttempts),
		Err:        lastErr,
	}
}
