// Package throttle paces calls to the transcript host and retries calls the
// host rejected with a rate-limit response.
//
// A Throttler is owned by a single caller and driven sequentially. Its only
// mutable state is the time of the last call; driving one instance from
// several goroutines breaks pacing.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pacing and retries.
var (
	throttleCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_throttle_calls_total",
		Help: "Total throttled calls by outcome",
	}, []string{"outcome"})

	throttlePacingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcript_throttle_pacing_seconds",
		Help:    "Pacing delay applied before a host call",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	throttleRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_throttle_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	throttleBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcript_throttle_backoff_seconds",
		Help:    "Backoff duration before a retry",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	throttleRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_throttle_retry_exhausted_total",
		Help: "Total number of calls that exhausted their retries",
	})
)

// ErrRetryExhausted is matched by the error returned when every retry of a
// rate-limited call failed.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// RetryError is the terminal error of a call that kept failing with a
// retryable error.
type RetryError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.Err)
}

// Unwrap exposes both ErrRetryExhausted and the last underlying error.
func (e *RetryError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Err}
}

// Throttler enforces a minimum spacing between host calls and retries
// rate-limited calls with exponential backoff.
type Throttler struct {
	config   Config
	logger   zerolog.Logger
	lastCall time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

// New creates a Throttler. Out-of-range configuration values fall back to
// their defaults with a warning.
func New(cfg Config, logger zerolog.Logger) *Throttler {
	logger = logger.With().Str("component", "throttle").Logger()

	return &Throttler{
		config: cfg.Sanitize(logger),
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
		random: rand.Float64,
	}
}

// Config returns the effective configuration.
func (t *Throttler) Config() Config {
	return t.config
}

// Run paces and invokes fn. A rate-limited failure is retried up to
// MaxRetries times; any other failure is returned immediately. Returned
// errors always carry an errclass class.
func (t *Throttler) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.config.Enabled {
		t.lastCall = t.now()
		if err := fn(ctx); err != nil {
			throttleCallsTotal.WithLabelValues("failed").Inc()
			return classify(err)
		}
		throttleCallsTotal.WithLabelValues("succeeded").Inc()
		return nil
	}

	if delay := t.pacingDelay(); delay > 0 {
		throttlePacingSeconds.Observe(delay.Seconds())
		t.logger.Debug().
			Dur("delay", delay).
			Msg("Pacing before host call")

		if err := t.sleep(ctx, delay); err != nil {
			throttleCallsTotal.WithLabelValues("cancelled").Inc()
			return errclass.Wrap(errclass.Cancelled, "pacing delay", err)
		}
	}

	for attempt := 1; ; attempt++ {
		t.lastCall = t.now()

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				t.logger.Info().
					Int("attempt", attempt).
					Msg("Host call succeeded after retry")
			}
			throttleCallsTotal.WithLabelValues("succeeded").Inc()
			return nil
		}

		err = classify(err)
		class := errclass.Classify(err)

		if !errclass.Retryable(class) {
			throttleCallsTotal.WithLabelValues("failed").Inc()
			return err
		}

		if attempt > t.config.MaxRetries {
			throttleRetryExhaustedTotal.Inc()
			throttleCallsTotal.WithLabelValues("exhausted").Inc()
			t.logger.Error().
				Err(err).
				Int("attempts", attempt).
				Msg("Retry attempts exhausted")
			return &RetryError{Attempts: attempt, Err: err}
		}

		backoff := t.backoff(attempt)
		throttleRetriesTotal.WithLabelValues(string(class)).Inc()
		throttleBackoffSeconds.Observe(backoff.Seconds())
		t.logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Int("max_retries", t.config.MaxRetries).
			Dur("backoff", backoff).
			Msg("Retrying host call after backoff")

		if err := t.sleep(ctx, backoff); err != nil {
			throttleCallsTotal.WithLabelValues("cancelled").Inc()
			return errclass.Wrap(errclass.Cancelled, "retry backoff", err)
		}
	}
}

// Do is Run for functions that produce a value.
func Do[T any](ctx context.Context, t *Throttler, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := t.Run(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// pacingDelay returns how long to wait before the next call. The first call
// of a Throttler's lifetime is never delayed.
func (t *Throttler) pacingDelay() time.Duration {
	if t.lastCall.IsZero() {
		return 0
	}

	required := t.config.MinDelay - t.now().Sub(t.lastCall)
	if required <= 0 {
		return 0
	}

	if t.config.Jitter {
		required = time.Duration(float64(required) * (0.8 + t.random()*0.4))
	}
	return required
}

// backoff returns MinDelay * BackoffMultiplier^(attempt-1).
func (t *Throttler) backoff(attempt int) time.Duration {
	factor := math.Pow(t.config.BackoffMultiplier, float64(attempt-1))
	return time.Duration(float64(t.config.MinDelay) * factor)
}

// classify attaches a class to err unless it already carries one.
func classify(err error) error {
	var classified *errclass.Error
	if errors.As(err, &classified) {
		return err
	}
	return errclass.Wrap(errclass.Classify(err), "", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
