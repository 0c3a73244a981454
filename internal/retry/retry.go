// Package retry provides a generic exponential-backoff executor for gateway
// calls and other flaky operations.
package retry

import (
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/metrics"
)

type Config struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		InitialDelay:      200 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Result carries the outcome of an attempted operation. Err is nil on
// success; Attempts counts every invocation including the final one.
type Result[T any] struct {
	Data     T
	Err      error
	Attempts int
}

func (r Result[T]) Success() bool { return r.Err == nil }

// Executor runs operations with backoff. Sleeps happen in the calling
// goroutine; there is no cancellation during backoff, loops run to
// completion or exhaustion.
type Executor struct {
	logger *zap.Logger
	sleep  func(time.Duration)
	jitter func() float64
}

type Option func(*Executor)

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithJitter replaces the jitter source, for tests.
func WithJitter(fn func() float64) Option {
	return func(e *Executor) { e.jitter = fn }
}

func NewExecutor(logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger: logger,
		sleep:  time.Sleep,
		jitter: rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes op up to cfg.MaxRetries times. Non-retryable failures
// return immediately with the attempt count so far; retryable failures sleep
// min(initial * multiplier^(attempt-1) * (1+jitter/4), max) between attempts.
// The result always carries the last error, never a panic.
func Execute[T any](e *Executor, name string, cfg Config, op func() (T, error)) Result[T] {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	var res Result[T]
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		res.Attempts = attempt
		res.Data, res.Err = op()
		if res.Err == nil {
			return res
		}

		if !errs.RetryableError(res.Err) {
			e.logger.Debug("operation failed, not retryable",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Error(res.Err),
			)
			return res
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := e.backoffDelay(cfg, attempt)
		e.logger.Warn("operation failed, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(res.Err),
		)
		metrics.RetryAttempts.Inc()
		e.sleep(delay)
	}

	e.logger.Error("operation exhausted retries",
		zap.String("operation", name),
		zap.Int("attempts", res.Attempts),
		zap.Error(res.Err),
	)
	return res
}

func (e *Executor) backoffDelay(cfg Config, attempt int) time.Duration {
	base := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	withJitter := base * (1 + e.jitter()*0.25)
	return min(time.Duration(withJitter), cfg.MaxDelay)
}
