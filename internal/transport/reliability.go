package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
	"golang.org/x/time/rate"
)

// Retry-After от бэкенда бывает огромным, дольше не ждем
const maxRetryAfter = 30 * time.Second

// Reliability цепочка Rate Limiter -> Circuit Breaker -> Retry вокруг одного вызова.
type Reliability struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	backoff  time.Duration
	timeout  time.Duration
	metrics  *Metrics
}

// NewReliability: timeout ограничивает одну попытку (10s обычные, 600s AI).
func NewReliability(name string, cfg infra.ReliabilityConfig, timeout time.Duration, m *Metrics) *Reliability {
	if m == nil {
		m = NewMetrics(nil)
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // через сколько CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > threshold
		},
		// 4xx это ошибка вызывающего, а не деградация бэкенда
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Reliability{
		name:     name,
		cb:       cb,
		limiter:  rate.NewLimiter(limit, burst),
		attempts: attempts,
		backoff:  cfg.Backoff,
		timeout:  timeout,
		metrics:  m,
	}
}

// Call выполняет fn с повторами. Возвращает число сделанных попыток.
func (w *Reliability) Call(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	attempts := 0

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.LastErrorOnly(true),
			retry.RetryIf(IsRetryable),
			retry.Delay(w.backoff),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// 429 с Retry-After: ждем ровно столько, сколько просили
				var tErr *ThrottleError
				if errors.As(err, &tErr) && tErr.RetryAfter > 0 {
					return min(tErr.RetryAfter, maxRetryAfter)
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		// 3. Retry
		return nil, r.Do(func() error {
			attempts++
			if attempts > 1 {
				w.metrics.RetryTotal.WithLabelValues(w.name).Inc()
			}
			var cancel context.CancelFunc
			tCtx := ctx
			if w.timeout > 0 {
				tCtx, cancel = context.WithTimeout(ctx, w.timeout)
				defer cancel()
			}
			return fn(tCtx)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return attempts, fmt.Errorf("%s: %w", w.name, err)
		}
		return attempts, err
	}
	return attempts, nil
}

// State текущее состояние предохранителя.
func (w *Reliability) State() gobreaker.State {
	return w.cb.State()
}
