package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// RetryConfig holds retry and circuit breaker settings for analyst calls
type RetryConfig struct {
	MaxRetries        int           // maximum retries per call (default: 3)
	InitialBackoff    time.Duration // first backoff delay (default: 1s)
	MaxBackoff        time.Duration // backoff ceiling (default: 30s)
	BackoffMultiplier float64       // exponential growth factor (default: 2.0)
	Timeout           time.Duration // per-attempt timeout (default: 60s)

	FailureThreshold int           // failures before the circuit opens (default: 5)
	SuccessThreshold int           // half-open successes before closing (default: 2)
	OpenTimeout      time.Duration // how long the circuit stays open (default: 30s)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           60 * time.Second,
		FailureThreshold:  5,
		SuccessThreshold:  2,
		OpenTimeout:       30 * time.Second,
	}
}

// ErrCircuitOpen is returned when the analyst circuit breaker is open
var ErrCircuitOpen = errors.New("enrichment circuit breaker is open")

// circuitState is the state of the circuit breaker
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitClosed:
		return "CLOSED"
	case circuitOpen:
		return "OPEN"
	case circuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// circuitBreaker fails fast once the analyst service is clearly down, so
// a large batch doesn't burn its whole timeout budget on a dead endpoint.
type circuitBreaker struct {
	mu sync.Mutex

	state            circuitState
	failureCount     int
	successCount     int
	lastFailure      time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

func newCircuitBreaker(cfg RetryConfig) *circuitBreaker {
	return &circuitBreaker{
		state:            circuitClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		openTimeout:      cfg.OpenTimeout,
	}
}

// allow reports whether a request may proceed
func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return nil
	case circuitOpen:
		if time.Since(cb.lastFailure) > cb.openTimeout {
			cb.state = circuitHalfOpen
			cb.successCount = 0
			slog.Info("circuit breaker probing for recovery", "state", cb.state)
			return nil
		}
		return ErrCircuitOpen
	case circuitHalfOpen:
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		cb.failureCount = 0
	case circuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = circuitClosed
			cb.failureCount = 0
			cb.successCount = 0
			slog.Info("circuit breaker closed")
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()
	switch cb.state {
	case circuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.state = circuitOpen
			slog.Warn("circuit breaker opened", "failures", cb.failureCount, "reopen_in", cb.openTimeout)
		}
	case circuitHalfOpen:
		// Any failure while probing reopens immediately.
		cb.state = circuitOpen
		cb.successCount = 0
		slog.Warn("circuit breaker reopened during probe")
	}
}

// retryWithBackoff executes fn with exponential backoff and the circuit
// breaker. Non-retriable errors (auth, bad request) return immediately
// and do not count against the circuit.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, cb *circuitBreaker, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if cb != nil {
			if err := cb.allow(); err != nil {
				return fmt.Errorf("%s: %w", operation, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if cb != nil {
				cb.recordSuccess()
			}
			if attempt > 0 {
				slog.Info("enrichment call succeeded after retries", "operation", operation, "retries", attempt)
			}
			return nil
		}
		lastErr = err

		if !isRetriable(err) {
			return fmt.Errorf("%s: %w", operation, err)
		}
		if cb != nil {
			cb.recordFailure()
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}

		slog.Debug("enrichment call failed, retrying",
			"operation", operation, "attempt", attempt+1, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxRetries+1, lastErr)
}

// isRetriable classifies transient failures. Rate limits, server errors,
// and network hiccups retry; client errors do not.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, transient := range []string{
		"429", "rate limit",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"connection refused", "connection reset", "timeout", "temporary failure",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}
