package providers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/biolit-mcp/litsearch-mcp/internal/circuit"
	"github.com/biolit-mcp/litsearch-mcp/internal/ratelimit"
)

// Base bundles the cross-cutting concerns every adapter needs: the shared
// HTTP client and this provider's rate limiter and circuit breaker.
// Concrete adapters embed Base and call Base.Do for every outbound
// request, so every external call passes through the shared rate limiter
// and the circuit breaker. Base enforces no separate minimum
// inter-request interval.
type Base struct {
	ProviderKey string
	HTTPClient  *http.Client
	Limiter     *ratelimit.Registry
	Breaker     *circuit.Registry
	MaxRetries  int
}

func (b *Base) Key() string { return b.ProviderKey }

// Do runs op (a single outbound call) under the rate limiter and circuit
// breaker for this provider, retrying retryable failures up to
// b.MaxRetries times with exponential backoff. op should return a
// *Error via NewRetryable/NewPermanent/
// NewNotFound on failure so Do can tell retryable from permanent.
func (b *Base) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxRetries := b.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := b.Limiter.Acquire(ctx, b.ProviderKey); err != nil {
			return err
		}

		breaker := b.Breaker.Get(b.ProviderKey)
		if !breaker.Allow() {
			return &Error{Provider: b.ProviderKey, Category: CategoryRetryable, Err: circuitOpen(b.ProviderKey)}
		}

		err := op(ctx)
		if err == nil {
			breaker.RecordSuccess()
			return nil
		}

		if IsNotFound(err) {
			breaker.RecordSuccess()
			return err
		}

		if !IsRetryable(err) {
			breaker.RecordFailure(err)
			return err
		}

		breaker.RecordFailure(err)
		lastErr = err
		if attempt == maxRetries {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		log.Debug().Str("provider", b.ProviderKey).Int("attempt", attempt+1).Dur("wait", wait).Msg("retrying provider call")
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

type circuitOpenErr struct{ provider string }

func (e circuitOpenErr) Error() string { return "circuit breaker open for " + e.provider }

func circuitOpen(provider string) error { return circuitOpenErr{provider: provider} }

// NewRetryable wraps err as a retryable provider error.
func NewRetryable(provider string, err error) error {
	return &Error{Provider: provider, Category: CategoryRetryable, Err: err}
}

// NewPermanent wraps err as a non-retryable provider error.
func NewPermanent(provider string, err error) error {
	return &Error{Provider: provider, Category: CategoryPermanent, Err: err}
}

// NewNotFound wraps err as a not-found provider outcome (empty result).
func NewNotFound(provider string, err error) error {
	return &Error{Provider: provider, Category: CategoryNotFound, Err: err}
}

// StatusCategory maps an HTTP status code to an ErrorCategory:
// retryable (5xx, 429) / permanent (other 4xx) / not found (404).
func StatusCategory(statusCode int) ErrorCategory {
	switch {
	case statusCode == http.StatusNotFound:
		return CategoryNotFound
	case statusCode == http.StatusTooManyRequests:
		return CategoryRetryable
	case statusCode >= 500:
		return CategoryRetryable
	case statusCode >= 400:
		return CategoryPermanent
	default:
		return CategoryRetryable
	}
}
