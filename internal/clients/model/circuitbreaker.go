package model

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// Circuit breaker defaults.
const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = 60 * time.Second
)

// BreakerClient wraps a Client with circuit breaker protection. When the
// provider fails repeatedly, the circuit opens and subsequent calls fail
// fast without reaching the provider, preventing retry storms during
// provider outages.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerClient wraps inner with a circuit breaker using defaults.
func NewBreakerClient(inner Client) *BreakerClient {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "model-provider",
		MaxRequests: 1, // allow one probe in half-open state
		Interval:    defaultInterval,
		Timeout:     defaultOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
	return &BreakerClient{inner: inner, breaker: cb}
}

// Generate proxies through the breaker. An open circuit returns
// gobreaker.ErrOpenState, which the orchestrator maps to ModelUnavailable
// like any other provider failure.
func (b *BreakerClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return b.breaker.Execute(func() (string, error) {
		return b.inner.Generate(ctx, systemPrompt, userPrompt)
	})
}
