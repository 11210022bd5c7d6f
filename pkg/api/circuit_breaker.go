package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"indexcheck-go/pkg/logger"
)

const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker around search calls.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32 `mapstructure:"max_failures"`
	// Timeout is how long the circuit stays open before a half-open trial request.
	Timeout time.Duration `mapstructure:"timeout"`
	// Interval clears failure counts while closed. Zero keeps them until the circuit opens.
	Interval time.Duration `mapstructure:"interval"`
}

// BreakerSearcher fails fast when the provider keeps failing, instead of
// spending every remaining URL of a batch on retries.
type BreakerSearcher struct {
	inner   Searcher
	breaker *gobreaker.CircuitBreaker[*SearchResponse]
}

func NewBreakerSearcher(inner Searcher, cfg BreakerConfig) *BreakerSearcher {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	log := logger.GetLogger().WithField("component", "circuit_breaker")
	cb := gobreaker.NewCircuitBreaker[*SearchResponse](gobreaker.Settings{
		Name:        "search",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state change")
		},
		IsSuccessful: providerHealthy,
	})

	return &BreakerSearcher{inner: inner, breaker: cb}
}

func (b *BreakerSearcher) Search(ctx context.Context, cred Credential, req SearchRequest) (*SearchResponse, error) {
	resp, err := b.breaker.Execute(func() (*SearchResponse, error) {
		return b.inner.Search(ctx, cred, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return resp, nil
}

// State reports "closed", "half-open" or "open".
func (b *BreakerSearcher) State() string {
	return b.breaker.State().String()
}

// providerHealthy decides which errors count against the breaker. Client
// errors tied to one key (401, 403, 400) and cancellations say nothing about
// the provider's health.
func providerHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}
