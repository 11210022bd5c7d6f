package api

import (
	"context"
	"math"
	"time"
)

// SimpleRetry retries retryable provider errors with exponential backoff.
type SimpleRetry struct {
	maxRetries        int
	retryDelay        time.Duration
	backoffMultiplier float64
	classifier        ErrorClassifier
}

func NewSimpleRetry(maxRetries int, retryDelay time.Duration) *SimpleRetry {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &SimpleRetry{
		maxRetries:        maxRetries,
		retryDelay:        retryDelay,
		backoffMultiplier: 2.0,
		classifier:        NewProviderErrorClassifier(),
	}
}

// Execute runs fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. Rate-limited errors wait twice as long.
func (sr *SimpleRetry) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= sr.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == sr.maxRetries {
			break
		}

		severity := sr.classifier.ClassifyError(err)
		if severity == ErrorSeverityFatal {
			return err
		}

		delay := time.Duration(float64(sr.retryDelay) * math.Pow(sr.backoffMultiplier, float64(attempt)))
		if severity == ErrorSeverityRateLimited {
			delay *= 2
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
