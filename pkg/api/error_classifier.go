package api

import (
	"context"
	"errors"
	"net/http"
)

// ErrorSeverity tells callers whether a provider error is worth retrying.
type ErrorSeverity int

const (
	ErrorSeverityRetryable   ErrorSeverity = iota // transport errors, 5xx
	ErrorSeverityRateLimited                      // 429, retry after backoff
	ErrorSeverityFatal                            // auth, bad request, cancelled
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityRetryable:
		return "retryable"
	case ErrorSeverityRateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

type ErrorClassifier interface {
	ClassifyError(err error) ErrorSeverity
	IsRetryable(err error) bool
}

// ProviderErrorClassifier classifies the typed errors returned by the
// provider clients.
type ProviderErrorClassifier struct{}

func NewProviderErrorClassifier() ErrorClassifier {
	return &ProviderErrorClassifier{}
}

func (c *ProviderErrorClassifier) ClassifyError(err error) ErrorSeverity {
	if err == nil {
		return ErrorSeverityRetryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorSeverityFatal
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrQuotaExhausted) {
		return ErrorSeverityFatal
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return ErrorSeverityRateLimited
		case se.StatusCode >= 500:
			return ErrorSeverityRetryable
		default:
			return ErrorSeverityFatal
		}
	}

	var te *TransportError
	if errors.As(err, &te) {
		return ErrorSeverityRetryable
	}

	// Decode failures and anything else unknown: retrying returns the same body.
	return ErrorSeverityFatal
}

func (c *ProviderErrorClassifier) IsRetryable(err error) bool {
	return c.ClassifyError(err) != ErrorSeverityFatal
}
