package api

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExhausted matches every *ExhaustedError.
	ErrQuotaExhausted = errors.New("all API keys have exhausted their quotas")
	ErrCircuitOpen    = errors.New("search provider circuit breaker is open")
	ErrNoCredentials  = errors.New("no API credentials configured")
)

// TransportError is a network-level failure talking to a provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: provider returned status %d: %s", e.Op, e.StatusCode, body)
}

// QuotaError is a failed quota check. It is kept apart from a real zero
// quota so a transient outage does not look like an exhausted key.
type QuotaError struct {
	Credential string
	Err        error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota check failed for %s: %v", e.Credential, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// ExhaustedError means no credential had quota left. QuotaFailures counts
// credentials that were skipped because their quota check failed.
type ExhaustedError struct {
	Checked       int
	QuotaFailures int
	LastQuotaErr  error
}

func (e *ExhaustedError) Error() string {
	if e.QuotaFailures == 0 {
		return ErrQuotaExhausted.Error()
	}
	return fmt.Sprintf("%s (checked %d, quota failures %d)", ErrQuotaExhausted.Error(), e.Checked, e.QuotaFailures)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrQuotaExhausted }

func (e *ExhaustedError) Unwrap() error { return e.LastQuotaErr }

// StatusCodeOf returns the provider status carried by err, or 0.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
