package api

import (
	"context"
	"sync"

	"indexcheck-go/pkg/logger"
)

// QuotaOutcome labels one quota check made by the rotator.
type QuotaOutcome string

const (
	QuotaAvailable QuotaOutcome = "available"
	QuotaExhausted QuotaOutcome = "exhausted"
	QuotaFailed    QuotaOutcome = "failed"
	QuotaCached    QuotaOutcome = "cached_exhausted"
)

// QuotaCache remembers credentials that reported zero quota.
// storage.MemoryCache satisfies it.
type QuotaCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}) error
}

// CredentialQuota is one row of a quota snapshot.
type CredentialQuota struct {
	Credential Credential
	Quota      int
	Err        error
}

type RotatorOption func(*KeyRotator)

// WithZeroQuotaCache skips credentials that recently reported zero quota
// instead of probing them again on every call.
func WithZeroQuotaCache(cache QuotaCache) RotatorOption {
	return func(r *KeyRotator) { r.zeroCache = cache }
}

// WithQuotaObserver is called once per credential considered by Next.
func WithQuotaObserver(fn func(QuotaOutcome)) RotatorOption {
	return func(r *KeyRotator) { r.observe = fn }
}

// KeyRotator hands out the next credential with remaining quota. The cursor
// stays on the last credential returned, so consecutive calls keep using a
// key until it runs dry. Safe for concurrent batches.
type KeyRotator struct {
	mu          sync.Mutex
	credentials []Credential
	cursor      int
	quotas      QuotaSource
	zeroCache   QuotaCache
	observe     func(QuotaOutcome)
	log         *logger.Logger
}

func NewKeyRotator(credentials []Credential, quotas QuotaSource, opts ...RotatorOption) (*KeyRotator, error) {
	if len(credentials) == 0 {
		return nil, ErrNoCredentials
	}
	r := &KeyRotator{
		credentials: append([]Credential(nil), credentials...),
		quotas:      quotas,
		observe:     func(QuotaOutcome) {},
		log:         logger.GetLogger().WithField("component", "key_rotator"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Next returns a credential with quota left. Starting at the cursor it checks
// each credential at most once, in round-robin order. When none has quota it
// returns *ExhaustedError, which matches ErrQuotaExhausted.
func (r *KeyRotator) Next(ctx context.Context) (Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exhausted := &ExhaustedError{}
	for i := 0; i < len(r.credentials); i++ {
		if err := ctx.Err(); err != nil {
			return Credential{}, err
		}

		cred := r.credentials[r.cursor]
		exhausted.Checked++

		if r.isCachedExhausted(cred) {
			r.observe(QuotaCached)
			r.advance()
			continue
		}

		quota, err := r.quotas.Quota(ctx, cred)
		switch {
		case err != nil:
			r.observe(QuotaFailed)
			exhausted.QuotaFailures++
			exhausted.LastQuotaErr = err
			r.log.WithFields(map[string]interface{}{
				"credential": cred.String(),
				"error":      logger.MaskLogMessage(err.Error()),
			}).Warn("Quota check failed, skipping credential")
		case quota > 0:
			r.observe(QuotaAvailable)
			r.log.WithFields(map[string]interface{}{
				"credential": cred.String(),
				"quota":      quota,
			}).Debug("Selected credential")
			return cred, nil
		default:
			r.observe(QuotaExhausted)
			r.markExhausted(cred)
			r.log.WithField("credential", cred.String()).Info("Credential has no quota left")
		}
		r.advance()
	}

	r.log.WithFields(map[string]interface{}{
		"checked":        exhausted.Checked,
		"quota_failures": exhausted.QuotaFailures,
	}).Warn("No credential with remaining quota")
	return Credential{}, exhausted
}

// Snapshot checks every credential without moving the cursor.
func (r *KeyRotator) Snapshot(ctx context.Context) []CredentialQuota {
	r.mu.Lock()
	creds := append([]Credential(nil), r.credentials...)
	r.mu.Unlock()

	out := make([]CredentialQuota, 0, len(creds))
	for _, cred := range creds {
		quota, err := r.quotas.Quota(ctx, cred)
		if err == nil && quota == 0 {
			r.mu.Lock()
			r.markExhausted(cred)
			r.mu.Unlock()
		}
		out = append(out, CredentialQuota{Credential: cred, Quota: quota, Err: err})
	}
	return out
}

// Cursor returns the index the next call starts from.
func (r *KeyRotator) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Len returns the number of configured credentials.
func (r *KeyRotator) Len() int {
	return len(r.credentials)
}

func (r *KeyRotator) advance() {
	r.cursor = (r.cursor + 1) % len(r.credentials)
}

func (r *KeyRotator) isCachedExhausted(cred Credential) bool {
	if r.zeroCache == nil {
		return false
	}
	_, ok := r.zeroCache.Get(cred.Fingerprint())
	return ok
}

func (r *KeyRotator) markExhausted(cred Credential) {
	if r.zeroCache == nil {
		return
	}
	if err := r.zeroCache.Set(cred.Fingerprint(), true); err != nil {
		r.log.WithError(err).Debug("Failed to cache exhausted credential")
	}
}
