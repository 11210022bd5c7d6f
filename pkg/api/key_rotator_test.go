package api

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeQuotas struct {
	mu     sync.Mutex
	quotas map[string]int
	errs   map[string]error
	calls  []string
}

func newFakeQuotas(quotas map[string]int) *fakeQuotas {
	return &fakeQuotas{quotas: quotas, errs: map[string]error{}}
}

func (p *fakeQuotas) Quota(ctx context.Context, cred Credential) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, cred.Key)
	if err, ok := p.errs[cred.Key]; ok {
		return 0, &QuotaError{Credential: cred.String(), Err: err}
	}
	return p.quotas[cred.Key], nil
}

func (p *fakeQuotas) setQuota(key string, q int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotas[key] = q
}

func (p *fakeQuotas) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func newMapCache() *mapCache { return &mapCache{data: map[string]interface{}{}} }

func (c *mapCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func TestNewKeyRotator_NoCredentials(t *testing.T) {
	_, err := NewKeyRotator(nil, newFakeQuotas(nil))
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestKeyRotator_AllExhausted(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k1": 0, "k2": 0, "k3": 0})
	rotator, err := NewKeyRotator(NewCredentials([]string{"k1", "k2", "k3"}), quotas)
	if err != nil {
		t.Fatalf("NewKeyRotator failed: %v", err)
	}

	_, err = rotator.Next(context.Background())
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("Expected ErrQuotaExhausted, got %v", err)
	}

	var ee *ExhaustedError
	if !errors.As(err, &ee) || ee.Checked != 3 {
		t.Errorf("Expected 3 credentials checked, got %+v", ee)
	}
	if quotas.callCount() != 3 {
		t.Errorf("Expected each credential checked once, got %d checks", quotas.callCount())
	}
}

func TestKeyRotator_SingleAvailableFromAnyCursor(t *testing.T) {
	keys := []string{"k1", "k2", "k3", "k4"}
	for available := range keys {
		quotas := newFakeQuotas(map[string]int{})
		for i, k := range keys {
			if i == available {
				quotas.quotas[k] = 10
			}
		}
		rotator, _ := NewKeyRotator(NewCredentials(keys), quotas)

		for start := 0; start < len(keys); start++ {
			rotator.mu.Lock()
			rotator.cursor = start
			rotator.mu.Unlock()

			cred, err := rotator.Next(context.Background())
			if err != nil {
				t.Fatalf("available=%d start=%d: unexpected error %v", available, start, err)
			}
			if cred.Index != available {
				t.Errorf("available=%d start=%d: got credential %d", available, start, cred.Index)
			}
		}
	}
}

func TestKeyRotator_CursorStaysOnWorkingKey(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k1": 0, "k2": 5, "k3": 5})
	rotator, _ := NewKeyRotator(NewCredentials([]string{"k1", "k2", "k3"}), quotas)

	for i := 0; i < 3; i++ {
		cred, err := rotator.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if cred.Key != "k2" {
			t.Errorf("Call %d: expected k2, got %s", i, cred.Key)
		}
	}
	if rotator.Cursor() != 1 {
		t.Errorf("Expected cursor 1, got %d", rotator.Cursor())
	}

	quotas.setQuota("k2", 0)
	cred, err := rotator.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if cred.Key != "k3" {
		t.Errorf("Expected rotation to k3, got %s", cred.Key)
	}
}

func TestKeyRotator_WrapsAround(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k1": 3, "k2": 0, "k3": 0})
	rotator, _ := NewKeyRotator(NewCredentials([]string{"k1", "k2", "k3"}), quotas)
	rotator.cursor = 1

	cred, err := rotator.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if cred.Key != "k1" {
		t.Errorf("Expected k1 after wrap-around, got %s", cred.Key)
	}
	if quotas.callCount() != 3 {
		t.Errorf("Expected 3 checks, got %d", quotas.callCount())
	}
}

func TestKeyRotator_QuotaFailuresSkipped(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k2": 7})
	quotas.errs["k1"] = errors.New("connection refused")
	rotator, _ := NewKeyRotator(NewCredentials([]string{"k1", "k2"}), quotas)

	cred, err := rotator.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if cred.Key != "k2" {
		t.Errorf("Expected k2, got %s", cred.Key)
	}
}

func TestKeyRotator_QuotaFailuresReported(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k2": 0})
	quotas.errs["k1"] = errors.New("connection refused")
	rotator, _ := NewKeyRotator(NewCredentials([]string{"k1", "k2"}), quotas)

	_, err := rotator.Next(context.Background())
	var ee *ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected ExhaustedError, got %v", err)
	}
	if ee.QuotaFailures != 1 {
		t.Errorf("Expected 1 quota failure, got %d", ee.QuotaFailures)
	}
	var pe *QuotaError
	if !errors.As(err, &pe) {
		t.Error("Expected the quota error to be wrapped")
	}
}

func TestKeyRotator_ZeroQuotaCache(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k1": 0, "k2": 4})
	var outcomes []QuotaOutcome
	rotator, _ := NewKeyRotator(
		NewCredentials([]string{"k1", "k2"}),
		quotas,
		WithZeroQuotaCache(newMapCache()),
		WithQuotaObserver(func(o QuotaOutcome) { outcomes = append(outcomes, o) }),
	)

	if _, err := rotator.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	quotas.setQuota("k2", 0)
	if _, err := rotator.Next(context.Background()); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("Expected exhaustion, got %v", err)
	}

	// k1 was checked once and then served from the cache.
	k1Checks := 0
	for _, k := range quotas.calls {
		if k == "k1" {
			k1Checks++
		}
	}
	if k1Checks != 1 {
		t.Errorf("Expected k1 checked once, got %d", k1Checks)
	}

	expected := []QuotaOutcome{QuotaExhausted, QuotaAvailable, QuotaExhausted, QuotaCached}
	if len(outcomes) != len(expected) {
		t.Fatalf("Expected outcomes %v, got %v", expected, outcomes)
	}
	for i := range expected {
		if outcomes[i] != expected[i] {
			t.Errorf("Outcome %d: expected %s, got %s", i, expected[i], outcomes[i])
		}
	}
}

func TestKeyRotator_ContextCancelled(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k1": 5})
	rotator, _ := NewKeyRotator(NewCredentials([]string{"k1"}), quotas)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := rotator.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if quotas.callCount() != 0 {
		t.Errorf("Expected no checks, got %d", quotas.callCount())
	}
}

func TestKeyRotator_Snapshot(t *testing.T) {
	quotas := newFakeQuotas(map[string]int{"k1": 0, "k2": 9})
	rotator, _ := NewKeyRotator(NewCredentials([]string{"k1", "k2"}), quotas)
	rotator.cursor = 1

	snap := rotator.Snapshot(context.Background())
	if len(snap) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(snap))
	}
	if snap[0].Quota != 0 || snap[1].Quota != 9 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if rotator.Cursor() != 1 {
		t.Errorf("Snapshot moved the cursor to %d", rotator.Cursor())
	}
}

func TestNewCredentials_SkipsBlank(t *testing.T) {
	creds := NewCredentials([]string{"a", "", "b"})
	if len(creds) != 2 {
		t.Fatalf("Expected 2 credentials, got %d", len(creds))
	}
	if creds[1].Key != "b" || creds[1].Index != 1 {
		t.Errorf("Unexpected credential: %+v", creds[1])
	}
}
