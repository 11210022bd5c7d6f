package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSequentialExecutor_IntervalControl(t *testing.T) {
	executor := NewSequentialExecutor(200 * time.Millisecond)

	start := time.Now()
	var executionTimes []time.Time

	for i := 0; i < 3; i++ {
		err := executor.Execute(context.Background(), func() error {
			executionTimes = append(executionTimes, time.Now())
			return nil
		})
		if err != nil {
			t.Errorf("Execution %d failed: %v", i, err)
		}
	}

	if len(executionTimes) != 3 {
		t.Fatalf("Expected 3 executions, got %d", len(executionTimes))
	}

	if firstDelay := executionTimes[0].Sub(start); firstDelay > 100*time.Millisecond {
		t.Errorf("First execution delayed too much: %v", firstDelay)
	}

	for i := 1; i < 3; i++ {
		interval := executionTimes[i].Sub(executionTimes[i-1])
		if interval < 190*time.Millisecond {
			t.Errorf("Execution %d interval too short: %v (expected ~200ms)", i, interval)
		}
	}

	if total := time.Since(start); total < 390*time.Millisecond {
		t.Errorf("Expected at least two full intervals, took %v", total)
	}
}

func TestSequentialExecutor_NoInterval(t *testing.T) {
	executor := NewSequentialExecutor(0)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := executor.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("Execution %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Expected no pacing, took %v", elapsed)
	}
}

func TestSequentialExecutor_ErrorHandling(t *testing.T) {
	executor := NewSequentialExecutor(10 * time.Millisecond)

	testError := errors.New("test error")
	err := executor.Execute(context.Background(), func() error {
		return testError
	})

	if err != testError {
		t.Errorf("Expected test error, got %v", err)
	}
}

func TestSequentialExecutor_ContextCancellation(t *testing.T) {
	executor := NewSequentialExecutor(2 * time.Second)

	executor.Execute(context.Background(), func() error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := executor.Execute(ctx, func() error {
		called = true
		return nil
	})

	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("Function should not run after cancellation")
	}
}

func TestSequentialExecutor_CancelWhileWaiting(t *testing.T) {
	executor := NewSequentialExecutor(5 * time.Second)
	executor.Execute(context.Background(), func() error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := executor.Execute(ctx, func() error { return nil })
	if err == nil {
		t.Fatal("Expected an error when cancelled during the wait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Cancellation not honoured promptly: %v", elapsed)
	}
}

func TestSequentialExecutor_ConcurrentAccess(t *testing.T) {
	executor := NewSequentialExecutor(0)

	const numGoroutines = 5
	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			executor.Execute(context.Background(), func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("Expected strictly sequential execution, saw %d concurrent calls", maxActive)
	}
}
