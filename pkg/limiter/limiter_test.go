package limiter

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	if got := New(0).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
	if got := New(-3).Capacity(); got != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCapacity)
	}
	if got := New(7).Capacity(); got != 7 {
		t.Errorf("Capacity() = %d, want 7", got)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const capacity = 4
	const tasks = 40

	pool := New(capacity)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := pool.Acquire(ctx); err != nil {
				t.Errorf("Acquire() error: %v", err)
				return
			}
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			pool.Release()
		}()
	}
	wg.Wait()

	if peak > capacity {
		t.Errorf("Peak concurrency %d exceeded capacity %d", peak, capacity)
	}
	if peak == 0 {
		t.Error("No task ever held a permit")
	}
}

func TestPool_AcquireRespectsCancellation(t *testing.T) {
	pool := New(1)
	ctx := context.Background()

	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer pool.Release()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := pool.Acquire(waitCtx)
	if err == nil {
		pool.Release()
		t.Fatal("Expected cancellation error while pool is exhausted")
	}
	if time.Since(start) > time.Second {
		t.Error("Acquire did not return promptly on cancellation")
	}
}

func TestPool_PermitsDrain(t *testing.T) {
	pool := New(2)
	ctx := context.Background()

	// Acquire and release the full capacity twice; a leak would deadlock
	// the second round.
	for round := 0; round < 2; round++ {
		if err := pool.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error: %v", err)
		}
		if err := pool.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error: %v", err)
		}
		pool.Release()
		pool.Release()
	}
}
