package web

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTransformLimiter_AcquireRelease(t *testing.T) {
	limiter := NewTransformLimiter(2, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}
	if got := limiter.Status(); got != (LimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}) {
		t.Errorf("Status() = %+v after two acquires", got)
	}

	limiter.Release()
	if got := limiter.Status(); got.Active != 1 || got.Available != 1 {
		t.Errorf("Status() = %+v after one release", got)
	}
	limiter.Release()
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}

func TestTransformLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewTransformLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrTooManyTransforms) {
		t.Errorf("expected ErrTooManyTransforms, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("gave up after %v, want about the wait time", elapsed)
	}
}

func TestTransformLimiter_ContextCancellation(t *testing.T) {
	limiter := NewTransformLimiter(1, 5*time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- limiter.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestTransformLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	limiter := NewTransformLimiter(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			maxObserved = max(maxObserved, limiter.ActiveCount())
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("observed %d concurrent transforms, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestTransformLimiter_WaitForDrain(t *testing.T) {
	limiter := NewTransformLimiter(2, time.Second)
	limiter.Acquire(context.Background())

	done := make(chan error, 1)
	go func() { done <- limiter.WaitForDrain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForDrain returned with a transform active")
	case <-time.After(60 * time.Millisecond):
	}

	limiter.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after release")
	}
}

func TestTransformLimiter_WaitForDrainCancelled(t *testing.T) {
	limiter := NewTransformLimiter(1, time.Second)
	limiter.Acquire(context.Background())
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestTransformLimiter_Defaults(t *testing.T) {
	limiter := NewTransformLimiter(0, 0)
	if got := limiter.Status().MaxConcurrent; got != DefaultMaxConcurrentTransforms {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentTransforms)
	}
	if limiter.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", limiter.maxWait, DefaultMaxWaitTime)
	}
}
