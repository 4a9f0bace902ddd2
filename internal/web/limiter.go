package web

// limiter.go bounds how many transforms the server runs at once.
//
// Each transform holds a whole workbook in memory, so slots are a
// semaphore. When all slots are taken a request waits up to maxWait and
// then fails with ErrTooManyTransforms. WaitForDrain lets shutdown block
// until in-flight transforms finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyTransforms is returned when no slot frees up within the wait
// time. Clients should retry after a short delay.
var ErrTooManyTransforms = errors.New("too many transforms in progress, please try again later")

// DefaultMaxConcurrentTransforms is used when the configured limit is not positive.
const DefaultMaxConcurrentTransforms = 4

// DefaultMaxWaitTime is used when the configured wait is not positive.
const DefaultMaxWaitTime = 10 * time.Second

// TransformLimiter is a counting semaphore over transform requests.
type TransformLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewTransformLimiter allows at most maxConcurrent simultaneous transforms.
func NewTransformLimiter(maxConcurrent int, maxWait time.Duration) *TransformLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTransforms
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &TransformLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's wait time. The caller
// must Release a slot it acquired.
func (l *TransformLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyTransforms
	}
}

// Release frees a slot taken by Acquire.
func (l *TransformLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// ActiveCount returns the number of transforms holding a slot.
func (l *TransformLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no transform holds a slot or ctx is done.
func (l *TransformLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter, reported by /healthz.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *TransformLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
