package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStore struct {
	mu       sync.Mutex
	counters map[string]*int64
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: make(map[string]*int64)}
}

func (f *fakeStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	c, ok := f.counters[key]
	if !ok {
		c = new(int64)
		f.counters[key] = c
	}
	f.mu.Unlock()
	return atomic.AddInt64(c, 1), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdmitUnderLimit(t *testing.T) {
	limiter := NewLimiter(newFakeStore(), testLogger())

	for i := 0; i < 60; i++ {
		if err := limiter.Admit(context.Background(), "team-a", 60); err != nil {
			t.Fatalf("Request %d unexpectedly denied: %v", i+1, err)
		}
	}
}

func TestAdmitDeniesOverLimit(t *testing.T) {
	limiter := NewLimiter(newFakeStore(), testLogger())

	for i := 0; i < 60; i++ {
		if err := limiter.Admit(context.Background(), "team-a", 60); err != nil {
			t.Fatalf("Request %d unexpectedly denied: %v", i+1, err)
		}
	}

	err := limiter.Admit(context.Background(), "team-a", 60)
	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Expected LimitExceededError on 61st request, got %v", err)
	}
	if limitErr.RetryAfter < 1 || limitErr.RetryAfter > 60 {
		t.Errorf("RetryAfter out of range: %d", limitErr.RetryAfter)
	}
}

func TestAdmitConcurrent(t *testing.T) {
	limiter := NewLimiter(newFakeStore(), testLogger())
	limit := 50
	total := 100

	var denied int64
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Admit(context.Background(), "team-a", limit); err != nil {
				atomic.AddInt64(&denied, 1)
			}
		}()
	}
	wg.Wait()

	// The test may straddle a minute boundary, splitting requests across
	// two buckets; denials can only go down, never up.
	if denied > int64(total-limit) {
		t.Errorf("Expected at most %d denials, got %d", total-limit, denied)
	}
}

func TestAdmitTeamsIsolated(t *testing.T) {
	limiter := NewLimiter(newFakeStore(), testLogger())

	for i := 0; i < 5; i++ {
		if err := limiter.Admit(context.Background(), "team-a", 5); err != nil {
			t.Fatalf("team-a request %d denied: %v", i+1, err)
		}
	}
	if err := limiter.Admit(context.Background(), "team-a", 5); err == nil {
		t.Fatal("Expected team-a to be over its limit")
	}
	if err := limiter.Admit(context.Background(), "team-b", 5); err != nil {
		t.Errorf("team-b should not share team-a's counter: %v", err)
	}
}

func TestAdmitFailsOpenOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	limiter := NewLimiter(store, testLogger())

	if err := limiter.Admit(context.Background(), "team-a", 1); err != nil {
		t.Errorf("Expected fail-open on store error, got %v", err)
	}
}
