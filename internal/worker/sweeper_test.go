package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDeleter struct {
	calls int64
	err   error
}

func (f *fakeDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperRuns(t *testing.T) {
	store := &fakeDeleter{}
	s := NewSweeper(store, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&store.calls) < 2 {
		select {
		case <-deadline:
			t.Fatal("Sweeper never ran twice")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sweeper did not stop on cancellation")
	}
}

func TestSweeperKeepsRunningAfterError(t *testing.T) {
	store := &fakeDeleter{err: errors.New("connection lost")}
	s := NewSweeper(store, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&store.calls) < 3 {
		select {
		case <-deadline:
			t.Fatal("Sweeper stopped after a store error")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
