// Package worker runs background maintenance. The usage store has no
// native TTL, so retention is enforced by a periodic sweep; rate-limit
// counters expire on their own in Redis.
package worker

import (
	"context"
	"log/slog"
	"time"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	store    ExpiredDeleter
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(store ExpiredDeleter, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, log: log}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteExpired(ctx)
			if err != nil {
				s.log.Warn("usage retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("usage retention sweep", "deleted", n)
			}
		}
	}
}
