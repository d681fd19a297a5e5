// Package worker contains the background session sweeper.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper is the interface the sweeper needs from the auth service
type SessionSweeper interface {
	SweepSessions(ctx context.Context) (int64, error)
}

// Sweeper periodically deletes expired and revoked session rows
type Sweeper struct {
	auth     SessionSweeper
	interval time.Duration
}

// NewSweeper creates a sweeper that runs every interval
func NewSweeper(auth SessionSweeper, interval time.Duration) *Sweeper {
	return &Sweeper{auth: auth, interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
// Sweep failures are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("session sweeper started", slog.Duration("interval", s.interval))

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.auth.SweepSessions(ctx)
	if err != nil {
		slog.Error("session sweep failed", slog.Any("error", err))
		return
	}
	if count > 0 {
		slog.Info("session sweep completed", slog.Int64("deleted", count))
	}
}
