package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically reaps abandoned guest sessions.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	maxAge   time.Duration
	log      *zap.SugaredLogger
}

func NewSweeper(manager *Manager, interval, maxAge time.Duration, log *zap.SugaredLogger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Sweeper{manager: manager, interval: interval, maxAge: maxAge, log: log}
}

// Run sweeps on every tick until the context ends. Sweep failures are logged
// and the loop keeps going; a transient DB error must not kill the reaper.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.manager.CleanupExpired(ctx, s.maxAge); err != nil {
				s.log.Warnw("expiry sweep failed", "error", err)
			}
		}
	}
}
