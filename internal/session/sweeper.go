package session

import (
	"context"
	"time"

	"servicechat/internal/observability"
)

const DefaultSweepInterval = 10 * time.Minute

// StartSweeper evicts idle conversations every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if s.idleTTL <= 0 {
		observability.Logger().Info("session sweeper disabled: no idle ttl")
		return
	}
	go s.sweepLoop(ctx, interval)
}

func (s *Store) sweepLoop(ctx context.Context, interval time.Duration) {
	log := observability.WithFields("component", "session.sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if removed := s.Sweep(); removed > 0 {
				log.Info("evicted idle sessions",
					"removed", removed,
					"remaining", s.Len(),
					"duration", time.Since(start),
				)
			}
		}
	}
}
