package match

import (
	"context"
	"time"

	"tabletop-service/pkg/logger"

	"go.uber.org/zap"
)

// Start launches the background staleness sweeper. It stops when ctx
// is cancelled; calling Start more than once is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		go s.runSweeper(ctx)
	})
	return nil
}

func (s *Service) runSweeper(ctx context.Context) {
	logger.Log.Info("queue sweeper started",
		zap.Duration("interval", s.cfg.SweepInterval),
		zap.Duration("staleAfter", s.cfg.StaleAfter),
	)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("queue sweeper stopped")
			return
		case <-ticker.C:
			if removed := s.evictStale(time.Now()); removed > 0 {
				logger.Log.Info("stale queue entries evicted",
					zap.Int("removed", removed),
				)
			}
		}
	}
}

// evictStale drops entries enqueued longer than StaleAfter before now.
// Abandoned clients stay matchable until swept; that window is accepted.
func (s *Service) evictStale(now time.Time) int {
	cutoff := now.Add(-s.cfg.StaleAfter)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for playerID, entry := range s.entries {
		if entry.EnqueuedAt.Before(cutoff) {
			delete(s.entries, playerID)
			removed++
		}
	}
	return removed
}
