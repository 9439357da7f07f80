package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is implemented by stores that do not expire keys on their own.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RunSweeper periodically removes expired counters until ctx is cancelled.
// It returns immediately if store does not implement Sweeper.
func RunSweeper(ctx context.Context, store Store, interval time.Duration, logger *slog.Logger) {
	sw, ok := store.(Sweeper)
	if !ok {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sw.Sweep(ctx)
			if err != nil {
				logger.Warn("rate counter sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("swept expired rate counters", "removed", n)
			}
		}
	}
}
