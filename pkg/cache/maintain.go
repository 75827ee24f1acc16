package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Maintain runs backend housekeeping every interval until ctx is done: expired entries are
// swept from the memory cache and badger's value log is garbage collected. Redis expires
// keys itself.
func Maintain(ctx context.Context, c Cache, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	switch c.(type) {
	case *Memory, *Badger:
	default:
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			maintainOnce(c, logger)
		}
	}
}

func maintainOnce(c Cache, logger *zap.Logger) {
	switch backend := c.(type) {
	case *Memory:
		if n := backend.Sweep(); n > 0 {
			logger.Debug("swept expired cache entries", zap.Int("removed", n))
		}
	case *Badger:
		if err := backend.RunGC(0.5); err != nil {
			logger.Warn("badger value log gc failed", zap.Error(err))
		}
	}
}
