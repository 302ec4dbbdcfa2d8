package scheduling

import (
	"context"
	"log/slog"
	"time"
)

// SessionReaper drops sessions idle for longer than maxAge and returns
// their ids.
type SessionReaper interface {
	ReapStale(ctx context.Context, maxAge time.Duration) ([]string, error)
}

// ReapAction adapts a SessionReaper into an ActionSessionReap handler.
func ReapAction(reaper SessionReaper, maxAge time.Duration, logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		reaped, err := reaper.ReapStale(ctx, maxAge)
		if len(reaped) > 0 {
			logger.Info("stale sessions reaped", "count", len(reaped), "max_age", maxAge)
		}
		return err
	}
}
