package session

import (
	"context"
	"time"

	"github.com/reelvault/apiserver/internal/logging"
)

// Sweeper is a Store that can purge its expired sessions.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RunSweeper calls s.Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, log logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn(ctx, "session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Debug(ctx, "expired sessions removed", "count", removed)
			}
		}
	}
}
