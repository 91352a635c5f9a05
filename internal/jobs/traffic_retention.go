package jobs

import (
	"context"
	"time"

	"vizintel/api/internal/config"
	"vizintel/api/internal/logging"
)

type trafficPruner interface {
	Prune(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// StartTrafficRetentionJob deletes old traffic counters on every tick until
// ctx is cancelled. The returned channel closes when the loop exits.
func StartTrafficRetentionJob(ctx context.Context, cfg config.Config, traffic trafficPruner, log logging.Logger) <-chan struct{} {
	done := make(chan struct{})
	if cfg.TrafficRetention <= 0 {
		log.Info(ctx, "traffic retention job disabled")
		close(done)
		return done
	}
	interval := cfg.TrafficInterval
	if interval <= 0 {
		interval = time.Hour
	}
	log = log.With("job", "traffic_retention")

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				n, err := traffic.Prune(tickCtx, time.Now().UTC(), cfg.TrafficRetention)
				cancel()
				if err != nil {
					log.Error(ctx, "traffic retention failed", "error", err)
					continue
				}
				if n > 0 {
					log.Info(ctx, "traffic retention pruned days", "deleted", n)
				}
			}
		}
	}()
	return done
}
