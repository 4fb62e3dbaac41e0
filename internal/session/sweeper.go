package session

import (
	"context"
	"time"

	"github.com/Skotchmaster/stockflow/internal/logging"
	"github.com/Skotchmaster/stockflow/internal/metrics"
)

type Sweeper struct {
	Store    *Store
	Interval time.Duration
	Metrics  *metrics.Metrics
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	l := logging.FromContext(ctx).With("svc", "session.sweeper")
	interval := w.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := w.Store.Sweep(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.Error("sweep_failed", "error", err)
		} else {
			w.Metrics.Swept(n)
			if n > 0 {
				l.Info("sweep_done", "deleted", n)
			}
		}

		select {
		case <-ctx.Done():
			l.Info("sweeper_stopped")
			return
		case <-ticker.C:
		}
	}
}
