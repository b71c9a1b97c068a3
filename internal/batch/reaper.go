package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/rsproule/attngate/internal/store"
)

// Reaper requeues requests stuck in processing after a crash. The
// evaluation store's per-recipient uniqueness makes the re-run
// idempotent, so reclaiming is always safe.
type Reaper struct {
	queue    store.QueueStore
	after    time.Duration
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

// NewReaper reclaims requests processing longer than after, checking
// every after/2. A zero after disables the reaper.
func NewReaper(queue store.QueueStore, after time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		queue:    queue,
		after:    after,
		interval: after / 2,
		logger:   logger.With("component", "reaper"),
		done:     make(chan struct{}),
	}
}

func (r *Reaper) Start(ctx context.Context) {
	defer close(r.done)

	if r.after <= 0 {
		r.logger.Info("reaper disabled")
		return
	}

	r.logger.Info("reaper started", "reclaim_after", r.after)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.queue.ReclaimStuck(ctx, r.after)
			if err != nil {
				r.logger.Error("reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Warn("reclaimed stuck requests", "count", n)
			}
		}
	}
}

func (r *Reaper) Done() <-chan struct{} {
	return r.done
}
