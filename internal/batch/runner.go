package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Runner fires the processor on a fixed interval or, when a cron
// expression is configured, once per matching minute. It keeps
// draining non-empty batches back to back so a backlog clears without
// waiting out the interval.
type Runner struct {
	processor *Processor
	interval  time.Duration
	schedule  string // cron expression, overrides interval when set
	logger    *slog.Logger
	done      chan struct{}
}

func NewRunner(processor *Processor, interval time.Duration, schedule string, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{
		processor: processor,
		interval:  interval,
		schedule:  schedule,
		logger:    logger.With("component", "batch_runner"),
		done:      make(chan struct{}),
	}
}

// Start runs until ctx is cancelled. The in-flight batch finishes
// before Start returns; callers wait on Done after cancelling.
func (r *Runner) Start(ctx context.Context) {
	defer close(r.done)

	if r.schedule != "" {
		if !gronx.New().IsValid(r.schedule) {
			r.logger.Error("invalid cron schedule, falling back to interval", "schedule", r.schedule)
			r.schedule = ""
		} else {
			r.logger.Info("batch runner started", "schedule", r.schedule)
			r.runCron(ctx)
			return
		}
	}

	r.logger.Info("batch runner started", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Runner) runCron(ctx context.Context) {
	gron := gronx.New()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := gron.IsDue(r.schedule)
			if err != nil || !due {
				continue
			}
			r.drain(ctx)
		}
	}
}

// drain processes batches until the queue comes back empty.
func (r *Runner) drain(ctx context.Context) {
	for {
		n, err := r.processor.ProcessBatch(ctx)
		if err != nil {
			r.logger.Error("batch failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Done is closed once Start has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
