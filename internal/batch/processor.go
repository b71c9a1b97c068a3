// Package batch drives queued requests through resolution, admission
// and forwarding, and owns the request state machine.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rsproule/attngate/internal/admission"
	"github.com/rsproule/attngate/internal/delivery"
	"github.com/rsproule/attngate/internal/resolver"
	"github.com/rsproule/attngate/internal/store"
)

// Processor claims pending requests and runs each through the pipeline:
// resolve target, evaluate admission per recipient, forward passed
// recipients, finalize status.
type Processor struct {
	queue     store.QueueStore
	resolver  *resolver.Resolver
	evaluator *admission.Evaluator
	forwarder *delivery.Forwarder
	logger    *slog.Logger
	tracer    trace.Tracer

	mu        sync.RWMutex
	batchSize int
}

func NewProcessor(queue store.QueueStore, res *resolver.Resolver, ev *admission.Evaluator, fwd *delivery.Forwarder, batchSize int, logger *slog.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{
		queue:     queue,
		resolver:  res,
		evaluator: ev,
		forwarder: fwd,
		batchSize: batchSize,
		logger:    logger.With("component", "batch"),
		tracer:    otel.Tracer("attngate/batch"),
	}
}

// ProcessBatch claims one batch and processes every request in it.
// Returns the number of requests claimed. Per-request failures are
// finalized on the request itself and do not abort the batch.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "batch.process")
	defer span.End()

	p.mu.RLock()
	size := p.batchSize
	p.mu.RUnlock()

	reqs, err := p.queue.ClaimPending(ctx, size)
	if err != nil {
		return 0, fmt.Errorf("claim pending: %w", err)
	}
	span.SetAttributes(attribute.Int("batch.claimed", len(reqs)))
	if len(reqs) == 0 {
		return 0, nil
	}

	p.logger.Info("claimed batch", "count", len(reqs))

	for i := range reqs {
		req := &reqs[i]
		if err := p.processRequest(ctx, req); err != nil {
			// Finalization itself failed; the reaper will requeue.
			p.logger.Error("request processing failed", "request_id", req.ID, "error", err)
		}
	}

	return len(reqs), nil
}

// SetBatchSize updates the claim bound; applied on config hot reload.
func (p *Processor) SetBatchSize(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.batchSize = n
	p.mu.Unlock()
}

func (p *Processor) processRequest(ctx context.Context, req *store.QueuedRequest) error {
	ctx, span := p.tracer.Start(ctx, "batch.request",
		trace.WithAttributes(
			attribute.String("request.id", req.ID.String()),
			attribute.String("request.target_kind", string(req.Target.Kind)),
		))
	defer span.End()

	recipients, err := p.resolver.Resolve(ctx, req.Target)
	if err != nil {
		// Unknown identity is a terminal outcome for the request, not an
		// infrastructure fault. No evaluations are recorded.
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Info("target not found", "request_id", req.ID, "error", err)
			return p.queue.MarkFailed(ctx, req.ID, err.Error(), time.Now().UTC())
		}
		if ferr := p.queue.MarkFailed(ctx, req.ID, err.Error(), time.Now().UTC()); ferr != nil {
			return fmt.Errorf("resolve: %v; mark failed: %w", err, ferr)
		}
		return nil
	}

	// One goroutine per recipient; a recipient's failure never blocks
	// or fails its siblings, so the group only collects store faults.
	g, gctx := errgroup.WithContext(ctx)
	for _, conversationID := range recipients {
		g.Go(func() error {
			return p.processRecipient(gctx, req, conversationID)
		})
	}
	if err := g.Wait(); err != nil {
		if ferr := p.queue.MarkFailed(ctx, req.ID, err.Error(), time.Now().UTC()); ferr != nil {
			return fmt.Errorf("fan-out: %v; mark failed: %w", err, ferr)
		}
		return nil
	}

	return p.queue.MarkCompleted(ctx, req.ID, time.Now().UTC())
}

func (p *Processor) processRecipient(ctx context.Context, req *store.QueuedRequest, conversationID string) error {
	ev, err := p.evaluator.Evaluate(ctx, req, conversationID)
	if err != nil {
		return fmt.Errorf("evaluate recipient %s: %w", conversationID, err)
	}
	if !ev.Passed {
		return nil
	}

	if _, err := p.forwarder.Forward(ctx, req, conversationID); err != nil {
		return fmt.Errorf("forward to recipient %s: %w", conversationID, err)
	}
	return nil
}
