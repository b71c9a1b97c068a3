// Package admission decides whether a notification is worth a
// recipient's attention: AI-estimated base value plus any attached
// bribe, measured against the recipient's minimum notify price.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rsproule/attngate/internal/store"
	"github.com/rsproule/attngate/internal/valuation"
)

const (
	reasonDisabled   = "prioritization disabled"
	reasonFailClosed = "evaluation failed, defaulting to reject"
)

// Evaluator runs admission control for one (request, recipient) pair.
type Evaluator struct {
	configs     store.ConfigStore
	evaluations store.EvaluationStore
	estimator   valuation.Estimator
	logger      *slog.Logger

	mu           sync.RWMutex
	defaultPrice float64
}

func NewEvaluator(configs store.ConfigStore, evaluations store.EvaluationStore, estimator valuation.Estimator, defaultPrice float64, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		configs:      configs,
		evaluations:  evaluations,
		estimator:    estimator,
		defaultPrice: defaultPrice,
		logger:       logger.With("component", "admission"),
	}
}

// Evaluate scores req for conversationID and records the outcome. The
// recipient's policy is read fresh on every call so an admin update
// between evaluations takes effect immediately. The insert is
// idempotent on (request, recipient): reprocessing a claimed batch
// after a crash records nothing twice.
func (e *Evaluator) Evaluate(ctx context.Context, req *store.QueuedRequest, conversationID string) (*store.Evaluation, error) {
	cfg, err := e.configs.GetPrioritization(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load prioritization config: %w", err)
	}

	e.mu.RLock()
	threshold := e.defaultPrice
	e.mu.RUnlock()
	customPrompt := ""
	enabled := true
	if cfg != nil {
		threshold = cfg.MinimumNotifyPrice
		customPrompt = cfg.CustomValuePrompt
		enabled = cfg.IsEnabled
	}

	ev := &store.Evaluation{
		RequestID:      req.ID,
		ConversationID: conversationID,
		BribeAmount:    req.BribeAmount(),
		CreatedAt:      time.Now().UTC(),
	}

	if !enabled {
		ev.Passed = true
		ev.Reason = reasonDisabled
		ev.TotalValue = ev.BribeAmount
		return e.record(ctx, ev)
	}

	est, err := e.estimator.Estimate(ctx, req.Payload, customPrompt)
	if err != nil {
		// Fail closed: an unpriceable notification does not get through.
		e.logger.Warn("valuation failed, rejecting",
			"request_id", req.ID, "conversation_id", conversationID, "error", err)
		ev.BaseValue = 0
		ev.TotalValue = ev.BribeAmount
		ev.Passed = false
		ev.Reason = reasonFailClosed
		return e.record(ctx, ev)
	}

	ev.BaseValue = est.Value
	ev.TotalValue = est.Value + ev.BribeAmount
	ev.Passed = ev.TotalValue >= threshold
	ev.Reason = est.Reason

	return e.record(ctx, ev)
}

// SetDefaultPrice updates the fallback threshold; applied on config
// hot reload. Stored per-conversation policies are unaffected.
func (e *Evaluator) SetDefaultPrice(price float64) {
	e.mu.Lock()
	e.defaultPrice = price
	e.mu.Unlock()
}

func (e *Evaluator) record(ctx context.Context, ev *store.Evaluation) (*store.Evaluation, error) {
	inserted, err := e.evaluations.Insert(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("record evaluation: %w", err)
	}
	if !inserted {
		e.logger.Debug("evaluation already recorded, skipping",
			"request_id", ev.RequestID, "conversation_id", ev.ConversationID)
	}
	return ev, nil
}
