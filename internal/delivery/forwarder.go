// Package delivery forwards admitted notifications to their recipients
// and answers "what happened" per recipient from the audit trail.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rsproule/attngate/internal/store"
)

// Sender is the outbound channel capability. Send errors are
// channel-level failures (unreachable recipient, provider outage) and
// are recorded, not propagated.
type Sender interface {
	Send(ctx context.Context, conversationID string, req *store.QueuedRequest) error
}

// Forwarder turns a passed admission decision into an outbound send
// plus a DeliveryRecord of the outcome.
type Forwarder struct {
	sender     Sender
	deliveries store.DeliveryStore
	logger     *slog.Logger
}

func NewForwarder(sender Sender, deliveries store.DeliveryStore, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		sender:     sender,
		deliveries: deliveries,
		logger:     logger.With("component", "delivery"),
	}
}

// Forward sends req to conversationID and records the attempt. A send
// failure produces a forwarded=false record and a nil error; only a
// store fault is returned as an error.
func (f *Forwarder) Forward(ctx context.Context, req *store.QueuedRequest, conversationID string) (*store.DeliveryRecord, error) {
	rec := &store.DeliveryRecord{
		RequestID:      req.ID,
		Source:         req.Source,
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}

	if err := f.sender.Send(ctx, conversationID, req); err != nil {
		f.logger.Warn("outbound send failed",
			"request_id", req.ID, "conversation_id", conversationID, "error", err)
		rec.Forwarded = false
		rec.RejectionReason = err.Error()
	} else {
		rec.Forwarded = true
	}

	if err := f.deliveries.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("record delivery: %w", err)
	}
	return rec, nil
}
