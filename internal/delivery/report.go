package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rsproule/attngate/internal/store"
)

// RecipientReport joins one recipient's Evaluation with its
// DeliveryRecord, if any. Forwarded is nil when admission rejected the
// notification and no send was attempted.
type RecipientReport struct {
	RecipientID      string  `json:"recipientId"`
	EvaluationPassed bool    `json:"evaluationPassed"`
	BaseValue        float64 `json:"baseValue"`
	BribeAmount      float64 `json:"bribeAmount"`
	TotalValue       float64 `json:"totalValue"`
	Reason           string  `json:"reason"`
	Forwarded        *bool   `json:"forwarded,omitempty"`
	RejectionReason  string  `json:"rejectionReason,omitempty"`
}

// ReportStats aggregates admission outcomes across recipients.
type ReportStats struct {
	Total             int     `json:"total"`
	Passed            int     `json:"passed"`
	Failed            int     `json:"failed"`
	AverageTotalValue float64 `json:"averageTotalValue"`
}

// StatusReport is the full answer to a status query for one request.
type StatusReport struct {
	Status       store.RequestStatus `json:"status"`
	Error        string              `json:"error,omitempty"`
	PerRecipient []RecipientReport   `json:"perRecipient"`
	Stats        ReportStats         `json:"stats"`
}

// Reporter builds StatusReports from the queue and audit stores.
type Reporter struct {
	queue       store.QueueStore
	evaluations store.EvaluationStore
	deliveries  store.DeliveryStore
}

func NewReporter(queue store.QueueStore, evaluations store.EvaluationStore, deliveries store.DeliveryStore) *Reporter {
	return &Reporter{queue: queue, evaluations: evaluations, deliveries: deliveries}
}

// Report returns the per-recipient breakdown for a request, or
// store.ErrNotFound when the request does not exist.
func (r *Reporter) Report(ctx context.Context, requestID uuid.UUID) (*StatusReport, error) {
	req, err := r.queue.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	evals, err := r.evaluations.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	recs, err := r.deliveries.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	byConversation := make(map[string]*store.DeliveryRecord, len(recs))
	for i := range recs {
		byConversation[recs[i].ConversationID] = &recs[i]
	}

	report := &StatusReport{
		Status:       req.Status,
		Error:        req.Error,
		PerRecipient: make([]RecipientReport, 0, len(evals)),
	}

	var totalSum float64
	for _, ev := range evals {
		rr := RecipientReport{
			RecipientID:      ev.ConversationID,
			EvaluationPassed: ev.Passed,
			BaseValue:        ev.BaseValue,
			BribeAmount:      ev.BribeAmount,
			TotalValue:       ev.TotalValue,
			Reason:           ev.Reason,
		}
		if rec, ok := byConversation[ev.ConversationID]; ok {
			forwarded := rec.Forwarded
			rr.Forwarded = &forwarded
			rr.RejectionReason = rec.RejectionReason
		}
		report.PerRecipient = append(report.PerRecipient, rr)

		report.Stats.Total++
		if ev.Passed {
			report.Stats.Passed++
		} else {
			report.Stats.Failed++
		}
		totalSum += ev.TotalValue
	}

	if report.Stats.Total > 0 {
		report.Stats.AverageTotalValue = totalSum / float64(report.Stats.Total)
	}

	return report, nil
}
