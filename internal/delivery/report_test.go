package delivery

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rsproule/attngate/internal/store"
	"github.com/rsproule/attngate/internal/store/memory"
)

func TestReportJoinsEvaluationsAndDeliveries(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()

	req := &store.QueuedRequest{
		ID:        store.GenNewID(),
		Target:    store.Target{Kind: store.TargetSegment, SegmentID: "team"},
		Source:    "billing",
		Payload:   json.RawMessage(`{"text":"invoice due"}`),
		CreatedAt: time.Now().UTC(),
	}
	if err := stores.Queue.Enqueue(ctx, req); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := stores.Queue.ClaimPending(ctx, 1); err != nil {
		t.Fatalf("ClaimPending() error = %v", err)
	}
	if err := stores.Queue.MarkCompleted(ctx, req.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	// Alice passed and was forwarded; Bob passed but the channel failed;
	// Carol was rejected and never attempted.
	evals := []store.Evaluation{
		{RequestID: req.ID, ConversationID: "conv-alice", BaseValue: 2, BribeAmount: 1, TotalValue: 3, Passed: true, Reason: "relevant"},
		{RequestID: req.ID, ConversationID: "conv-bob", BaseValue: 4, BribeAmount: 0, TotalValue: 4, Passed: true, Reason: "urgent"},
		{RequestID: req.ID, ConversationID: "conv-carol", BaseValue: 0.5, BribeAmount: 0, TotalValue: 0.5, Passed: false, Reason: "marketing"},
	}
	for i := range evals {
		if _, err := stores.Evaluations.Insert(ctx, &evals[i]); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	deliveries := []store.DeliveryRecord{
		{RequestID: req.ID, Source: req.Source, ConversationID: "conv-alice", Forwarded: true},
		{RequestID: req.ID, Source: req.Source, ConversationID: "conv-bob", Forwarded: false, RejectionReason: "recipient unreachable"},
	}
	for i := range deliveries {
		if err := stores.Deliveries.Insert(ctx, &deliveries[i]); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	reporter := NewReporter(stores.Queue, stores.Evaluations, stores.Deliveries)
	report, err := reporter.Report(ctx, req.ID)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	if report.Status != store.StatusCompleted {
		t.Errorf("Status = %s, want completed", report.Status)
	}
	if len(report.PerRecipient) != 3 {
		t.Fatalf("PerRecipient = %d rows, want 3", len(report.PerRecipient))
	}

	byID := make(map[string]RecipientReport)
	for _, rr := range report.PerRecipient {
		byID[rr.RecipientID] = rr
	}

	alice := byID["conv-alice"]
	if alice.Forwarded == nil || !*alice.Forwarded {
		t.Error("alice: Forwarded = nil/false, want true")
	}
	bob := byID["conv-bob"]
	if bob.Forwarded == nil || *bob.Forwarded {
		t.Error("bob: want forwarded=false record (admission passed, channel failed)")
	}
	if bob.RejectionReason != "recipient unreachable" {
		t.Errorf("bob: RejectionReason = %q", bob.RejectionReason)
	}
	carol := byID["conv-carol"]
	if carol.Forwarded != nil {
		t.Error("carol: Forwarded should be nil when no send was attempted")
	}

	if report.Stats.Total != 3 || report.Stats.Passed != 2 || report.Stats.Failed != 1 {
		t.Errorf("Stats = %+v, want total 3, passed 2, failed 1", report.Stats)
	}
	wantAvg := (3.0 + 4.0 + 0.5) / 3.0
	if math.Abs(report.Stats.AverageTotalValue-wantAvg) > 1e-9 {
		t.Errorf("AverageTotalValue = %v, want %v", report.Stats.AverageTotalValue, wantAvg)
	}
}

func TestReportUnknownRequest(t *testing.T) {
	stores := memory.NewStores()
	reporter := NewReporter(stores.Queue, stores.Evaluations, stores.Deliveries)

	_, err := reporter.Report(context.Background(), store.GenNewID())
	if err != store.ErrNotFound {
		t.Errorf("Report() error = %v, want ErrNotFound", err)
	}
}
