package pg

import (
	"context"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/rsproule/attngate/internal/store"
)

var queueCols = []string{
	"id", "target_kind", "target_id", "source",
	"bribe_amount", "bribe_currency", "bribe_tx_id",
	"payload", "status", "error", "claimed_at", "processed_at", "created_at",
}

func TestClaimPendingMarksRowsProcessing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := store.GenNewID()
	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE queued_requests SET status = \$1, claimed_at = now\(\)`).
		WithArgs(string(store.StatusProcessing), string(store.StatusPending), 2).
		WillReturnRows(sqlmock.NewRows(queueCols).AddRow(
			id.String(), "user_id", "alice", "crm",
			5.0, "USD", nil,
			[]byte(`{"text":"hi"}`), "processing", nil, now, nil, now,
		))

	reqs, err := NewPGQueueStore(db).ClaimPending(context.Background(), 2)
	if err != nil {
		t.Fatalf("ClaimPending() error = %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("claimed = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Status != store.StatusProcessing {
		t.Errorf("status = %s, want processing", req.Status)
	}
	if req.Target.Kind != store.TargetUser || req.Target.UserID != "alice" {
		t.Errorf("target = %+v, want user alice", req.Target)
	}
	if req.Bribe == nil || req.Bribe.Amount != 5.0 {
		t.Errorf("bribe = %+v, want amount 5", req.Bribe)
	}
	if req.ClaimedAt == nil {
		t.Error("claimed_at not set on claimed row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestClaimPendingZeroLimitNoQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	reqs, err := NewPGQueueStore(db).ClaimPending(context.Background(), 0)
	if err != nil || reqs != nil {
		t.Errorf("ClaimPending(0) = %v, %v, want nil, nil", reqs, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkCompletedOnlyFromProcessing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := store.GenNewID()
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE queued_requests SET status = \$1`).
		WithArgs(string(store.StatusCompleted), "", now, id.String(), string(store.StatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPGQueueStore(db)
	if err := s.MarkCompleted(context.Background(), id, now); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	// A row already in a terminal state matches nothing and is reported.
	mock.ExpectExec(`UPDATE queued_requests SET status = \$1`).
		WithArgs(string(store.StatusCompleted), "", now, id.String(), string(store.StatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.MarkCompleted(context.Background(), id, now)
	if err == nil || !strings.Contains(err.Error(), "not in processing state") {
		t.Errorf("second MarkCompleted() error = %v, want not-in-processing error", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkFailedStoresReason(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	id := store.GenNewID()
	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE queued_requests SET status = \$1`).
		WithArgs(string(store.StatusFailed), "resolution failed", now, id.String(), string(store.StatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPGQueueStore(db).MarkFailed(context.Background(), id, "resolution failed", now); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestReclaimStuckCountsRequeued(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE queued_requests SET status = \$1, claimed_at = NULL\s+WHERE status = \$2 AND claimed_at < \$3`).
		WithArgs(string(store.StatusPending), string(store.StatusProcessing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewPGQueueStore(db).ReclaimStuck(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStuck() error = %v", err)
	}
	if n != 3 {
		t.Errorf("reclaimed = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
