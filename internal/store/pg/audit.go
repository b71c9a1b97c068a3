package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rsproule/attngate/internal/store"
)

// ============================================================
// Evaluations
// ============================================================

// PGEvaluationStore implements store.EvaluationStore backed by Postgres.
type PGEvaluationStore struct {
	db *sql.DB
}

func NewPGEvaluationStore(db *sql.DB) *PGEvaluationStore {
	return &PGEvaluationStore{db: db}
}

// Insert relies on the (request_id, conversation_id) primary key: a second
// insert for the same pair is skipped, which keeps batch reprocessing idempotent.
func (s *PGEvaluationStore) Insert(ctx context.Context, ev *store.Evaluation) (bool, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (request_id, conversation_id, base_value, bribe_amount, total_value, passed, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (request_id, conversation_id) DO NOTHING`,
		ev.RequestID, ev.ConversationID, ev.BaseValue, ev.BribeAmount,
		ev.TotalValue, ev.Passed, ev.Reason, ev.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PGEvaluationStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]store.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, conversation_id, base_value, bribe_amount, total_value, passed, reason, created_at
		 FROM evaluations WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evs []store.Evaluation
	for rows.Next() {
		var ev store.Evaluation
		if err := rows.Scan(
			&ev.RequestID, &ev.ConversationID, &ev.BaseValue, &ev.BribeAmount,
			&ev.TotalValue, &ev.Passed, &ev.Reason, &ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// ============================================================
// Delivery records
// ============================================================

// PGDeliveryStore implements store.DeliveryStore backed by Postgres.
type PGDeliveryStore struct {
	db *sql.DB
}

func NewPGDeliveryStore(db *sql.DB) *PGDeliveryStore {
	return &PGDeliveryStore{db: db}
}

func (s *PGDeliveryStore) Insert(ctx context.Context, rec *store.DeliveryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_records (request_id, source, conversation_id, forwarded, rejection_reason, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		rec.RequestID, rec.Source, rec.ConversationID, rec.Forwarded, rec.RejectionReason, rec.CreatedAt,
	)
	return err
}

func (s *PGDeliveryStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]store.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, source, conversation_id, forwarded, rejection_reason, created_at
		 FROM delivery_records WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveryRows(rows)
}

func (s *PGDeliveryStore) ListBySource(ctx context.Context, source string, limit int) ([]store.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, source, conversation_id, forwarded, rejection_reason, created_at
		 FROM delivery_records WHERE source = $1 ORDER BY created_at DESC LIMIT $2`,
		source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveryRows(rows)
}

func scanDeliveryRows(rows *sql.Rows) ([]store.DeliveryRecord, error) {
	var recs []store.DeliveryRecord
	for rows.Next() {
		var rec store.DeliveryRecord
		var reason sql.NullString
		if err := rows.Scan(
			&rec.RequestID, &rec.Source, &rec.ConversationID,
			&rec.Forwarded, &reason, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if reason.Valid {
			rec.RejectionReason = reason.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
