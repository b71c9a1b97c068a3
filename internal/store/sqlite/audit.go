package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rsproule/attngate/internal/store"
)

// EvaluationStore implements store.EvaluationStore on SQLite.
type EvaluationStore struct {
	db *sql.DB
}

func NewEvaluationStore(db *sql.DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

func (s *EvaluationStore) Insert(ctx context.Context, ev *store.Evaluation) (bool, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (request_id, conversation_id, base_value, bribe_amount, total_value, passed, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(request_id, conversation_id) DO NOTHING`,
		ev.RequestID.String(), ev.ConversationID, ev.BaseValue, ev.BribeAmount,
		ev.TotalValue, boolInt(ev.Passed), ev.Reason, fmtTime(ev.CreatedAt),
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

func (s *EvaluationStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]store.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, conversation_id, base_value, bribe_amount, total_value, passed, reason, created_at
		 FROM evaluations WHERE request_id = ? ORDER BY created_at`, requestID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evs []store.Evaluation
	for rows.Next() {
		var ev store.Evaluation
		var idStr, createdAt string
		var passed int
		if err := rows.Scan(
			&idStr, &ev.ConversationID, &ev.BaseValue, &ev.BribeAmount,
			&ev.TotalValue, &passed, &ev.Reason, &createdAt,
		); err != nil {
			return nil, err
		}
		ev.RequestID, _ = uuid.Parse(idStr)
		ev.Passed = passed != 0
		ev.CreatedAt = parseTime(createdAt)
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// DeliveryStore implements store.DeliveryStore on SQLite.
type DeliveryStore struct {
	db *sql.DB
}

func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

func (s *DeliveryStore) Insert(ctx context.Context, rec *store.DeliveryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_records (request_id, source, conversation_id, forwarded, rejection_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RequestID.String(), rec.Source, rec.ConversationID,
		boolInt(rec.Forwarded), nullStr(rec.RejectionReason), fmtTime(rec.CreatedAt),
	)
	return err
}

func (s *DeliveryStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]store.DeliveryRecord, error) {
	return s.list(ctx,
		`SELECT request_id, source, conversation_id, forwarded, rejection_reason, created_at
		 FROM delivery_records WHERE request_id = ? ORDER BY created_at`, requestID.String())
}

func (s *DeliveryStore) ListBySource(ctx context.Context, source string, limit int) ([]store.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx,
		`SELECT request_id, source, conversation_id, forwarded, rejection_reason, created_at
		 FROM delivery_records WHERE source = ? ORDER BY created_at DESC LIMIT ?`, source, limit)
}

func (s *DeliveryStore) list(ctx context.Context, query string, args ...any) ([]store.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []store.DeliveryRecord
	for rows.Next() {
		var rec store.DeliveryRecord
		var idStr, createdAt string
		var forwarded int
		var reason sql.NullString
		if err := rows.Scan(&idStr, &rec.Source, &rec.ConversationID, &forwarded, &reason, &createdAt); err != nil {
			return nil, err
		}
		rec.RequestID, _ = uuid.Parse(idStr)
		rec.Forwarded = forwarded != 0
		rec.RejectionReason = reason.String
		rec.CreatedAt = parseTime(createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
