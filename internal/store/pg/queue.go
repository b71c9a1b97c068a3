package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rsproule/attngate/internal/store"
)

// PGQueueStore implements store.QueueStore backed by Postgres.
type PGQueueStore struct {
	db *sql.DB
}

func NewPGQueueStore(db *sql.DB) *PGQueueStore {
	return &PGQueueStore{db: db}
}

const queueColumns = `id, target_kind, target_id, source, bribe_amount, bribe_currency, bribe_tx_id, payload, status, error, claimed_at, processed_at, created_at`

func (s *PGQueueStore) Enqueue(ctx context.Context, req *store.QueuedRequest) error {
	if req.ID == uuid.Nil {
		req.ID = store.GenNewID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = store.StatusPending

	var bribeAmount sql.NullFloat64
	var bribeCurrency, bribeTxID sql.NullString
	if req.Bribe != nil {
		bribeAmount = sql.NullFloat64{Float64: req.Bribe.Amount, Valid: true}
		bribeCurrency = sql.NullString{String: req.Bribe.Currency, Valid: req.Bribe.Currency != ""}
		bribeTxID = sql.NullString{String: req.Bribe.TransactionID, Valid: req.Bribe.TransactionID != ""}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queued_requests (id, target_kind, target_id, source, bribe_amount, bribe_currency, bribe_tx_id, payload, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.Target.Kind, req.Target.ID(), req.Source,
		bribeAmount, bribeCurrency, bribeTxID,
		[]byte(req.Payload), req.Status, req.CreatedAt,
	)
	return err
}

func (s *PGQueueStore) Get(ctx context.Context, id uuid.UUID) (*store.QueuedRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM queued_requests WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs, err := scanRequestRows(rows)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, store.ErrNotFound
	}
	return &reqs[0], nil
}

func (s *PGQueueStore) List(ctx context.Context, statuses []store.RequestStatus, limit int) ([]store.QueuedRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	if len(statuses) == 0 {
		statuses = []store.RequestStatus{store.StatusPending, store.StatusProcessing, store.StatusCompleted, store.StatusFailed}
	}
	ss := make([]string, len(statuses))
	for i, st := range statuses {
		ss[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM queued_requests
		 WHERE status = ANY($1)
		 ORDER BY created_at DESC LIMIT $2`,
		pq.Array(ss), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequestRows(rows)
}

// ClaimPending uses SKIP LOCKED so concurrent batch runs never claim the
// same rows twice.
func (s *PGQueueStore) ClaimPending(ctx context.Context, limit int) ([]store.QueuedRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`UPDATE queued_requests SET status = $1, claimed_at = now()
		 WHERE id IN (
			SELECT id FROM queued_requests
			WHERE status = $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+queueColumns,
		store.StatusProcessing, store.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequestRows(rows)
}

func (s *PGQueueStore) MarkCompleted(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	return s.finalize(ctx, id, store.StatusCompleted, "", processedAt)
}

func (s *PGQueueStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, processedAt time.Time) error {
	return s.finalize(ctx, id, store.StatusFailed, reason, processedAt)
}

// finalize only moves rows out of processing; terminal rows stay immutable.
func (s *PGQueueStore) finalize(ctx context.Context, id uuid.UUID, status store.RequestStatus, reason string, processedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queued_requests SET status = $1, error = NULLIF($2, ''), processed_at = $3
		 WHERE id = $4 AND status = $5`,
		status, reason, processedAt.UTC(), id, store.StatusProcessing)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("request %s not in processing state", id)
	}
	return nil
}

// ReclaimStuck requeues rows claimed longer than olderThan ago. Keying
// on claimed_at means a freshly claimed backlog row is never yanked
// away from a live processor.
func (s *PGQueueStore) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queued_requests SET status = $1, claimed_at = NULL
		 WHERE status = $2 AND claimed_at < $3`,
		store.StatusPending, store.StatusProcessing, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PGQueueStore) CountByStatus(ctx context.Context) (map[store.RequestStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queued_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[store.RequestStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[store.RequestStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanRequestRows(rows *sql.Rows) ([]store.QueuedRequest, error) {
	var reqs []store.QueuedRequest
	for rows.Next() {
		var r store.QueuedRequest
		var kind, targetID string
		var bribeAmount sql.NullFloat64
		var bribeCurrency, bribeTxID, errMsg sql.NullString
		var payload []byte
		var claimedAt, processedAt sql.NullTime
		if err := rows.Scan(
			&r.ID, &kind, &targetID, &r.Source,
			&bribeAmount, &bribeCurrency, &bribeTxID,
			&payload, &r.Status, &errMsg, &claimedAt, &processedAt, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Target = targetFromRow(kind, targetID)
		if bribeAmount.Valid {
			r.Bribe = &store.Bribe{
				Amount:        bribeAmount.Float64,
				Currency:      bribeCurrency.String,
				TransactionID: bribeTxID.String,
			}
		}
		r.Payload = json.RawMessage(payload)
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		if claimedAt.Valid {
			t := claimedAt.Time
			r.ClaimedAt = &t
		}
		if processedAt.Valid {
			t := processedAt.Time
			r.ProcessedAt = &t
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func targetFromRow(kind, id string) store.Target {
	t := store.Target{Kind: store.TargetKind(kind)}
	switch t.Kind {
	case store.TargetUser:
		t.UserID = id
	case store.TargetPhone:
		t.PhoneNumber = id
	case store.TargetSegment:
		t.SegmentID = id
	}
	return t
}
