package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rsproule/attngate/internal/store"
)

// QueueStore implements store.QueueStore on SQLite.
type QueueStore struct {
	db *sql.DB
}

func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

const queueColumns = `id, target_kind, target_id, source, bribe_amount, bribe_currency, bribe_tx_id, payload, status, error, claimed_at, processed_at, created_at`

func (s *QueueStore) Enqueue(ctx context.Context, req *store.QueuedRequest) error {
	if req.ID == uuid.Nil {
		req.ID = store.GenNewID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = store.StatusPending

	var bribeAmount any
	var bribeCurrency, bribeTxID any
	if req.Bribe != nil {
		bribeAmount = req.Bribe.Amount
		bribeCurrency = nullStr(req.Bribe.Currency)
		bribeTxID = nullStr(req.Bribe.TransactionID)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queued_requests (id, target_kind, target_id, source, bribe_amount, bribe_currency, bribe_tx_id, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID.String(), string(req.Target.Kind), req.Target.ID(), req.Source,
		bribeAmount, bribeCurrency, bribeTxID,
		[]byte(req.Payload), string(req.Status), fmtTime(req.CreatedAt),
	)
	return err
}

func (s *QueueStore) Get(ctx context.Context, id uuid.UUID) (*store.QueuedRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM queued_requests WHERE id = ?`, id.String())
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

func (s *QueueStore) List(ctx context.Context, statuses []store.RequestStatus, limit int) ([]store.QueuedRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	if len(statuses) == 0 {
		statuses = []store.RequestStatus{store.StatusPending, store.StatusProcessing, store.StatusCompleted, store.StatusFailed}
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM queued_requests
		 WHERE status IN (`+strings.Join(placeholders, ",")+`)
		 ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequestRows(rows)
}

// ClaimPending selects then updates inside one transaction. SQLite has a
// single writer, so the select-then-update pair cannot interleave with
// another claimer the way it could on Postgres.
func (s *QueueStore) ClaimPending(ctx context.Context, limit int) ([]store.QueuedRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM queued_requests WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(store.StatusPending), limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	placeholders := make([]string, len(ids))
	args := []any{string(store.StatusProcessing), fmtTime(time.Now())}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE queued_requests SET status = ?, claimed_at = ? WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...); err != nil {
		return nil, err
	}

	args = args[2:]
	claimed, err := tx.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM queued_requests
		 WHERE id IN (`+strings.Join(placeholders, ",")+`) ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	reqs, err := scanRequestRows(claimed)
	claimed.Close()
	if err != nil {
		return nil, err
	}
	return reqs, tx.Commit()
}

func (s *QueueStore) MarkCompleted(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	return s.finalize(ctx, id, store.StatusCompleted, "", processedAt)
}

func (s *QueueStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, processedAt time.Time) error {
	return s.finalize(ctx, id, store.StatusFailed, reason, processedAt)
}

func (s *QueueStore) finalize(ctx context.Context, id uuid.UUID, status store.RequestStatus, reason string, processedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queued_requests SET status = ?, error = ?, processed_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), nullStr(reason), fmtTime(processedAt), id.String(), string(store.StatusProcessing))
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
func (s *QueueStore) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queued_requests SET status = ?, claimed_at = NULL WHERE status = ? AND claimed_at < ?`,
		string(store.StatusPending), string(store.StatusProcessing),
		fmtTime(time.Now().Add(-olderThan)))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *QueueStore) CountByStatus(ctx context.Context) (map[store.RequestStatus]int, error) {
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
		var idStr, kind, targetID, status, createdAt string
		var bribeAmount sql.NullFloat64
		var bribeCurrency, bribeTxID, errMsg, claimedAt, processedAt sql.NullString
		var payload []byte
		if err := rows.Scan(
			&idStr, &kind, &targetID, &r.Source,
			&bribeAmount, &bribeCurrency, &bribeTxID,
			&payload, &status, &errMsg, &claimedAt, &processedAt, &createdAt,
		); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("bad request id %q: %w", idStr, err)
		}
		r.ID = id
		r.Target = targetFromRow(kind, targetID)
		if bribeAmount.Valid {
			r.Bribe = &store.Bribe{
				Amount:        bribeAmount.Float64,
				Currency:      bribeCurrency.String,
				TransactionID: bribeTxID.String,
			}
		}
		r.Payload = json.RawMessage(payload)
		r.Status = store.RequestStatus(status)
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		if claimedAt.Valid {
			t := parseTime(claimedAt.String)
			r.ClaimedAt = &t
		}
		if processedAt.Valid {
			t := parseTime(processedAt.String)
			r.ProcessedAt = &t
		}
		r.CreatedAt = parseTime(createdAt)
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
