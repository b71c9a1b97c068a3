package pg

import (
	"context"
	"database/sql"

	"github.com/rsproule/attngate/internal/store"
)

// PGRecipientStore implements store.RecipientStore backed by Postgres.
type PGRecipientStore struct {
	db *sql.DB
}

func NewPGRecipientStore(db *sql.DB) *PGRecipientStore {
	return &PGRecipientStore{db: db}
}

const recipientColumns = `conversation_id, user_id, phone_number, channel, chat_id, opted_in`

func (s *PGRecipientStore) ByUserID(ctx context.Context, userID string) (*store.Recipient, error) {
	return s.one(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE user_id = $1`, userID)
}

func (s *PGRecipientStore) ByPhone(ctx context.Context, phone string) (*store.Recipient, error) {
	return s.one(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE phone_number = $1`, phone)
}

func (s *PGRecipientStore) ByConversation(ctx context.Context, conversationID string) (*store.Recipient, error) {
	return s.one(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE conversation_id = $1`, conversationID)
}

func (s *PGRecipientStore) AllOptedIn(ctx context.Context) ([]store.Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE opted_in ORDER BY conversation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecipientRows(rows)
}

func (s *PGRecipientStore) SegmentMembers(ctx context.Context, segmentID string) ([]store.Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.conversation_id, r.user_id, r.phone_number, r.channel, r.chat_id, r.opted_in
		 FROM segment_members m
		 JOIN recipients r ON r.conversation_id = m.conversation_id
		 WHERE m.segment_id = $1
		 ORDER BY m.added_at`, segmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecipientRows(rows)
}

func (s *PGRecipientStore) one(ctx context.Context, query string, arg any) (*store.Recipient, error) {
	var r store.Recipient
	var userID, phone sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&r.ConversationID, &userID, &phone, &r.Channel, &r.ChatID, &r.OptedIn)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.UserID = userID.String
	r.PhoneNumber = phone.String
	return &r, nil
}

func scanRecipientRows(rows *sql.Rows) ([]store.Recipient, error) {
	var recs []store.Recipient
	for rows.Next() {
		var r store.Recipient
		var userID, phone sql.NullString
		if err := rows.Scan(&r.ConversationID, &userID, &phone, &r.Channel, &r.ChatID, &r.OptedIn); err != nil {
			return nil, err
		}
		r.UserID = userID.String
		r.PhoneNumber = phone.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
