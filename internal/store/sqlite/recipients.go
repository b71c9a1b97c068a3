package sqlite

import (
	"context"
	"database/sql"

	"github.com/rsproule/attngate/internal/store"
)

// RecipientStore implements store.RecipientStore on SQLite.
type RecipientStore struct {
	db *sql.DB
}

func NewRecipientStore(db *sql.DB) *RecipientStore {
	return &RecipientStore{db: db}
}

const recipientColumns = `conversation_id, user_id, phone_number, channel, chat_id, opted_in`

func (s *RecipientStore) ByUserID(ctx context.Context, userID string) (*store.Recipient, error) {
	return s.one(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE user_id = ?`, userID)
}

func (s *RecipientStore) ByPhone(ctx context.Context, phone string) (*store.Recipient, error) {
	return s.one(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE phone_number = ?`, phone)
}

func (s *RecipientStore) ByConversation(ctx context.Context, conversationID string) (*store.Recipient, error) {
	return s.one(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE conversation_id = ?`, conversationID)
}

func (s *RecipientStore) AllOptedIn(ctx context.Context) ([]store.Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE opted_in = 1 ORDER BY conversation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecipientRows(rows)
}

func (s *RecipientStore) SegmentMembers(ctx context.Context, segmentID string) ([]store.Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.conversation_id, r.user_id, r.phone_number, r.channel, r.chat_id, r.opted_in
		 FROM segment_members m
		 JOIN recipients r ON r.conversation_id = m.conversation_id
		 WHERE m.segment_id = ?
		 ORDER BY m.added_at`, segmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecipientRows(rows)
}

func (s *RecipientStore) one(ctx context.Context, query string, arg any) (*store.Recipient, error) {
	var r store.Recipient
	var userID, phone sql.NullString
	var optedIn int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&r.ConversationID, &userID, &phone, &r.Channel, &r.ChatID, &optedIn)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.UserID = userID.String
	r.PhoneNumber = phone.String
	r.OptedIn = optedIn != 0
	return &r, nil
}

func scanRecipientRows(rows *sql.Rows) ([]store.Recipient, error) {
	var recs []store.Recipient
	for rows.Next() {
		var r store.Recipient
		var userID, phone sql.NullString
		var optedIn int
		if err := rows.Scan(&r.ConversationID, &userID, &phone, &r.Channel, &r.ChatID, &optedIn); err != nil {
			return nil, err
		}
		r.UserID = userID.String
		r.PhoneNumber = phone.String
		r.OptedIn = optedIn != 0
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
