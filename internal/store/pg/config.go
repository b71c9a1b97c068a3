package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/rsproule/attngate/internal/store"
)

// PGConfigStore implements store.ConfigStore backed by Postgres.
type PGConfigStore struct {
	db *sql.DB
}

func NewPGConfigStore(db *sql.DB) *PGConfigStore {
	return &PGConfigStore{db: db}
}

func (s *PGConfigStore) GetPrioritization(ctx context.Context, conversationID string) (*store.PrioritizationConfig, error) {
	var cfg store.PrioritizationConfig
	var prompt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, minimum_notify_price, custom_value_prompt, is_enabled, updated_at
		 FROM prioritization_configs WHERE conversation_id = $1`,
		conversationID,
	).Scan(&cfg.ConversationID, &cfg.MinimumNotifyPrice, &prompt, &cfg.IsEnabled, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if prompt.Valid {
		cfg.CustomValuePrompt = prompt.String
	}
	return &cfg, nil
}

func (s *PGConfigStore) PutPrioritization(ctx context.Context, cfg *store.PrioritizationConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prioritization_configs (conversation_id, minimum_notify_price, custom_value_prompt, is_enabled, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		 ON CONFLICT (conversation_id) DO UPDATE SET
			minimum_notify_price = EXCLUDED.minimum_notify_price,
			custom_value_prompt = EXCLUDED.custom_value_prompt,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = EXCLUDED.updated_at`,
		cfg.ConversationID, cfg.MinimumNotifyPrice, cfg.CustomValuePrompt, cfg.IsEnabled, cfg.UpdatedAt,
	)
	return err
}

func (s *PGConfigStore) DeletePrioritization(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM prioritization_configs WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
