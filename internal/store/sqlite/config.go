package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rsproule/attngate/internal/store"
)

// ConfigStore implements store.ConfigStore on SQLite.
type ConfigStore struct {
	db *sql.DB
}

func NewConfigStore(db *sql.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) GetPrioritization(ctx context.Context, conversationID string) (*store.PrioritizationConfig, error) {
	var cfg store.PrioritizationConfig
	var prompt sql.NullString
	var enabled int
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, minimum_notify_price, custom_value_prompt, is_enabled, updated_at
		 FROM prioritization_configs WHERE conversation_id = ?`,
		conversationID,
	).Scan(&cfg.ConversationID, &cfg.MinimumNotifyPrice, &prompt, &enabled, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.CustomValuePrompt = prompt.String
	cfg.IsEnabled = enabled != 0
	cfg.UpdatedAt = parseTime(updatedAt)
	return &cfg, nil
}

func (s *ConfigStore) PutPrioritization(ctx context.Context, cfg *store.PrioritizationConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prioritization_configs (conversation_id, minimum_notify_price, custom_value_prompt, is_enabled, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
			minimum_notify_price = excluded.minimum_notify_price,
			custom_value_prompt = excluded.custom_value_prompt,
			is_enabled = excluded.is_enabled,
			updated_at = excluded.updated_at`,
		cfg.ConversationID, cfg.MinimumNotifyPrice, nullStr(cfg.CustomValuePrompt),
		boolInt(cfg.IsEnabled), fmtTime(cfg.UpdatedAt),
	)
	return err
}

func (s *ConfigStore) DeletePrioritization(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM prioritization_configs WHERE conversation_id = ?`, conversationID)
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

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
