package sqlite

import (
	"fmt"

	"github.com/rsproule/attngate/internal/store"
)

// NewSQLiteStores creates all stores backed by one embedded database file
// (standalone mode).
func NewSQLiteStores(path string) (*store.Stores, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	return &store.Stores{
		Queue:       NewQueueStore(db),
		Config:      NewConfigStore(db),
		Evaluations: NewEvaluationStore(db),
		Deliveries:  NewDeliveryStore(db),
		Recipients:  NewRecipientStore(db),
	}, nil
}
