package pg

import (
	"fmt"

	"github.com/rsproule/attngate/internal/store"
)

// NewPGStores creates all stores backed by Postgres (managed mode).
func NewPGStores(dsn string) (*store.Stores, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &store.Stores{
		Queue:       NewPGQueueStore(db),
		Config:      NewPGConfigStore(db),
		Evaluations: NewPGEvaluationStore(db),
		Deliveries:  NewPGDeliveryStore(db),
		Recipients:  NewPGRecipientStore(db),
	}, nil
}
