package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/rsproule/attngate/internal/store"
)

func TestGetPrioritizationNoRowMeansDefault(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT conversation_id, minimum_notify_price`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id", "minimum_notify_price", "custom_value_prompt", "is_enabled", "updated_at"}))

	cfg, err := NewPGConfigStore(db).GetPrioritization(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetPrioritization() error = %v", err)
	}
	if cfg != nil {
		t.Errorf("cfg = %+v, want nil for unset conversation", cfg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetPrioritizationScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT conversation_id, minimum_notify_price`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id", "minimum_notify_price", "custom_value_prompt", "is_enabled", "updated_at"}).
			AddRow("conv-1", 2.5, nil, false, now))

	cfg, err := NewPGConfigStore(db).GetPrioritization(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetPrioritization() error = %v", err)
	}
	if cfg.MinimumNotifyPrice != 2.5 || cfg.IsEnabled || cfg.CustomValuePrompt != "" {
		t.Errorf("cfg = %+v, want price 2.5, disabled, empty prompt", cfg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPutPrioritizationUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO prioritization_configs`).
		WithArgs("conv-1", 3.0, "billing only", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPGConfigStore(db).PutPrioritization(context.Background(), &store.PrioritizationConfig{
		ConversationID:     "conv-1",
		MinimumNotifyPrice: 3.0,
		CustomValuePrompt:  "billing only",
		IsEnabled:          true,
	})
	if err != nil {
		t.Fatalf("PutPrioritization() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeletePrioritizationMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM prioritization_configs`).
		WithArgs("conv-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPGConfigStore(db).DeletePrioritization(context.Background(), "conv-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeletePrioritization() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
