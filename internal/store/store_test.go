package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/model"
)

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Fatal("nil error reported as unique violation")
	}
	if isUniqueViolation(errors.New("disk I/O error")) {
		t.Error("unrelated error reported as unique violation")
	}

	database := db.NewTestDB(t)
	ctx := context.Background()

	createTestItem(t, database, model.Item{Name: "Mouse", MnemonicCode: "MOUS-001"})
	_, err := CreateItem(ctx, database, model.Item{Name: "Mouse 2", CategoryKey: "mouse", MnemonicCode: "MOUS-001"})
	if err == nil {
		t.Fatal("expected duplicate mnemonic code to fail")
	}
	if !errors.Is(err, model.ErrCodeConflict) {
		t.Errorf("expected ErrCodeConflict, got %v", err)
	}
}

func TestDBErrStorageUnavailable(t *testing.T) {
	err := dbErr(errors.New("database is locked"))
	if !errors.Is(err, model.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
	if errors.Is(err, model.ErrCodeConflict) {
		t.Errorf("unexpected ErrCodeConflict in %v", err)
	}
}
