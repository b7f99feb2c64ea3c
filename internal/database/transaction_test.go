package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

func transactionTestDB(t *testing.T) Database {
	t.Helper()
	ctx := context.Background()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "test.db")

	db, err := NewDatabase(ctx, url)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Session(ctx).Exec("CREATE TABLE test_items (id INTEGER PRIMARY KEY, name TEXT)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func countItems(t *testing.T, db Database) int64 {
	t.Helper()
	var count int64
	if err := db.Session(context.Background()).Raw("SELECT COUNT(*) FROM test_items").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := transactionTestDB(t)

	err := WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		return tx.Exec("INSERT INTO test_items (name) VALUES (?)", "item1").Error
	})
	if err != nil {
		t.Fatalf("WithTransaction: %v", err)
	}

	if got := countItems(t, db); got != 1 {
		t.Errorf("expected 1 row after commit, got %d", got)
	}
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := transactionTestDB(t)

	failure := errors.New("boom")
	err := WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO test_items (name) VALUES (?)", "item1").Error; err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Errorf("expected callback error, got: %v", err)
	}

	if got := countItems(t, db); got != 0 {
		t.Errorf("expected 0 rows after rollback, got %d", got)
	}
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db := transactionTestDB(t)

	func() {
		defer func() { _ = recover() }()
		_ = WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
			if err := tx.Exec("INSERT INTO test_items (name) VALUES (?)", "item1").Error; err != nil {
				return err
			}
			panic("mid-transaction failure")
		})
	}()

	if got := countItems(t, db); got != 0 {
		t.Errorf("expected 0 rows after panic, got %d", got)
	}
}
