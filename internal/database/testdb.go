package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory sqlite database with the schema
// migrated. It is closed when the test finishes.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:obrafin_%s?mode=memory&cache=shared&_busy_timeout=5000&_foreign_keys=on", uuid.NewString())
	db, err := Connect(Options{Driver: "sqlite", URL: dsn})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
