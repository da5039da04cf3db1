package database

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blink-market/internal/config"
)

func TestOpenAndMigrate(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(sqlite.Open(dsn), config.DatabaseConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if err := AutoMigrate(db, zap.NewNop()); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	for _, table := range []string{"users", "markets", "bets", "settlements"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("expected table %s to exist", table)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("expected max open conns 1, got %d", got)
	}

	// Migrating twice is a no-op.
	if err := AutoMigrate(db, zap.NewNop()); err != nil {
		t.Fatalf("second AutoMigrate failed: %v", err)
	}
}
