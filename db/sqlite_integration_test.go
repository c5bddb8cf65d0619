//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/termfx/refactory/core"
)

// Runs against a remote libSQL database named by REFACTORY_DATABASE_URL.
func TestConnectLibSQLIntegration(t *testing.T) {
	_ = godotenv.Load()

	dsn := os.Getenv("REFACTORY_DATABASE_URL")
	if dsn == "" || os.Getenv(AuthTokenEnv) == "" {
		t.Skip("REFACTORY_DATABASE_URL or " + AuthTokenEnv + " not set; skipping")
	}

	db, err := Connect(dsn, false)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, sqlDB.Ping())

	ctx := context.Background()
	store := NewJournalStore(db)
	id := "run_integration_" + time.Now().UTC().Format("20060102T150405")
	require.NoError(t, store.Begin(ctx, &core.JournalRecord{ID: id, Status: core.JournalPending, Started: time.Now().UTC()}))
	require.NoError(t, store.Finish(ctx, id, core.JournalCommitted, time.Now().UTC().Add(-48*time.Hour)))

	_, err = store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
}
