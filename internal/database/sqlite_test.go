package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "nested", "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"activities", "activity_uniqueness", "analysis_tasks", "migrations"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	applied, err := NewMigrationManager(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, len(migrations))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, NewMigrationManager(db).RunMigrations(context.Background()))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestTransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := Transaction(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO activities (id) VALUES ('1')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM activities").Scan(&count))
	assert.Equal(t, 0, count)

	require.NoError(t, Transaction(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO activities (id) VALUES ('1')")
		return err
	}))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM activities").Scan(&count))
	assert.Equal(t, 1, count)
}
