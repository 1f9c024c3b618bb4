package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateAppliesAllMigrations(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, Migrate(db, nil))

	// All core tables exist after migration
	for _, table := range []string{
		"schema_migrations",
		"pipeline_runs",
		"pipeline_run_stages",
		"schema_contracts",
		"quarantine_batches",
		"quarantine_records",
		"observability_reports",
	} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, Migrate(db, nil))
	require.NoError(t, Migrate(db, nil))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 5, count)
}
