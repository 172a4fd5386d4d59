package migration

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationRunner_Run(t *testing.T) {
	ctx := context.Background()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	runner := NewRunner()
	assert.Equal(t, "1.0.0", runner.Version())
	require.NoError(t, runner.Run(ctx, db))
	require.NoError(t, runner.Run(ctx, db), "second run must be a no-op")

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Equal(t, []string{"analysis_runs", "apportioned_cells", "biomass_rows"}, tables)

	var indexes int
	require.NoError(t, db.GetContext(ctx, &indexes,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'`))
	assert.Equal(t, 3, indexes)
}

func TestMigrationRunner_ClosedDatabase(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.Close()

	err = NewRunner().Run(context.Background(), db)
	assert.Error(t, err)
}

var _ Migrator = (*MigrationRunner)(nil)
