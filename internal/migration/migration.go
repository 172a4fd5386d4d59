package migration

import (
	"context"

	"echostrata/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations. The statements stick to
// DDL that postgres and sqlite both accept.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create analysis_runs table")
	}

	if err := r.createBiomassRowsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create biomass_rows table")
	}

	if err := r.createApportionedCellsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create apportioned_cells table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id VARCHAR(36) PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			survey TEXT NOT NULL DEFAULT '',
			fingerprint VARCHAR(64) NOT NULL,
			transects TEXT NOT NULL DEFAULT '',
			species_id INTEGER NOT NULL DEFAULT 0,
			interval_count INTEGER NOT NULL DEFAULT 0,
			stratum_count INTEGER NOT NULL DEFAULT 0,
			total_biomass DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_abundance DOUBLE PRECISION NOT NULL DEFAULT 0,
			kriged_total DOUBLE PRECISION,
			apportioned_total DOUBLE PRECISION,
			consistent BOOLEAN NOT NULL DEFAULT TRUE,
			warnings TEXT NOT NULL DEFAULT '',
			imputed TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createBiomassRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS biomass_rows (
			run_id VARCHAR(36) NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			transect_num INTEGER NOT NULL,
			stratum_num INTEGER NOT NULL,
			haul_num INTEGER NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			nasc DOUBLE PRECISION NOT NULL,
			fraction_hake DOUBLE PRECISION NOT NULL,
			sigma_bs_mean DOUBLE PRECISION NOT NULL,
			adult_fraction DOUBLE PRECISION NOT NULL,
			numerical_density DOUBLE PRECISION NOT NULL,
			numerical_density_male DOUBLE PRECISION NOT NULL,
			numerical_density_female DOUBLE PRECISION NOT NULL,
			numerical_density_unsexed DOUBLE PRECISION NOT NULL,
			biomass_density DOUBLE PRECISION NOT NULL,
			biomass_density_male DOUBLE PRECISION NOT NULL,
			biomass_density_female DOUBLE PRECISION NOT NULL,
			biomass_density_unsexed DOUBLE PRECISION NOT NULL,
			biomass_density_adult DOUBLE PRECISION NOT NULL,
			interval_length DOUBLE PRECISION NOT NULL,
			transect_spacing DOUBLE PRECISION NOT NULL,
			interval_area DOUBLE PRECISION NOT NULL,
			biomass_adult DOUBLE PRECISION NOT NULL,
			abundance DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, seq)
		)
	`)
	return err
}

func (r *MigrationRunner) createApportionedCellsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS apportioned_cells (
			run_id VARCHAR(36) NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			sex INTEGER NOT NULL,
			length_bin INTEGER NOT NULL,
			age_bin INTEGER NOT NULL,
			length DOUBLE PRECISION NOT NULL,
			age DOUBLE PRECISION NOT NULL,
			biomass DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, sex, length_bin, age_bin)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_fingerprint ON analysis_runs(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_biomass_rows_stratum ON biomass_rows(run_id, stratum_num)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
