package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/apportion"
	"echostrata/internal/density"
	"echostrata/internal/errors"
	"echostrata/ports"

	"github.com/jmoiron/sqlx"
)

// runRepository implements the RunRepository interface
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

type biomassRowRecord struct {
	RunID core.RunID `db:"run_id"`
	Seq   int        `db:"seq"`
	density.BiomassRow
}

type cellRecord struct {
	RunID core.RunID `db:"run_id"`
	apportion.Cell
}

const runColumns = `id, name, survey, fingerprint, transects, species_id, interval_count, stratum_count,
	total_biomass, total_abundance, kriged_total, apportioned_total, consistent, warnings, imputed, created_at`

const biomassColumns = `transect_num, stratum_num, haul_num, latitude, longitude, nasc, fraction_hake,
	sigma_bs_mean, adult_fraction, numerical_density, numerical_density_male, numerical_density_female,
	numerical_density_unsexed, biomass_density, biomass_density_male, biomass_density_female,
	biomass_density_unsexed, biomass_density_adult, interval_length, transect_spacing, interval_area,
	biomass_adult, abundance`

// SaveRun writes the run and its tables in one transaction
func (r *runRepository) SaveRun(ctx context.Context, run *ports.RunRecord, biomass density.BiomassTable, cells []apportion.Cell) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO analysis_runs (`+runColumns+`) VALUES (
		:id, :name, :survey, :fingerprint, :transects, :species_id, :interval_count, :stratum_count,
		:total_biomass, :total_abundance, :kriged_total, :apportioned_total, :consistent, :warnings, :imputed, :created_at
	)`, run)
	if err != nil {
		return errors.DatabaseError("failed to insert run", err)
	}

	if len(biomass) > 0 {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO biomass_rows (run_id, seq, `+biomassColumns+`) VALUES (
			:run_id, :seq, :transect_num, :stratum_num, :haul_num, :latitude, :longitude, :nasc, :fraction_hake,
			:sigma_bs_mean, :adult_fraction, :numerical_density, :numerical_density_male, :numerical_density_female,
			:numerical_density_unsexed, :biomass_density, :biomass_density_male, :biomass_density_female,
			:biomass_density_unsexed, :biomass_density_adult, :interval_length, :transect_spacing, :interval_area,
			:biomass_adult, :abundance
		)`)
		if err != nil {
			return errors.DatabaseError("failed to prepare biomass insert", err)
		}
		defer stmt.Close()
		for i, row := range biomass {
			if _, err := stmt.ExecContext(ctx, biomassRowRecord{RunID: run.ID, Seq: i, BiomassRow: row}); err != nil {
				return errors.DatabaseError(fmt.Sprintf("failed to insert biomass row %d", i), err)
			}
		}
	}

	if len(cells) > 0 {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO apportioned_cells (run_id, sex, length_bin, age_bin, length, age, biomass)
			VALUES (:run_id, :sex, :length_bin, :age_bin, :length, :age, :biomass)`)
		if err != nil {
			return errors.DatabaseError("failed to prepare cell insert", err)
		}
		defer stmt.Close()
		for _, c := range cells {
			if _, err := stmt.ExecContext(ctx, cellRecord{RunID: run.ID, Cell: c}); err != nil {
				return errors.DatabaseError("failed to insert apportioned cell", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

// GetRun retrieves a run by its ID
func (r *runRepository) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	var run ports.RunRecord
	err := r.db.GetContext(ctx, &run, r.db.Rebind(`SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`), id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("run " + id.String())
		}
		return nil, errors.DatabaseError("failed to get run", err)
	}
	return &run, nil
}

// ListRuns returns runs newest first
func (r *runRepository) ListRuns(ctx context.Context, limit, offset int) ([]*ports.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var runs []*ports.RunRecord
	err := r.db.SelectContext(ctx, &runs, r.db.Rebind(`SELECT `+runColumns+` FROM analysis_runs
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return runs, nil
}

// BiomassRows returns the run's interval table in its original order
func (r *runRepository) BiomassRows(ctx context.Context, id core.RunID) (density.BiomassTable, error) {
	if _, err := r.GetRun(ctx, id); err != nil {
		return nil, err
	}
	var rows []density.BiomassRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+biomassColumns+` FROM biomass_rows
		WHERE run_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, errors.DatabaseError("failed to query biomass rows", err)
	}
	return density.BiomassTable(rows), nil
}

// ApportionedCells returns the run's apportioned cells, optionally for one sex
func (r *runRepository) ApportionedCells(ctx context.Context, id core.RunID, sex *survey.Sex) ([]apportion.Cell, error) {
	if _, err := r.GetRun(ctx, id); err != nil {
		return nil, err
	}
	query := `SELECT sex, length_bin, age_bin, length, age, biomass FROM apportioned_cells WHERE run_id = ?`
	args := []interface{}{id}
	if sex != nil {
		query += ` AND sex = ?`
		args = append(args, int(*sex))
	}
	query += ` ORDER BY sex, length_bin, age_bin`

	var cells []apportion.Cell
	if err := r.db.SelectContext(ctx, &cells, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to query apportioned cells", err)
	}
	return cells, nil
}
