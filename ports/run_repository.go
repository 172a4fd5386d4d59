package ports

import (
	"context"
	"time"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/apportion"
	"echostrata/internal/density"
)

// RunRecord is the stored summary of one analysis run
type RunRecord struct {
	ID               core.RunID `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Survey           string     `db:"survey" json:"survey"`
	Fingerprint      string     `db:"fingerprint" json:"fingerprint"`
	Transects        string     `db:"transects" json:"transects"`
	SpeciesID        int        `db:"species_id" json:"species_id"`
	IntervalCount    int        `db:"interval_count" json:"interval_count"`
	StratumCount     int        `db:"stratum_count" json:"stratum_count"`
	TotalBiomass     float64    `db:"total_biomass" json:"total_biomass"`
	TotalAbundance   float64    `db:"total_abundance" json:"total_abundance"`
	KrigedTotal      *float64   `db:"kriged_total" json:"kriged_total,omitempty"`
	ApportionedTotal *float64   `db:"apportioned_total" json:"apportioned_total,omitempty"`
	Consistent       bool       `db:"consistent" json:"consistent"`
	Warnings         string     `db:"warnings" json:"warnings,omitempty"`
	Imputed          string     `db:"imputed" json:"imputed,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// RunRepository persists analysis runs and their output tables
type RunRepository interface {
	SaveRun(ctx context.Context, run *RunRecord, biomass density.BiomassTable, cells []apportion.Cell) error
	GetRun(ctx context.Context, id core.RunID) (*RunRecord, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, error)
	BiomassRows(ctx context.Context, id core.RunID) (density.BiomassTable, error)
	// ApportionedCells returns the run's apportioned table, optionally for one sex only
	ApportionedCells(ctx context.Context, id core.RunID, sex *survey.Sex) ([]apportion.Cell, error)
}
