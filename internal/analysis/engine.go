// Package analysis runs the estimation pipeline over a survey snapshot:
// cross sections, biological composition, gap filling, density conversion
// and, on request, apportionment of kriged biomass.
package analysis

import (
	"context"
	"fmt"
	"time"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/acoustics"
	"echostrata/internal/apportion"
	"echostrata/internal/binning"
	"echostrata/internal/biology"
	"echostrata/internal/density"
	"echostrata/internal/logging"
	"echostrata/internal/strata"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Params are the survey-level settings of a run
type Params struct {
	SpeciesID          int
	LengthCenters      binning.Centers
	AgeCenters         binning.Centers
	TS                 acoustics.TSRegression
	IntervalTolerance  float64
	MinBinCount        int
	ApportionTolerance float64
}

// TransectResult is everything derived from one selection
type TransectResult struct {
	RunID       core.RunID     `json:"run_id"`
	Selection   Selection      `json:"selection"`
	Fingerprint core.Hash      `json:"fingerprint"`
	CreatedAt   time.Time      `json:"created_at"`
	Summary     survey.Summary `json:"summary"`

	LengthWeight      biology.LengthWeightKey                  `json:"length_weight"`
	HaulCrossSections []acoustics.HaulCrossSection             `json:"haul_cross_sections"`
	CrossSections     acoustics.CrossSectionTable              `json:"cross_sections"`
	Compositions      map[survey.StratumID]biology.Composition `json:"compositions"`
	AdultFractions    map[survey.StratumID]biology.AgeFraction `json:"adult_fractions"`
	Proportions       map[survey.StratumID]biology.Proportions `json:"-"`
	Imputed           map[string][]survey.StratumID            `json:"imputed_strata"`
	Excluded          []survey.HaulID                          `json:"excluded_hauls"`
	Biomass           density.BiomassTable                     `json:"biomass"`
}

// TotalBiomass is the adult biomass summed over all intervals
func (r *TransectResult) TotalBiomass() float64 {
	return r.Biomass.TotalBiomass()
}

// Engine runs analyses. It holds no per-run state, so one Engine can serve
// concurrent runs.
type Engine struct {
	params Params
	logger *zap.Logger
}

// NewEngine creates an analysis engine
func NewEngine(params Params, logger *zap.Logger) *Engine {
	return &Engine{
		params: params,
		logger: logging.OrNop(logger).Named("analysis"),
	}
}

// Params returns the engine's survey settings
func (e *Engine) Params() Params {
	return e.params
}

// RunTransects estimates the biomass of every interval in the selection
func (e *Engine) RunTransects(ctx context.Context, ds *survey.Dataset, sel Selection) (*TransectResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap, err := Snapshot(ds, sel, e.params.SpeciesID)
	if err != nil {
		return nil, fmt.Errorf("failed to select transects: %w", err)
	}

	res := &TransectResult{
		RunID:       core.NewRunID(),
		Selection:   sel,
		Fingerprint: sel.Fingerprint(),
		CreatedAt:   time.Now().UTC(),
		Summary:     snap.Summarize(),
		Imputed:     make(map[string][]survey.StratumID),
	}
	log := e.logger.With(zap.String("run_id", res.RunID.String()), zap.String("selection", res.Fingerprint.Short()))
	log.Info("transect analysis started",
		zap.Int("intervals", res.Summary.Intervals),
		zap.Int("hauls", res.Summary.Hauls),
		zap.Int("strata", res.Summary.Strata))

	estimator := acoustics.NewEstimator(e.params.TS, e.logger)
	res.HaulCrossSections = estimator.HaulCrossSections(snap.Lengths, snap.Specimens)
	crossSections, excluded := estimator.StratumCrossSections(snap.Hauls, res.HaulCrossSections)
	res.Excluded = excluded

	res.LengthWeight = biology.FitLengthWeight(snap.Specimens, e.params.LengthCenters, e.params.MinBinCount)
	compositions, _ := biology.NewCompositionEstimator(e.params.LengthCenters, e.logger).
		Estimate(snap.Hauls, snap.Lengths, snap.Specimens, res.LengthWeight)
	adults := biology.AdultFractions(snap.Hauls, snap.Specimens, e.params.AgeCenters)
	res.Proportions = biology.NewProportionEstimator(e.params.LengthCenters, e.params.AgeCenters, e.logger).
		Estimate(snap.Hauls, snap.Lengths, snap.Specimens, snap.Catches, res.LengthWeight)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	required := survey.Strata(snap.Intervals)

	filledSigma, imputed, err := strata.FillScalar(strata.Table[float64](crossSections), required)
	if err != nil {
		return nil, fmt.Errorf("failed to fill cross sections: %w", err)
	}
	res.CrossSections = acoustics.CrossSectionTable(filledSigma)
	e.noteImputed(log, res, "cross_section", imputed)

	res.Compositions, imputed, err = strata.Fill(strata.Table[biology.Composition](compositions), required, biology.MidpointComposition)
	if err != nil {
		return nil, fmt.Errorf("failed to fill compositions: %w", err)
	}
	e.noteImputed(log, res, "composition", imputed)

	res.AdultFractions, imputed, err = strata.Fill(strata.Table[biology.AgeFraction](adults), required, biology.MidpointAgeFraction)
	if err != nil {
		return nil, fmt.Errorf("failed to fill adult fractions: %w", err)
	}
	e.noteImputed(log, res, "adult_fraction", imputed)

	fractionHake := make(map[survey.HaulID]float64, len(snap.Hauls))
	for _, h := range snap.Hauls {
		fractionHake[h.ID] = h.FractionHake
	}

	res.Biomass, err = density.NewConverter(e.params.IntervalTolerance, e.logger).Convert(snap.Intervals, density.Inputs{
		CrossSections:  res.CrossSections,
		Compositions:   res.Compositions,
		AdultFractions: res.AdultFractions,
		FractionHake:   fractionHake,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert NASC to biomass: %w", err)
	}

	log.Info("transect analysis completed",
		zap.Int("rows", len(res.Biomass)),
		zap.Float64("biomass", res.TotalBiomass()))
	return res, nil
}

func (e *Engine) noteImputed(log *zap.Logger, res *TransectResult, table string, imputed []survey.StratumID) {
	if len(imputed) == 0 {
		return
	}
	res.Imputed[table] = imputed
	ids := make([]int, len(imputed))
	for i, s := range imputed {
		ids[i] = int(s)
	}
	log.Info("strata imputed", zap.String("table", table), zap.Ints("strata", ids),
		zap.Error(core.ErrMissingStratumData))
}

// Apportion splits the kriged mesh biomass using the weight proportions of a
// transect run. Inconsistencies come back as warnings on the result.
func (e *Engine) Apportion(ctx context.Context, res *TransectResult, mesh []survey.KrigedMeshCell) (*apportion.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("apportion requires a transect result")
	}

	engine := apportion.NewEngine(e.params.LengthCenters, e.params.AgeCenters, e.params.ApportionTolerance, e.logger)
	out, err := engine.Apportion(apportion.SumByStratum(mesh), res.Proportions)
	if err != nil {
		return nil, fmt.Errorf("failed to apportion kriged biomass: %w", err)
	}
	e.logger.Info("kriged biomass apportioned",
		zap.String("run_id", res.RunID.String()),
		zap.Float64("kriged", out.KrigedTotal),
		zap.Float64("apportioned", out.ApportionedTotal),
		zap.Int("imputed_bins", len(out.ImputedBins)),
		zap.Bool("consistent", out.Consistent()))
	return out, nil
}

// RunSelections analyses independent selections in parallel, at most workers
// at a time (unbounded when workers <= 0). Results keep the order of sels.
// Each run works on its own snapshot of ds.
func (e *Engine) RunSelections(ctx context.Context, ds *survey.Dataset, sels []Selection, workers int) ([]*TransectResult, error) {
	results := make([]*TransectResult, len(sels))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, sel := range sels {
		g.Go(func() error {
			res, err := e.RunTransects(gctx, ds, sel)
			if err != nil {
				return fmt.Errorf("selection %q: %w", sel.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
