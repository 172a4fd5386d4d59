package density

import (
	"math"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/acoustics"
	"echostrata/internal/biology"
	"echostrata/internal/logging"

	"github.com/ctessum/geom"
	"go.uber.org/zap"
)

// Inputs are the per-stratum tables a conversion reads. Every stratum present
// in the intervals must have an entry in each table (gap-fill first).
type Inputs struct {
	CrossSections  acoustics.CrossSectionTable
	Compositions   map[survey.StratumID]biology.Composition
	AdultFractions map[survey.StratumID]biology.AgeFraction
	FractionHake   map[survey.HaulID]float64
}

// BiomassRow is the conversion of one transect interval
type BiomassRow struct {
	Transect  survey.TransectID `json:"transect_num" db:"transect_num"`
	Stratum   survey.StratumID  `json:"stratum_num" db:"stratum_num"`
	Haul      survey.HaulID     `json:"haul_num" db:"haul_num"`
	Latitude  float64           `json:"latitude" db:"latitude"`
	Longitude float64           `json:"longitude" db:"longitude"`

	NASC          float64 `json:"nasc" db:"nasc"`
	FractionHake  float64 `json:"fraction_hake" db:"fraction_hake"`
	SigmaBS       float64 `json:"sigma_bs_mean" db:"sigma_bs_mean"`
	AdultFraction float64 `json:"adult_fraction" db:"adult_fraction"`

	NumberDensity        float64 `json:"numerical_density" db:"numerical_density"`
	NumberDensityMale    float64 `json:"numerical_density_male" db:"numerical_density_male"`
	NumberDensityFemale  float64 `json:"numerical_density_female" db:"numerical_density_female"`
	NumberDensityUnsexed float64 `json:"numerical_density_unsexed" db:"numerical_density_unsexed"`

	BiomassDensity        float64 `json:"biomass_density" db:"biomass_density"`
	BiomassDensityMale    float64 `json:"biomass_density_male" db:"biomass_density_male"`
	BiomassDensityFemale  float64 `json:"biomass_density_female" db:"biomass_density_female"`
	BiomassDensityUnsexed float64 `json:"biomass_density_unsexed" db:"biomass_density_unsexed"`
	BiomassDensityAdult   float64 `json:"biomass_density_adult" db:"biomass_density_adult"`

	IntervalLength  float64 `json:"interval" db:"interval_length"`
	TransectSpacing float64 `json:"transect_spacing" db:"transect_spacing"`
	Area            float64 `json:"interval_area" db:"interval_area"`
	Biomass         float64 `json:"biomass_adult" db:"biomass_adult"`
	Abundance       float64 `json:"abundance" db:"abundance"`
}

// Geometry returns the interval position as a lon/lat point
func (r BiomassRow) Geometry() geom.Point {
	return geom.Point{X: r.Longitude, Y: r.Latitude}
}

// BiomassTable is the ordered conversion of a transect selection
type BiomassTable []BiomassRow

// Extent returns the lon/lat bounds of all rows, nil for an empty table
func (t BiomassTable) Extent() *geom.Bounds {
	if len(t) == 0 {
		return nil
	}
	b := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, r := range t {
		p := r.Geometry()
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// TotalBiomass sums adult biomass over the table
func (t BiomassTable) TotalBiomass() float64 {
	total := 0.0
	for _, r := range t {
		total += r.Biomass
	}
	return total
}

// TotalAbundance sums abundance over the table
func (t BiomassTable) TotalAbundance() float64 {
	total := 0.0
	for _, r := range t {
		total += r.Abundance
	}
	return total
}

// ByStratum sums adult biomass per stratum
func (t BiomassTable) ByStratum() map[survey.StratumID]float64 {
	out := make(map[survey.StratumID]float64)
	for _, r := range t {
		out[r.Stratum] += r.Biomass
	}
	return out
}

// Converter turns NASC intervals into a BiomassTable
type Converter struct {
	tolerance float64
	logger    *zap.Logger
}

// NewConverter creates a converter with the given interval outlier tolerance
func NewConverter(tolerance float64, logger *zap.Logger) *Converter {
	if tolerance <= 0 {
		tolerance = DefaultIntervalTolerance
	}
	return &Converter{
		tolerance: tolerance,
		logger:    logging.OrNop(logger).Named("density"),
	}
}

// Convert produces one row per interval, in input order.
//
// Numerical density is NASC scaled by the haul's hake fraction and divided by
// the stratum cross section, rounded half to even. The male and female
// densities are rounded independently and the unsexed density is the
// remainder, which may be negative. A haul absent from FractionHake mixes at 0.
func (c *Converter) Convert(intervals []survey.TransectInterval, in Inputs) (BiomassTable, error) {
	for _, s := range survey.Strata(intervals) {
		if _, ok := in.CrossSections[s]; !ok {
			return nil, core.NewMissingStratumError("cross section", int(s))
		}
		if _, ok := in.Compositions[s]; !ok {
			return nil, core.NewMissingStratumError("composition", int(s))
		}
		if _, ok := in.AdultFractions[s]; !ok {
			return nil, core.NewMissingStratumError("adult fraction", int(s))
		}
	}

	lengths := IntervalLengths(intervals, c.tolerance)
	out := make(BiomassTable, 0, len(intervals))
	negative := 0
	for i, iv := range intervals {
		sigma := in.CrossSections[iv.Stratum]
		comp := in.Compositions[iv.Stratum]
		adult := in.AdultFractions[iv.Stratum].Weight
		mix := in.FractionHake[iv.Haul]

		n := math.RoundToEven(core.DivOr(mix*iv.NASC, sigma, 0))
		nm := math.RoundToEven(n * comp.MaleProportion)
		nf := math.RoundToEven(n * comp.FemaleProportion)
		nu := n - nm - nf
		if nu < 0 {
			negative++
		}

		bm := nm * comp.AverageWeightMale
		bf := nf * comp.AverageWeightFemale
		bu := nu * comp.AverageWeight
		total := bm + bf + bu

		row := BiomassRow{
			Transect:              iv.Transect,
			Stratum:               iv.Stratum,
			Haul:                  iv.Haul,
			Latitude:              iv.Latitude,
			Longitude:             iv.Longitude,
			NASC:                  iv.NASC,
			FractionHake:          mix,
			SigmaBS:               sigma,
			AdultFraction:         adult,
			NumberDensity:         n,
			NumberDensityMale:     nm,
			NumberDensityFemale:   nf,
			NumberDensityUnsexed:  nu,
			BiomassDensity:        total,
			BiomassDensityMale:    bm,
			BiomassDensityFemale:  bf,
			BiomassDensityUnsexed: bu,
			BiomassDensityAdult:   total * adult,
			IntervalLength:        lengths[i],
			TransectSpacing:       iv.TransectSpacing,
		}
		row.Area = row.IntervalLength * row.TransectSpacing
		row.Biomass = row.BiomassDensityAdult * row.Area
		row.Abundance = row.NumberDensity * row.Area
		out = append(out, row)
	}

	if negative > 0 {
		c.logger.Warn("negative unsexed density from independent rounding", zap.Int("intervals", negative))
	}
	c.logger.Debug("intervals converted", zap.Int("rows", len(out)))
	return out, nil
}
