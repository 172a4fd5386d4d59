// Package apportion distributes kriged biomass over sex, length and age using
// the per-stratum weight proportions of the biological samples.
package apportion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/binning"
	"echostrata/internal/biology"
	"echostrata/internal/logging"
	"echostrata/internal/strata"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// DefaultTolerance is the relative difference between apportioned and kriged
// totals reported as inconsistent
const DefaultTolerance = 1e-9

// SumByStratum totals mesh biomass per stratum
func SumByStratum(cells []survey.KrigedMeshCell) map[survey.StratumID]float64 {
	out := make(map[survey.StratumID]float64)
	for _, c := range cells {
		b := c.Biomass()
		if math.IsNaN(b) {
			continue
		}
		out[c.Stratum] += b
	}
	return out
}

// Table holds apportioned biomass as [length bin][age bin] per sex,
// including the SexAll sum. It marshals to JSON in long form (see Cells).
type Table struct {
	LengthCenters []float64
	AgeCenters    []float64
	Biomass       map[survey.Sex][][]float64
}

// MarshalJSON writes the bin centers and the long-form cells
func (t Table) MarshalJSON() ([]byte, error) {
	cells := t.Cells()
	if cells == nil {
		cells = []Cell{}
	}
	return json.Marshal(struct {
		LengthCenters []float64 `json:"length_bins"`
		AgeCenters    []float64 `json:"age_bins"`
		Cells         []Cell    `json:"cells"`
	}{t.LengthCenters, t.AgeCenters, cells})
}

// Cell is one entry of a Table in long form
type Cell struct {
	Sex       survey.Sex `json:"sex" db:"sex"`
	LengthBin int        `json:"length_bin" db:"length_bin"`
	AgeBin    int        `json:"age_bin" db:"age_bin"`
	Length    float64    `json:"length" db:"length"`
	Age       float64    `json:"age" db:"age"`
	Biomass   float64    `json:"biomass" db:"biomass"`
}

// ReportSexes is the row order of apportioned tables
var ReportSexes = []survey.Sex{survey.SexAll, survey.SexMale, survey.SexFemale, survey.SexUnsexed}

// Cells flattens the table in ReportSexes order
func (t Table) Cells() []Cell {
	var out []Cell
	for _, sex := range ReportSexes {
		grid, ok := t.Biomass[sex]
		if !ok {
			continue
		}
		for l, row := range grid {
			for a, v := range row {
				out = append(out, Cell{
					Sex: sex, LengthBin: l, AgeBin: a,
					Length: t.LengthCenters[l], Age: t.AgeCenters[a],
					Biomass: v,
				})
			}
		}
	}
	return out
}

// Total sums the grid of one sex
func (t Table) Total(sex survey.Sex) float64 {
	total := 0.0
	for _, row := range t.Biomass[sex] {
		total += floats.Sum(row)
	}
	return total
}

// ImputedBin records a length bin whose age shape was borrowed from a donor bin
type ImputedBin struct {
	Sex       survey.Sex `json:"sex"`
	LengthBin int        `json:"length_bin"`
	Donor     int        `json:"donor_bin"`
}

// Result is the outcome of an apportionment. Warnings are non-fatal; the
// table is still usable.
type Result struct {
	Table            Table              `json:"table"`
	ImputedBins      []ImputedBin       `json:"imputed_bins"`
	ImputedStrata    []survey.StratumID `json:"imputed_strata"`
	Warnings         []error            `json:"-"`
	KrigedTotal      float64            `json:"kriged_total"`
	ApportionedTotal float64            `json:"apportioned_total"`
}

// WarningMessages returns the warning texts in order
func (r *Result) WarningMessages() []string {
	msgs := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		if w != nil {
			msgs = append(msgs, w.Error())
		}
	}
	return msgs
}

// MarshalJSON writes the result with its warnings as text
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Warnings   []string `json:"warnings"`
		Consistent bool     `json:"consistent"`
	}{plain(r), r.WarningMessages(), r.Consistent()})
}

// Consistent reports whether the apportioned total matched the kriged total
func (r *Result) Consistent() bool {
	for _, w := range r.Warnings {
		if w != nil && errors.Is(w, core.ErrInconsistentApportionment) {
			return false
		}
	}
	return true
}

// Engine apportions kriged biomass
type Engine struct {
	lengthCenters binning.Centers
	ageCenters    binning.Centers
	tolerance     float64
	logger        *zap.Logger
}

// NewEngine creates an engine over the given bins. A non-positive tolerance
// uses DefaultTolerance.
func NewEngine(lengthCenters, ageCenters binning.Centers, tolerance float64, logger *zap.Logger) *Engine {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Engine{
		lengthCenters: lengthCenters,
		ageCenters:    ageCenters,
		tolerance:     tolerance,
		logger:        logging.OrNop(logger).Named("apportion"),
	}
}

// Apportion splits the kriged biomass of every stratum by its weight
// proportions. Strata with kriged biomass but no proportions are gap-filled.
//
// Unaged mass at a length bin takes the age shape of the aged mass at that
// bin. When a bin has no aged mass the shape comes from the nearest bin of the
// same sex that has some (lower bin on ties). Mass that finds no donor is
// left out and reported as inconsistent.
func (e *Engine) Apportion(kriged map[survey.StratumID]float64, proportions map[survey.StratumID]biology.Proportions) (*Result, error) {
	required := make([]survey.StratumID, 0, len(kriged))
	for s := range kriged {
		required = append(required, s)
	}
	slices.Sort(required)

	filled, imputed, err := strata.Fill(strata.Table[biology.Proportions](proportions), required, biology.MidpointProportions)
	if err != nil {
		return nil, fmt.Errorf("failed to fill weight proportions: %w", err)
	}
	if len(imputed) > 0 {
		e.logger.Info("weight proportions imputed for strata", zap.Ints("strata", stratumInts(imputed)))
	}

	nLen, nAge := e.lengthCenters.Len(), e.ageCenters.Len()
	nSex := len(survey.Sexes)
	aged := grid3(nSex, nLen, nAge)
	unaged := make([][]float64, nSex)
	for s := range unaged {
		unaged[s] = make([]float64, nLen)
	}

	krigedTotal := 0.0
	for _, stratum := range required {
		k := kriged[stratum]
		krigedTotal += k
		p := filled[stratum]
		if err := checkShape(p, nLen, nAge); err != nil {
			return nil, fmt.Errorf("stratum %d: %w", stratum, err)
		}
		for s := 0; s < nSex; s++ {
			floats.AddScaled(unaged[s], k*p.UnagedShare[s], p.Unaged[s])
			for l := 0; l < nLen; l++ {
				floats.AddScaled(aged[s][l], k, p.Aged[s][l])
			}
		}
	}

	result := &Result{ImputedStrata: imputed, KrigedTotal: krigedTotal}
	biomass := make(map[survey.Sex][][]float64, nSex+1)
	all := grid3(1, nLen, nAge)[0]
	var lost float64
	for s, sex := range survey.Sexes {
		out := grid3(1, nLen, nAge)[0]
		agedTotals := make([]float64, nLen)
		for l := 0; l < nLen; l++ {
			agedTotals[l] = floats.Sum(aged[s][l])
			copy(out[l], aged[s][l])
		}

		for l := 0; l < nLen; l++ {
			mass := unaged[s][l]
			if mass == 0 {
				continue
			}
			donor := l
			if agedTotals[l] == 0 {
				donor = nearestNonEmpty(agedTotals, l)
				if donor < 0 {
					lost += mass
					continue
				}
				result.ImputedBins = append(result.ImputedBins, ImputedBin{Sex: sex, LengthBin: l, Donor: donor})
			}
			floats.AddScaled(out[l], mass/agedTotals[donor], aged[s][donor])
		}

		for l := range out {
			floats.Add(all[l], out[l])
		}
		biomass[sex] = out
	}
	biomass[survey.SexAll] = all

	result.Table = Table{
		LengthCenters: e.lengthCenters.Values(),
		AgeCenters:    e.ageCenters.Values(),
		Biomass:       biomass,
	}
	result.ApportionedTotal = result.Table.Total(survey.SexAll)

	if len(result.ImputedBins) > 0 {
		e.logger.Info("age shape imputed from nearest length bin", zap.Int("bins", len(result.ImputedBins)))
	}
	diff := math.Abs(result.ApportionedTotal - krigedTotal)
	if diff > e.tolerance*math.Max(math.Abs(krigedTotal), 1) {
		w := fmt.Errorf("%w: apportioned %.6g of %.6g (unplaced %.6g)",
			core.ErrInconsistentApportionment, result.ApportionedTotal, krigedTotal, lost)
		result.Warnings = append(result.Warnings, w)
		e.logger.Warn("apportionment inconsistent", zap.Error(w))
	}
	return result, nil
}

// nearestNonEmpty returns the index closest to i with a positive total,
// preferring the lower index on ties, or -1
func nearestNonEmpty(totals []float64, i int) int {
	for d := 1; d < len(totals); d++ {
		if lo := i - d; lo >= 0 && totals[lo] > 0 {
			return lo
		}
		if hi := i + d; hi < len(totals) && totals[hi] > 0 {
			return hi
		}
	}
	return -1
}

func checkShape(p biology.Proportions, nLen, nAge int) error {
	if len(p.Aged) != len(survey.Sexes) || len(p.Unaged) != len(survey.Sexes) || len(p.UnagedShare) != len(survey.Sexes) {
		return core.NewMalformedInputError("weight proportions", "sex dimension mismatch")
	}
	for s := range p.Aged {
		if len(p.Aged[s]) != nLen || len(p.Unaged[s]) != nLen {
			return core.NewMalformedInputError("weight proportions", "length bin mismatch")
		}
		for _, row := range p.Aged[s] {
			if len(row) != nAge {
				return core.NewMalformedInputError("weight proportions", "age bin mismatch")
			}
		}
	}
	return nil
}

func grid3(a, b, c int) [][][]float64 {
	out := make([][][]float64, a)
	for i := range out {
		out[i] = make([][]float64, b)
		for j := range out[i] {
			out[i][j] = make([]float64, c)
		}
	}
	return out
}

func stratumInts(ids []survey.StratumID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
