package biology

import (
	"maps"
	"math"
	"slices"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/binning"
	"echostrata/internal/logging"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Proportions splits a stratum's fish weight over sex, length and age.
// Index order is survey.Sexes (male, female, unsexed).
//
// Aged[sex][len][age] is a share of the stratum's total weight.
// Unaged[sex][len] is a share within that sex's unaged weight, and
// UnagedShare[sex] is that sex's unaged weight over the stratum total, so
// sum(Aged) + sum_sex(UnagedShare[sex] * sum(Unaged[sex])) == 1.
type Proportions struct {
	Aged         [][][]float64 `json:"aged"`
	Unaged       [][]float64   `json:"unaged"`
	UnagedShare  []float64     `json:"unaged_share"`
	AgedWeight   float64       `json:"aged_weight"`
	UnagedWeight float64       `json:"unaged_weight"`
}

// NewProportions allocates zeroed tables
func NewProportions(lengthBins, ageBins int) Proportions {
	p := Proportions{
		Aged:        make([][][]float64, len(survey.Sexes)),
		Unaged:      make([][]float64, len(survey.Sexes)),
		UnagedShare: make([]float64, len(survey.Sexes)),
	}
	for s := range survey.Sexes {
		p.Aged[s] = make([][]float64, lengthBins)
		for l := range p.Aged[s] {
			p.Aged[s][l] = make([]float64, ageBins)
		}
		p.Unaged[s] = make([]float64, lengthBins)
	}
	return p
}

// Total returns the share of stratum weight the tables account for, 1 for a
// stratum with any weight
func (p Proportions) Total() float64 {
	total := 0.0
	for s := range p.Aged {
		for _, row := range p.Aged[s] {
			total += floats.Sum(row)
		}
		total += p.UnagedShare[s] * floats.Sum(p.Unaged[s])
	}
	return total
}

// MidpointProportions averages two stratum tables element-wise
func MidpointProportions(a, b Proportions) Proportions {
	out := NewProportions(len(a.Unaged[0]), ageBins(a))
	for s := range out.Aged {
		for l := range out.Aged[s] {
			for g := range out.Aged[s][l] {
				out.Aged[s][l][g] = (a.Aged[s][l][g] + b.Aged[s][l][g]) / 2
			}
		}
		for l := range out.Unaged[s] {
			out.Unaged[s][l] = (a.Unaged[s][l] + b.Unaged[s][l]) / 2
		}
		out.UnagedShare[s] = (a.UnagedShare[s] + b.UnagedShare[s]) / 2
	}
	out.AgedWeight = (a.AgedWeight + b.AgedWeight) / 2
	out.UnagedWeight = (a.UnagedWeight + b.UnagedWeight) / 2
	return out
}

func ageBins(p Proportions) int {
	if len(p.Aged) == 0 || len(p.Aged[0]) == 0 {
		return 0
	}
	return len(p.Aged[0][0])
}

// ProportionEstimator builds per-stratum weight proportions
type ProportionEstimator struct {
	lengthCenters binning.Centers
	ageCenters    binning.Centers
	logger        *zap.Logger
}

// NewProportionEstimator creates an estimator over the given length and age bins
func NewProportionEstimator(lengthCenters, ageCenters binning.Centers, logger *zap.Logger) *ProportionEstimator {
	return &ProportionEstimator{
		lengthCenters: lengthCenters,
		ageCenters:    ageCenters,
		logger:        logging.OrNop(logger).Named("proportions"),
	}
}

type haulWeights struct {
	specimen float64
	catch    float64
	hasCatch bool
	// key-derived unaged weight by sex and length bin, nil for hauls
	// without length samples
	unaged [][]float64
}

// unagedWeight is the haul's unaged weight by sex and length bin. Hauls with
// a catch record are rescaled to catch less specimen weight, floored at zero.
func (w *haulWeights) unagedWeight() ([][]float64, float64) {
	estimated := 0.0
	for _, row := range w.unaged {
		estimated += floats.Sum(row)
	}
	if !w.hasCatch || estimated == 0 {
		return w.unaged, 1
	}
	return w.unaged, math.Max(w.catch-w.specimen, 0) / estimated
}

// Estimate builds the tables for every stratum with aged or unaged weight.
//
// Aged weight is the summed weight of fully measured specimens. Unaged weight
// per length bin is the station-1 count times the key weight, accumulated per
// haul. A haul with a catch record has its unaged weights rescaled to the
// catch weight less its specimen weight (floored at zero); other hauls keep
// their key-derived weights.
func (e *ProportionEstimator) Estimate(hauls []survey.Haul, lengths []survey.LengthSample, specimens []survey.Specimen, catches []survey.CatchRecord, key LengthWeightKey) map[survey.StratumID]Proportions {
	haulStratum := make(map[survey.HaulID]survey.StratumID, len(hauls))
	for _, h := range hauls {
		haulStratum[h.ID] = h.Stratum
	}

	nLen, nAge := e.lengthCenters.Len(), e.ageCenters.Len()
	aged := make(map[survey.StratumID][][][]float64)
	perHaul := make(map[survey.HaulID]*haulWeights)
	weights := func(h survey.HaulID) *haulWeights {
		w, ok := perHaul[h]
		if !ok {
			w = &haulWeights{}
			perHaul[h] = w
		}
		return w
	}

	for _, s := range specimens {
		if !s.Complete() {
			continue
		}
		stratum, ok := haulStratum[s.Haul]
		if !ok {
			continue
		}
		l, a := e.lengthCenters.Index(s.Length), e.ageCenters.Index(s.Age)
		if l < 0 || a < 0 {
			continue
		}
		table, ok := aged[stratum]
		if !ok {
			table = NewProportions(nLen, nAge).Aged
			aged[stratum] = table
		}
		table[survey.SexIndex(s.Sex)][l][a] += s.Weight
		weights(s.Haul).specimen += s.Weight
	}

	for _, ln := range lengths {
		if !(ln.Length > 0) || !(ln.Count > 0) {
			continue
		}
		if _, ok := haulStratum[ln.Haul]; !ok {
			continue
		}
		l := e.lengthCenters.Index(ln.Length)
		w := weights(ln.Haul)
		if w.unaged == nil {
			w.unaged = NewProportions(nLen, nAge).Unaged
		}
		w.unaged[survey.SexIndex(ln.Sex)][l] += ln.Count * key.Weights[l]
	}

	for _, c := range catches {
		if math.IsNaN(c.Weight) || c.Weight < 0 {
			continue
		}
		w := weights(c.Haul)
		w.catch += c.Weight
		w.hasCatch = true
	}

	// sorted so float sums do not depend on map order
	unaged := make(map[survey.StratumID][][]float64)
	for _, h := range slices.Sorted(maps.Keys(perHaul)) {
		w := perHaul[h]
		if w.unaged == nil {
			continue
		}
		stratum := haulStratum[h]
		table, ok := unaged[stratum]
		if !ok {
			table = NewProportions(nLen, nAge).Unaged
			unaged[stratum] = table
		}
		rows, scale := w.unagedWeight()
		for s := range rows {
			floats.AddScaled(table[s], scale, rows[s])
		}
	}

	strata := make(map[survey.StratumID]struct{}, len(aged)+len(unaged))
	for s := range aged {
		strata[s] = struct{}{}
	}
	for s := range unaged {
		strata[s] = struct{}{}
	}

	out := make(map[survey.StratumID]Proportions, len(strata))
	for stratum := range strata {
		p := NewProportions(nLen, nAge)
		if a, ok := aged[stratum]; ok {
			p.Aged = a
		}
		agedTotal := 0.0
		for s := range p.Aged {
			for _, row := range p.Aged[s] {
				agedTotal += floats.Sum(row)
			}
		}

		var sexUnaged [3]float64
		unagedTotal := 0.0
		if u, ok := unaged[stratum]; ok {
			for s := range u {
				sexUnaged[s] = floats.Sum(u[s])
				unagedTotal += sexUnaged[s]
				if sexUnaged[s] > 0 {
					p.Unaged[s] = u[s]
					floats.Scale(1/sexUnaged[s], p.Unaged[s])
				}
			}
		}

		total := agedTotal + unagedTotal
		if total == 0 {
			e.logger.Debug("stratum has no sampled weight", zap.Int("stratum", int(stratum)))
			continue
		}
		for s := range p.Aged {
			for _, row := range p.Aged[s] {
				floats.Scale(1/total, row)
			}
			p.UnagedShare[s] = core.DivOr(sexUnaged[s], total, 0)
		}
		p.AgedWeight = agedTotal
		p.UnagedWeight = unagedTotal
		out[stratum] = p
	}
	return out
}
