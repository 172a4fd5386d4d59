package biology

import (
	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/binning"
)

// AgeFraction is the adult share of a stratum's aged specimens
type AgeFraction struct {
	Weight float64 `json:"adult_fraction_weight"`
	Number float64 `json:"adult_fraction_number"`
}

// MidpointAgeFraction averages two fractions for gap filling
func MidpointAgeFraction(a, b AgeFraction) AgeFraction {
	return AgeFraction{Weight: (a.Weight + b.Weight) / 2, Number: (a.Number + b.Number) / 2}
}

// AdultFractions returns, per stratum with at least one fully measured
// specimen, one minus the share of weight (and of fish) falling in the
// lowest age bin. A stratum whose specimens weigh nothing in total is
// treated as having no young fish.
func AdultFractions(hauls []survey.Haul, specimens []survey.Specimen, ageCenters binning.Centers) map[survey.StratumID]AgeFraction {
	haulStratum := make(map[survey.HaulID]survey.StratumID, len(hauls))
	for _, h := range hauls {
		haulStratum[h.ID] = h.Stratum
	}

	type tally struct {
		weight, youngWeight float64
		number, youngNumber float64
	}
	tallies := make(map[survey.StratumID]*tally)
	for _, s := range specimens {
		if !s.Complete() {
			continue
		}
		stratum, ok := haulStratum[s.Haul]
		if !ok {
			continue
		}
		t, ok := tallies[stratum]
		if !ok {
			t = &tally{}
			tallies[stratum] = t
		}
		t.weight += s.Weight
		t.number++
		if ageCenters.Index(s.Age) == 0 {
			t.youngWeight += s.Weight
			t.youngNumber++
		}
	}

	out := make(map[survey.StratumID]AgeFraction, len(tallies))
	for stratum, t := range tallies {
		out[stratum] = AgeFraction{
			Weight: 1 - core.DivOr(t.youngWeight, t.weight, 0),
			Number: 1 - core.DivOr(t.youngNumber, t.number, 0),
		}
	}
	return out
}
