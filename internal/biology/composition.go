package biology

import (
	"slices"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/binning"
	"echostrata/internal/logging"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Composition is the sex makeup and mean weight of the fish in one stratum
type Composition struct {
	MaleProportion      float64 `json:"proportion_male"`
	FemaleProportion    float64 `json:"proportion_female"`
	UnsexedProportion   float64 `json:"proportion_unsexed"`
	AverageWeight       float64 `json:"averaged_weight"`
	AverageWeightMale   float64 `json:"averaged_weight_male"`
	AverageWeightFemale float64 `json:"averaged_weight_female"`
	SampleCount         float64 `json:"sample_count"`
}

// Midpoint averages two compositions field by field, used to impute a stratum
// lying between two sampled ones
func (c Composition) Midpoint(o Composition) Composition {
	mid := func(a, b float64) float64 { return (a + b) / 2 }
	return Composition{
		MaleProportion:      mid(c.MaleProportion, o.MaleProportion),
		FemaleProportion:    mid(c.FemaleProportion, o.FemaleProportion),
		UnsexedProportion:   mid(c.UnsexedProportion, o.UnsexedProportion),
		AverageWeight:       mid(c.AverageWeight, o.AverageWeight),
		AverageWeightMale:   mid(c.AverageWeightMale, o.AverageWeightMale),
		AverageWeightFemale: mid(c.AverageWeightFemale, o.AverageWeightFemale),
		SampleCount:         mid(c.SampleCount, o.SampleCount),
	}
}

// MidpointComposition adapts Composition.Midpoint to the gap filler signature
func MidpointComposition(a, b Composition) Composition { return a.Midpoint(b) }

// stationSamples holds one station's lengths and counts split by sex
type stationSamples struct {
	lengths [3][]float64
	counts  [3][]float64
	total   [3]float64
}

func (s *stationSamples) add(sex survey.Sex, length, count float64) {
	i := survey.SexIndex(sex)
	s.lengths[i] = append(s.lengths[i], length)
	s.counts[i] = append(s.counts[i], count)
	s.total[i] += count
}

func (s *stationSamples) sum() float64 {
	return s.total[0] + s.total[1] + s.total[2]
}

// pooled concatenates the lengths and counts of the given sex slots
func (s *stationSamples) pooled(slots ...int) ([]float64, []float64) {
	var l, c []float64
	for _, i := range slots {
		l = append(l, s.lengths[i]...)
		c = append(c, s.counts[i]...)
	}
	return l, c
}

type stratumSamples struct {
	station1 stationSamples
	station2 stationSamples
}

// CompositionEstimator derives per-stratum sex proportions and average weights
type CompositionEstimator struct {
	centers binning.Centers
	logger  *zap.Logger
}

// NewCompositionEstimator creates an estimator binning lengths on centers
func NewCompositionEstimator(centers binning.Centers, logger *zap.Logger) *CompositionEstimator {
	return &CompositionEstimator{
		centers: centers,
		logger:  logging.OrNop(logger).Named("composition"),
	}
}

// Estimate computes the composition of every stratum holding at least one
// sampled fish in either station. Strata appear in the result only when they
// have samples; hauls without a stratum mapping are skipped and returned.
//
// The sample total is every station-1 fish plus the sexed station-2 fish.
// Unsexed specimens are left out of the total and of every distribution.
// Average weights blend the two stations' length distributions. For the
// all-fish weight station 2 contributes its sexed fish and weighs by their
// share of the sample total, station 1 by the rest. For a
// sex, station 1 weighs by its share of all fish and station 2 by its share of
// fish of that sex, normalised so the two weights sum to one. A station with
// no fish of the category hands its weight to the other.
func (e *CompositionEstimator) Estimate(hauls []survey.Haul, lengths []survey.LengthSample, specimens []survey.Specimen, key LengthWeightKey) (map[survey.StratumID]Composition, []survey.HaulID) {
	haulStratum := make(map[survey.HaulID]survey.StratumID, len(hauls))
	for _, h := range hauls {
		haulStratum[h.ID] = h.Stratum
	}

	groups := make(map[survey.StratumID]*stratumSamples)
	unmapped := make(map[survey.HaulID]struct{})
	group := func(haul survey.HaulID) *stratumSamples {
		stratum, ok := haulStratum[haul]
		if !ok {
			unmapped[haul] = struct{}{}
			return nil
		}
		g, ok := groups[stratum]
		if !ok {
			g = &stratumSamples{}
			groups[stratum] = g
		}
		return g
	}

	for _, l := range lengths {
		if !(l.Length > 0) || !(l.Count > 0) {
			continue
		}
		if g := group(l.Haul); g != nil {
			g.station1.add(l.Sex, l.Length, l.Count)
		}
	}
	for _, s := range specimens {
		if !s.HasLengthWeight() {
			continue
		}
		if g := group(s.Haul); g != nil {
			g.station2.add(s.Sex, s.Length, 1)
		}
	}

	out := make(map[survey.StratumID]Composition, len(groups))
	for stratum, g := range groups {
		c, ok := e.compose(g, key)
		if !ok {
			continue
		}
		out[stratum] = c
	}

	skipped := make([]survey.HaulID, 0, len(unmapped))
	for h := range unmapped {
		skipped = append(skipped, h)
	}
	slices.Sort(skipped)
	if len(skipped) > 0 {
		e.logger.Warn("hauls excluded from composition: no stratum mapping",
			zap.Ints("hauls", haulInts(skipped)), zap.Error(core.ErrUnmappedHaul))
	}
	return out, skipped
}

func (e *CompositionEstimator) compose(g *stratumSamples, key LengthWeightKey) (Composition, bool) {
	male, female := survey.SexIndex(survey.SexMale), survey.SexIndex(survey.SexFemale)

	n1 := g.station1.sum()
	sexed2 := g.station2.total[male] + g.station2.total[female]
	total := n1 + sexed2
	if total == 0 {
		return Composition{}, false
	}

	c := Composition{
		MaleProportion:   (g.station1.total[male] + g.station2.total[male]) / total,
		FemaleProportion: (g.station1.total[female] + g.station2.total[female]) / total,
		SampleCount:      total,
	}
	c.UnsexedProportion = 1 - c.MaleProportion - c.FemaleProportion

	share2 := sexed2 / total
	share1 := 1 - share2

	l1, c1 := g.station1.pooled(0, 1, 2)
	l2, c2 := g.station2.pooled(male, female)
	c.AverageWeight = e.blend(
		e.centers.Distribution(l1, c1), share1,
		e.centers.Distribution(l2, c2), share2,
		key)

	sexWeight := func(i int) float64 {
		s2 := g.station2.total[i] / total
		w1 := core.DivOr(share1, share1+s2, 0)
		w2 := core.DivOr(s2, share1+s2, 0)
		return e.blend(
			e.centers.Distribution(g.station1.lengths[i], g.station1.counts[i]), w1,
			e.centers.Distribution(g.station2.lengths[i], g.station2.counts[i]), w2,
			key)
	}
	c.AverageWeightMale = sexWeight(male)
	c.AverageWeightFemale = sexWeight(female)
	return c, true
}

// blend mixes two length distributions and returns the key-weighted mean weight
func (e *CompositionEstimator) blend(d1 []float64, w1 float64, d2 []float64, w2 float64, key LengthWeightKey) float64 {
	empty1 := floats.Sum(d1) == 0
	empty2 := floats.Sum(d2) == 0
	switch {
	case empty1 && empty2:
		return 0
	case empty1:
		w1, w2 = 0, 1
	case empty2:
		w1, w2 = 1, 0
	case w1+w2 == 0:
		return 0
	}

	mixed := make([]float64, len(d1))
	floats.AddScaledTo(mixed, mixed, w1, d1)
	floats.AddScaled(mixed, w2, d2)
	return floats.Dot(mixed, key.Weights)
}

func haulInts(hauls []survey.HaulID) []int {
	out := make([]int, len(hauls))
	for i, h := range hauls {
		out[i] = int(h)
	}
	return out
}
