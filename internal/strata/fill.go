// Package strata fills per-stratum tables for strata that appear in the
// acoustic transects but have no biologically derived value.
package strata

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"echostrata/domain/core"
	"echostrata/domain/survey"
)

// Table maps a stratum to its value
type Table[V any] map[survey.StratumID]V

// Mean combines two donor values into the value of a stratum lying between them
type Mean[V any] func(a, b V) V

// Fill returns a copy of known extended to every stratum in required, and
// the strata that were imputed, in ascending order.
//
// For each missing stratum s:
//   - one known stratum: copy it
//   - s below the smallest known id: copy the smallest
//   - s above the largest known id: copy the largest
//   - otherwise: mean of the two known strata numerically closest to s
//
// Donors are always the originally known strata, never strata imputed earlier
// in the same call. Distance ties go to the lower stratum id.
func Fill[V any](known Table[V], required []survey.StratumID, mean Mean[V]) (Table[V], []survey.StratumID, error) {
	out := make(Table[V], len(known)+len(required))
	maps.Copy(out, known)

	var missing []survey.StratumID
	for _, s := range required {
		if _, ok := known[s]; !ok && !slices.Contains(missing, s) {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return out, nil, nil
	}
	if len(known) == 0 {
		return nil, nil, fmt.Errorf("%w (missing %v)", core.ErrNoKnownStrata, missing)
	}

	slices.Sort(missing)
	donors := slices.Sorted(maps.Keys(known))
	lo, hi := donors[0], donors[len(donors)-1]

	for _, s := range missing {
		switch {
		case len(donors) == 1:
			out[s] = known[lo]
		case s < lo:
			out[s] = known[lo]
		case s > hi:
			out[s] = known[hi]
		default:
			a, b := nearestTwo(donors, s)
			out[s] = mean(known[a], known[b])
		}
	}
	return out, missing, nil
}

// nearestTwo picks the two donors closest to s. donors is ascending and the
// sort is stable, so equal distances keep the lower id first.
func nearestTwo(donors []survey.StratumID, s survey.StratumID) (survey.StratumID, survey.StratumID) {
	ranked := slices.Clone(donors)
	sort.SliceStable(ranked, func(i, j int) bool {
		return distance(ranked[i], s) < distance(ranked[j], s)
	})
	return ranked[0], ranked[1]
}

func distance(a, b survey.StratumID) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// FillScalar fills a single-column table by arithmetic mean
func FillScalar(known Table[float64], required []survey.StratumID) (Table[float64], []survey.StratumID, error) {
	return Fill(known, required, func(a, b float64) float64 { return (a + b) / 2.0 })
}

// FillVector fills a multi-column table by element-wise mean. Vectors of
// unequal length are averaged over the shorter prefix and padded from the
// longer one.
func FillVector(known Table[[]float64], required []survey.StratumID) (Table[[]float64], []survey.StratumID, error) {
	return Fill(known, required, MeanVector)
}

// MeanVector is the element-wise mean of two vectors
func MeanVector(a, b []float64) []float64 {
	n := max(len(a), len(b))
	out := make([]float64, n)
	for i := range out {
		switch {
		case i < len(a) && i < len(b):
			out[i] = (a[i] + b[i]) / 2.0
		case i < len(a):
			out[i] = a[i]
		default:
			out[i] = b[i]
		}
	}
	return out
}
