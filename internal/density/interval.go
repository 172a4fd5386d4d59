// Package density converts per-interval acoustic backscatter into numerical
// and biomass density and integrates it over each interval's area.
package density

import (
	"math"

	"echostrata/domain/survey"

	"github.com/montanaflynn/stats"
)

// DefaultIntervalTolerance is the largest deviation (nmi) from the median
// interval length accepted before an interval is recomputed from its own
// start and end log values
const DefaultIntervalTolerance = 0.05

// IntervalLengths returns the distance covered by each interval, in input
// order. Each length is the difference to the next interval's start log; the
// last one uses its own end log. Lengths deviating from the median by more
// than tolerance use end minus start instead.
func IntervalLengths(intervals []survey.TransectInterval, tolerance float64) []float64 {
	n := len(intervals)
	if n == 0 {
		return nil
	}
	if tolerance <= 0 {
		tolerance = DefaultIntervalTolerance
	}

	out := make([]float64, n)
	for i := 0; i < n-1; i++ {
		out[i] = intervals[i+1].VesselLogStart - intervals[i].VesselLogStart
	}
	out[n-1] = intervals[n-1].VesselLogEnd - intervals[n-1].VesselLogStart

	median, err := stats.Median(out)
	if err != nil || math.IsNaN(median) {
		return out
	}
	for i, d := range out {
		if math.Abs(d-median) > tolerance {
			out[i] = intervals[i].VesselLogEnd - intervals[i].VesselLogStart
		}
	}
	return out
}
