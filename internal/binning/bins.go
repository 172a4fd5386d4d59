// Package binning assigns scalar samples (lengths, ages) to bins defined by
// their centers rather than their edges.
//
// For centers c_0 < c_1 < ... < c_{n-1} the internal boundaries are the
// midpoints b_i = (c_i + c_{i+1}) / 2. Bin 0 is (-inf, b_0], bin k is
// (b_{k-1}, b_k] and the last bin is (b_{n-2}, +inf). NaN falls in no bin.
package binning

import (
	"math"
	"sort"

	"echostrata/domain/core"

	"gonum.org/v1/gonum/floats"
)

// Centers is an ordered set of bin centers with precomputed boundaries
type Centers struct {
	values     []float64
	boundaries []float64
}

// NewCenters validates the centers and precomputes bin boundaries
func NewCenters(values []float64) (Centers, error) {
	if len(values) < 2 {
		return Centers{}, core.ErrInvalidBins
	}
	boundaries := make([]float64, len(values)-1)
	for i := 0; i < len(values)-1; i++ {
		if !(values[i+1] > values[i]) {
			return Centers{}, core.ErrInvalidBins
		}
		boundaries[i] = values[i] + (values[i+1]-values[i])/2.0
	}
	return Centers{
		values:     append([]float64(nil), values...),
		boundaries: boundaries,
	}, nil
}

// MustCenters is NewCenters for fixed, known-good inputs
func MustCenters(values ...float64) Centers {
	c, err := NewCenters(values)
	if err != nil {
		panic(err)
	}
	return c
}

// Linspace returns n evenly spaced values over [start, stop]
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	floats.Span(out, start, stop)
	return out
}

// Len returns the number of bins
func (c Centers) Len() int { return len(c.values) }

// Values returns a copy of the bin centers
func (c Centers) Values() []float64 { return append([]float64(nil), c.values...) }

// At returns the center of bin i
func (c Centers) At(i int) float64 { return c.values[i] }

// Index returns the bin holding v, or -1 for NaN
func (c Centers) Index(v float64) int {
	if math.IsNaN(v) || len(c.values) == 0 {
		return -1
	}
	// first boundary >= v; len(boundaries) means the open last bin
	return sort.SearchFloat64s(c.boundaries, v)
}

// Indices partitions the positions of values into one index set per bin
func (c Centers) Indices(values []float64) [][]int {
	out := make([][]int, len(c.values))
	for i, v := range values {
		if b := c.Index(v); b >= 0 {
			out[b] = append(out[b], i)
		}
	}
	return out
}

// Counts sums weights per bin. A nil weights slice counts each value once.
func (c Centers) Counts(values, weights []float64) []float64 {
	out := make([]float64, len(c.values))
	for i, v := range values {
		b := c.Index(v)
		if b < 0 {
			continue
		}
		if weights == nil {
			out[b]++
			continue
		}
		if w := weights[i]; !math.IsNaN(w) {
			out[b] += w
		}
	}
	return out
}

// Distribution is Counts normalised to sum to one. An empty sample yields
// the zero vector instead of NaN.
func (c Centers) Distribution(values, weights []float64) []float64 {
	counts := c.Counts(values, weights)
	total := floats.Sum(counts)
	if total == 0 {
		return counts
	}
	floats.Scale(1/total, counts)
	return counts
}
