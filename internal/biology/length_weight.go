// Package biology derives per-stratum biological parameters from the two
// sampling stations: sex composition, average weights, adult fractions and
// the weight proportions used for apportionment.
package biology

import (
	"math"

	"echostrata/domain/survey"
	"echostrata/internal/binning"

	"gonum.org/v1/gonum/stat"
)

// DefaultMinBinCount is the sample size below which a bin's mean weight is
// replaced by the regression prediction
const DefaultMinBinCount = 5

// LengthWeightRegression is the fitted relation W = Coefficient * L^Exponent
type LengthWeightRegression struct {
	Coefficient float64 `json:"coefficient"`
	Exponent    float64 `json:"exponent"`
	Samples     int     `json:"samples"`
	Fitted      bool    `json:"fitted"`
}

// Valid reports whether the fit produced usable parameters
func (r LengthWeightRegression) Valid() bool {
	return r.Fitted
}

// Predict returns the modelled weight at the given length
func (r LengthWeightRegression) Predict(length float64) float64 {
	return r.Coefficient * math.Pow(length, r.Exponent)
}

// LengthWeightKey maps every length bin to a representative fish weight
type LengthWeightKey struct {
	Centers    binning.Centers        `json:"-"`
	Weights    []float64              `json:"weights"`
	Counts     []float64              `json:"counts"`
	Modelled   []bool                 `json:"modelled"`
	Regression LengthWeightRegression `json:"regression"`
}

// FitLengthWeight bins every specimen with a measured length and weight. Bins
// holding at least minCount fish use their mean observed weight; sparser bins
// use the log-log regression fitted over all those specimens.
func FitLengthWeight(specimens []survey.Specimen, centers binning.Centers, minCount int) LengthWeightKey {
	if minCount <= 0 {
		minCount = DefaultMinBinCount
	}

	var lengths, weights, logL, logW []float64
	for _, s := range specimens {
		if !s.HasLengthWeight() || s.Length <= 0 || s.Weight <= 0 {
			continue
		}
		lengths = append(lengths, s.Length)
		weights = append(weights, s.Weight)
		logL = append(logL, math.Log10(s.Length))
		logW = append(logW, math.Log10(s.Weight))
	}

	reg := fitLogLog(logL, logW)

	n := centers.Len()
	key := LengthWeightKey{
		Centers:    centers,
		Weights:    make([]float64, n),
		Counts:     make([]float64, n),
		Modelled:   make([]bool, n),
		Regression: reg,
	}

	for bin, idx := range centers.Indices(lengths) {
		key.Counts[bin] = float64(len(idx))
		mean := 0.0
		if len(idx) > 0 {
			for _, i := range idx {
				mean += weights[i]
			}
			mean /= float64(len(idx))
		}

		switch {
		case len(idx) >= minCount:
			key.Weights[bin] = mean
		case reg.Valid():
			key.Weights[bin] = reg.Predict(centers.At(bin))
			key.Modelled[bin] = true
		default:
			// no usable regression: keep whatever the bin observed (0 when empty)
			key.Weights[bin] = mean
		}
	}
	return key
}

func fitLogLog(x, y []float64) LengthWeightRegression {
	reg := LengthWeightRegression{Samples: len(x)}
	if len(x) < 2 {
		return reg
	}
	distinct := false
	for _, v := range x[1:] {
		if v != x[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return reg
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	coef := math.Pow(10, alpha)
	if math.IsNaN(coef) || math.IsInf(coef, 0) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return reg
	}
	reg.Coefficient = coef
	reg.Exponent = beta
	reg.Fitted = true
	return reg
}

// WeightAt returns the key weight for the bin holding length, 0 for NaN
func (k LengthWeightKey) WeightAt(length float64) float64 {
	bin := k.Centers.Index(length)
	if bin < 0 {
		return 0
	}
	return k.Weights[bin]
}
