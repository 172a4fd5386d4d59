// Package acoustics converts fish lengths into backscattering cross sections
// and averages them per haul and per stratum.
package acoustics

import (
	"math"
	"slices"

	"echostrata/domain/core"
	"echostrata/domain/survey"
	"echostrata/internal/logging"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// TSRegression is the species target-strength/length relation
// TS = Slope*log10(L) + Intercept
type TSRegression struct {
	Slope     float64 `yaml:"slope" json:"slope" validate:"required"`
	Intercept float64 `yaml:"intercept" json:"intercept"`
}

// HakeRegression is the Pacific hake relation (TS = 20 log10 L - 68)
var HakeRegression = TSRegression{Slope: 20.0, Intercept: -68.0}

// TargetStrength returns TS in dB re 1 m^2 for a fish of the given length
func (r TSRegression) TargetStrength(length float64) float64 {
	return r.Slope*math.Log10(length) + r.Intercept
}

// SigmaBS returns the linear-domain differential backscattering cross section
func (r TSRegression) SigmaBS(length float64) float64 {
	return ToLinear(r.TargetStrength(length))
}

// ToLinear converts decibels to the linear domain
func ToLinear(db float64) float64 {
	return math.Pow(10.0, db/10.0)
}

// ToDecibel converts a linear-domain value to decibels
func ToDecibel(linear float64) float64 {
	return 10.0 * math.Log10(linear)
}

// HaulCrossSection is the count-weighted mean sigma_bs of one haul
type HaulCrossSection struct {
	Haul        survey.HaulID `json:"haul_num"`
	SigmaBS     float64       `json:"sigma_bs"`
	SampleCount float64       `json:"sample_count"`
}

// CrossSectionTable maps stratum to mean backscattering cross section (4*pi*mean sigma_bs)
type CrossSectionTable map[survey.StratumID]float64

// Estimator computes haul and stratum cross sections
type Estimator struct {
	regression TSRegression
	logger     *zap.Logger
}

// NewEstimator creates a cross-section estimator for the given TS regression
func NewEstimator(regression TSRegression, logger *zap.Logger) *Estimator {
	return &Estimator{
		regression: regression,
		logger:     logging.OrNop(logger).Named("acoustics"),
	}
}

type haulAccumulator struct {
	sum   float64
	count float64
}

// HaulCrossSections averages sigma_bs over both sampling stations for every
// haul with at least one specimen measured for length and weight. Station-1
// rows weigh by their count, station-2 specimens weigh one each. Hauls with
// station-1 lengths only get no cross section.
func (e *Estimator) HaulCrossSections(lengths []survey.LengthSample, specimens []survey.Specimen) []HaulCrossSection {
	acc := make(map[survey.HaulID]*haulAccumulator)
	add := func(haul survey.HaulID, length, count float64) {
		if !(length > 0) || !(count > 0) || math.IsInf(length, 0) {
			return
		}
		a, ok := acc[haul]
		if !ok {
			a = &haulAccumulator{}
			acc[haul] = a
		}
		a.sum += e.regression.SigmaBS(length) * count
		a.count += count
	}

	for _, s := range specimens {
		if s.HasLengthWeight() {
			add(s.Haul, s.Length, 1)
		}
	}
	for _, l := range lengths {
		if _, ok := acc[l.Haul]; ok {
			add(l.Haul, l.Length, l.Count)
		}
	}

	hauls := make([]survey.HaulID, 0, len(acc))
	for h := range acc {
		hauls = append(hauls, h)
	}
	slices.Sort(hauls)

	out := make([]HaulCrossSection, 0, len(hauls))
	for _, h := range hauls {
		a := acc[h]
		sigma, _ := core.SafeDiv(a.sum, a.count)
		out = append(out, HaulCrossSection{Haul: h, SigmaBS: sigma, SampleCount: a.count})
	}
	return out
}

// StratumCrossSections takes the unweighted mean of haul cross sections in
// each stratum and scales it by 4*pi. Hauls absent from the haul→stratum
// mapping are excluded and reported.
func (e *Estimator) StratumCrossSections(hauls []survey.Haul, haulSigma []HaulCrossSection) (CrossSectionTable, []survey.HaulID) {
	haulStratum := make(map[survey.HaulID]survey.StratumID, len(hauls))
	for _, h := range hauls {
		haulStratum[h.ID] = h.Stratum
	}

	grouped := make(map[survey.StratumID][]float64)
	var unmapped []survey.HaulID
	for _, hs := range haulSigma {
		stratum, ok := haulStratum[hs.Haul]
		if !ok {
			unmapped = append(unmapped, hs.Haul)
			continue
		}
		grouped[stratum] = append(grouped[stratum], hs.SigmaBS)
	}
	if len(unmapped) > 0 {
		e.logger.Warn("hauls excluded from cross section: no stratum mapping",
			zap.Ints("hauls", haulInts(unmapped)), zap.Error(core.ErrUnmappedHaul))
	}

	out := make(CrossSectionTable, len(grouped))
	for stratum, values := range grouped {
		mean, err := stats.Mean(values)
		if err != nil {
			continue
		}
		out[stratum] = 4.0 * math.Pi * mean
	}
	return out, unmapped
}

func haulInts(hauls []survey.HaulID) []int {
	out := make([]int, len(hauls))
	for i, h := range hauls {
		out[i] = int(h)
	}
	return out
}
