package acoustics

import (
	"math"
	"testing"

	"echostrata/domain/survey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sigma(length float64) float64 {
	return math.Pow(10, (20*math.Log10(length)-68)/10)
}

func TestTSRegression(t *testing.T) {
	assert.InDelta(t, -48.0, HakeRegression.TargetStrength(10), 1e-12)
	assert.InDelta(t, math.Pow(10, -4.8), HakeRegression.SigmaBS(10), 1e-18)
	assert.InDelta(t, -48.0, ToDecibel(ToLinear(-48.0)), 1e-12)
}

func TestHaulCrossSections_CountWeighted(t *testing.T) {
	e := NewEstimator(HakeRegression, nil)

	lengths := []survey.LengthSample{
		{Haul: 1, Length: 20, Count: 3, Sex: survey.SexMale},
		{Haul: 1, Length: 40, Count: 1, Sex: survey.SexFemale},
	}
	specimens := []survey.Specimen{
		{Haul: 1, Length: 30, Weight: 0.2, Age: 2, Sex: survey.SexMale},
		{Haul: 1, Length: 50, Weight: math.NaN(), Age: 3}, // no weight: ignored
		{Haul: 2, Length: 10, Weight: 0.01, Age: math.NaN()},
	}

	got := e.HaulCrossSections(lengths, specimens)
	require.Len(t, got, 2)

	want1 := (3*sigma(20) + sigma(40) + sigma(30)) / 5
	assert.Equal(t, survey.HaulID(1), got[0].Haul)
	assert.InDelta(t, want1, got[0].SigmaBS, 1e-15)
	assert.Equal(t, 5.0, got[0].SampleCount)

	// specimen-only haul
	assert.Equal(t, survey.HaulID(2), got[1].Haul)
	assert.InDelta(t, sigma(10), got[1].SigmaBS, 1e-15)
}

func TestHaulCrossSections_LengthOnlyHaulExcluded(t *testing.T) {
	e := NewEstimator(HakeRegression, nil)

	got := e.HaulCrossSections([]survey.LengthSample{{Haul: 7, Length: 25, Count: 4}}, nil)
	assert.Empty(t, got)

	got = e.HaulCrossSections(
		[]survey.LengthSample{
			{Haul: 7, Length: 25, Count: 4},
			{Haul: 8, Length: 40, Count: 2},
		},
		[]survey.Specimen{{Haul: 8, Length: 20, Weight: 0.1, Age: 2}})
	require.Len(t, got, 1)
	assert.Equal(t, survey.HaulID(8), got[0].Haul)
	assert.InDelta(t, (2*sigma(40)+sigma(20))/3, got[0].SigmaBS, 1e-15)
}

func TestHaulCrossSections_SkipsUnusableRows(t *testing.T) {
	e := NewEstimator(HakeRegression, nil)
	got := e.HaulCrossSections([]survey.LengthSample{
		{Haul: 1, Length: 0, Count: 4},
		{Haul: 1, Length: 20, Count: 0},
		{Haul: 1, Length: math.NaN(), Count: 2},
	}, nil)
	assert.Empty(t, got)
}

func TestStratumCrossSections_UnweightedHaulMean(t *testing.T) {
	e := NewEstimator(HakeRegression, nil)

	hauls := []survey.Haul{{ID: 1, Stratum: 1}, {ID: 2, Stratum: 1}, {ID: 3, Stratum: 2}}
	haulSigma := []HaulCrossSection{
		{Haul: 1, SigmaBS: 1e-5, SampleCount: 100},
		{Haul: 2, SigmaBS: 3e-5, SampleCount: 1},
		{Haul: 3, SigmaBS: 2e-5, SampleCount: 10},
		{Haul: 99, SigmaBS: 5e-5, SampleCount: 10},
	}

	table, unmapped := e.StratumCrossSections(hauls, haulSigma)
	assert.Equal(t, []survey.HaulID{99}, unmapped)
	require.Len(t, table, 2)
	assert.InDelta(t, 4*math.Pi*2e-5, table[1], 1e-18)
	assert.InDelta(t, 4*math.Pi*2e-5, table[2], 1e-18)
}
