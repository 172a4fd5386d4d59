package biology

import (
	"math"
	"testing"

	"echostrata/domain/survey"
	"echostrata/internal/binning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestFitLengthWeight(t *testing.T) {
	centers := binning.MustCenters(10, 20, 30)

	// every fish lies exactly on W = 0.001 L^3
	var specimens []survey.Specimen
	for range 5 {
		specimens = append(specimens, survey.Specimen{Haul: 1, Sex: survey.SexMale, Length: 10, Weight: 1, Age: nan})
	}
	specimens = append(specimens,
		survey.Specimen{Haul: 1, Sex: survey.SexFemale, Length: 20, Weight: 8, Age: 2},
		survey.Specimen{Haul: 1, Sex: survey.SexFemale, Length: 20, Weight: 8, Age: 3},
		survey.Specimen{Haul: 1, Sex: survey.SexFemale, Length: 25, Weight: nan, Age: 3},
	)

	key := FitLengthWeight(specimens, centers, DefaultMinBinCount)

	require.True(t, key.Regression.Valid())
	assert.Equal(t, 7, key.Regression.Samples)
	assert.InDelta(t, 0.001, key.Regression.Coefficient, 1e-9)
	assert.InDelta(t, 3.0, key.Regression.Exponent, 1e-9)

	assert.Equal(t, []float64{5, 2, 0}, key.Counts)
	assert.Equal(t, []bool{false, true, true}, key.Modelled)
	assert.InDelta(t, 1.0, key.Weights[0], 1e-12)
	assert.InDelta(t, 8.0, key.Weights[1], 1e-9)
	assert.InDelta(t, 27.0, key.Weights[2], 1e-9)

	assert.InDelta(t, 8.0, key.WeightAt(21), 1e-9)
	assert.Equal(t, 0.0, key.WeightAt(nan))
}

func TestFitLengthWeight_NoRegression(t *testing.T) {
	centers := binning.MustCenters(10, 20, 30)
	key := FitLengthWeight([]survey.Specimen{
		{Haul: 1, Length: 20, Weight: 4, Age: nan},
	}, centers, DefaultMinBinCount)

	assert.False(t, key.Regression.Valid())
	assert.Equal(t, []float64{0, 4, 0}, key.Weights)
	assert.Equal(t, []bool{false, false, false}, key.Modelled)
}

func compositionFixture() ([]survey.Haul, []survey.LengthSample, []survey.Specimen, LengthWeightKey) {
	centers := binning.MustCenters(10, 20, 30)
	key := LengthWeightKey{Centers: centers, Weights: []float64{1, 8, 27}}

	hauls := []survey.Haul{{ID: 1, Stratum: 1, FractionHake: 1}}
	lengths := []survey.LengthSample{
		{Haul: 1, Sex: survey.SexMale, Length: 10, Count: 3},
		{Haul: 1, Sex: survey.SexFemale, Length: 20, Count: 1},
		{Haul: 99, Sex: survey.SexFemale, Length: 20, Count: 7},
	}
	specimens := []survey.Specimen{
		{Haul: 1, Sex: survey.SexMale, Length: 20, Weight: 8, Age: 2},
		{Haul: 1, Sex: 9, Length: 30, Weight: 27, Age: nan},
		{Haul: 1, Sex: survey.SexFemale, Length: 30, Weight: nan, Age: nan},
	}
	return hauls, lengths, specimens, key
}

func TestCompositionEstimator_Estimate(t *testing.T) {
	hauls, lengths, specimens, key := compositionFixture()
	est := NewCompositionEstimator(key.Centers, nil)

	comps, unmapped := est.Estimate(hauls, lengths, specimens, key)

	assert.Equal(t, []survey.HaulID{99}, unmapped)
	require.Contains(t, comps, survey.StratumID(1))
	c := comps[1]

	// station 1: 4 fish; station 2: 1 sexed specimen, the unsexed one is left out
	assert.InDelta(t, 5.0, c.SampleCount, 1e-12)
	assert.InDelta(t, 0.8, c.MaleProportion, 1e-12)
	assert.InDelta(t, 0.2, c.FemaleProportion, 1e-12)
	assert.InDelta(t, 0.0, c.UnsexedProportion, 1e-12)
	assert.InDelta(t, 1.0, c.MaleProportion+c.FemaleProportion+c.UnsexedProportion, 1e-12)

	// 4/5 * (3/4*1 + 1/4*8) + 1/5 * 8
	assert.InDelta(t, 3.8, c.AverageWeight, 1e-9)
	// station weights 0.8 / 0.2
	assert.InDelta(t, 2.4, c.AverageWeightMale, 1e-9)
	// no station-2 females: station 1 alone
	assert.InDelta(t, 8.0, c.AverageWeightFemale, 1e-9)
}

func TestCompositionEstimator_UnsexedSpecimensExcluded(t *testing.T) {
	_, _, _, key := compositionFixture()
	est := NewCompositionEstimator(key.Centers, nil)

	comps, _ := est.Estimate(
		[]survey.Haul{{ID: 1, Stratum: 1}},
		[]survey.LengthSample{{Haul: 1, Sex: survey.SexMale, Length: 10, Count: 4}},
		[]survey.Specimen{
			{Haul: 1, Sex: survey.SexMale, Length: 10, Weight: 1, Age: 1},
			{Haul: 1, Sex: survey.SexUnsexed, Length: 30, Weight: 27, Age: 3},
			{Haul: 1, Sex: survey.SexUnsexed, Length: 30, Weight: 27, Age: 3},
			{Haul: 1, Sex: survey.SexUnsexed, Length: 30, Weight: 27, Age: 3},
		}, key)

	require.Contains(t, comps, survey.StratumID(1))
	c := comps[1]
	assert.InDelta(t, 1.0, c.MaleProportion, 1e-12)
	assert.InDelta(t, 0.0, c.UnsexedProportion, 1e-12)
	assert.InDelta(t, 5.0, c.SampleCount, 1e-12)
	// both stations hold only 10 cm fish once the unsexed specimens drop out
	assert.InDelta(t, 1.0, c.AverageWeight, 1e-9)
}

func TestCompositionEstimator_Idempotent(t *testing.T) {
	hauls, lengths, specimens, key := compositionFixture()
	est := NewCompositionEstimator(key.Centers, nil)

	first, _ := est.Estimate(hauls, lengths, specimens, key)
	second, _ := est.Estimate(hauls, lengths, specimens, key)
	assert.Equal(t, first, second)
}

func TestCompositionEstimator_EmptyStratumAbsent(t *testing.T) {
	_, _, _, key := compositionFixture()
	est := NewCompositionEstimator(key.Centers, nil)

	comps, _ := est.Estimate(
		[]survey.Haul{{ID: 1, Stratum: 1}, {ID: 2, Stratum: 2}},
		[]survey.LengthSample{{Haul: 1, Sex: survey.SexMale, Length: 10, Count: 1}},
		nil, key)

	assert.Contains(t, comps, survey.StratumID(1))
	assert.NotContains(t, comps, survey.StratumID(2))
	assert.Equal(t, 1.0, comps[1].AverageWeight)
	assert.Equal(t, 1.0, comps[1].AverageWeightMale)
	assert.Equal(t, 0.0, comps[1].AverageWeightFemale)
}

func TestCompositionMidpoint(t *testing.T) {
	a := Composition{MaleProportion: 0.2, AverageWeight: 1}
	b := Composition{MaleProportion: 0.6, AverageWeight: 3}
	m := MidpointComposition(a, b)
	assert.InDelta(t, 0.4, m.MaleProportion, 1e-12)
	assert.InDelta(t, 2.0, m.AverageWeight, 1e-12)
}

func TestAdultFractions(t *testing.T) {
	ages := binning.MustCenters(1, 2, 3)
	hauls := []survey.Haul{{ID: 1, Stratum: 1}, {ID: 2, Stratum: 2}, {ID: 3, Stratum: 3}}
	specimens := []survey.Specimen{
		{Haul: 1, Length: 20, Weight: 2, Age: 1},
		{Haul: 1, Length: 40, Weight: 6, Age: 3},
		{Haul: 1, Length: 40, Weight: 6, Age: nan},
		{Haul: 2, Length: 40, Weight: 0, Age: 1},
		{Haul: 3, Length: 40, Weight: 5, Age: 2},
	}

	got := AdultFractions(hauls, specimens, ages)

	require.Len(t, got, 3)
	assert.InDelta(t, 0.75, got[1].Weight, 1e-12)
	assert.InDelta(t, 0.5, got[1].Number, 1e-12)
	// zero total weight counts as no young weight
	assert.Equal(t, 1.0, got[2].Weight)
	assert.Equal(t, 0.0, got[2].Number)
	assert.Equal(t, AgeFraction{Weight: 1, Number: 1}, got[3])
}

func proportionFixture() ([]survey.Haul, []survey.LengthSample, []survey.Specimen, LengthWeightKey, *ProportionEstimator) {
	lengthCenters := binning.MustCenters(10, 20)
	ageCenters := binning.MustCenters(1, 2)
	key := LengthWeightKey{Centers: lengthCenters, Weights: []float64{1, 8}}
	hauls := []survey.Haul{{ID: 1, Stratum: 1}}
	specimens := []survey.Specimen{
		{Haul: 1, Sex: survey.SexMale, Length: 10, Weight: 1, Age: 1},
		{Haul: 1, Sex: survey.SexFemale, Length: 20, Weight: 8, Age: 2},
		{Haul: 1, Sex: survey.SexFemale, Length: 20, Weight: 8, Age: nan},
	}
	lengths := []survey.LengthSample{
		{Haul: 1, Sex: survey.SexMale, Length: 10, Count: 2},
		{Haul: 1, Sex: survey.SexFemale, Length: 20, Count: 1},
	}
	return hauls, lengths, specimens, key, NewProportionEstimator(lengthCenters, ageCenters, nil)
}

func TestProportionEstimator_KeyWeights(t *testing.T) {
	hauls, lengths, specimens, key, est := proportionFixture()

	got := est.Estimate(hauls, lengths, specimens, nil, key)

	require.Contains(t, got, survey.StratumID(1))
	p := got[1]
	assert.InDelta(t, 9.0, p.AgedWeight, 1e-12)
	assert.InDelta(t, 10.0, p.UnagedWeight, 1e-12)
	assert.InDelta(t, 1.0/19.0, p.Aged[0][0][0], 1e-12)
	assert.InDelta(t, 8.0/19.0, p.Aged[1][1][1], 1e-12)
	assert.Equal(t, []float64{1, 0}, p.Unaged[0])
	assert.Equal(t, []float64{0, 1}, p.Unaged[1])
	assert.InDelta(t, 2.0/19.0, p.UnagedShare[0], 1e-12)
	assert.InDelta(t, 8.0/19.0, p.UnagedShare[1], 1e-12)
	assert.Equal(t, 0.0, p.UnagedShare[2])
	assert.InDelta(t, 1.0, p.Total(), 1e-12)
}

func TestProportionEstimator_CatchRescaling(t *testing.T) {
	hauls, lengths, specimens, key, est := proportionFixture()
	catches := []survey.CatchRecord{{Haul: 1, Weight: 29}}

	got := est.Estimate(hauls, lengths, specimens, catches, key)

	p := got[1]
	assert.InDelta(t, 20.0, p.UnagedWeight, 1e-12)
	assert.InDelta(t, 1.0/29.0, p.Aged[0][0][0], 1e-12)
	assert.InDelta(t, 4.0/29.0, p.UnagedShare[0], 1e-12)
	assert.InDelta(t, 16.0/29.0, p.UnagedShare[1], 1e-12)
	assert.InDelta(t, 1.0, p.Total(), 1e-12)
}

func TestProportionEstimator_HaulWithoutCatchKeepsKeyWeight(t *testing.T) {
	_, _, _, key, est := proportionFixture()
	hauls := []survey.Haul{{ID: 1, Stratum: 1}, {ID: 2, Stratum: 1}}
	lengths := []survey.LengthSample{
		{Haul: 1, Sex: survey.SexMale, Length: 10, Count: 10},
		{Haul: 2, Sex: survey.SexFemale, Length: 10, Count: 100},
	}
	catches := []survey.CatchRecord{{Haul: 1, Weight: 20}}

	p := est.Estimate(hauls, lengths, nil, catches, key)[1]

	// haul 1 rescaled from 10 to its catch of 20, haul 2 keeps 100 x 1
	assert.InDelta(t, 120.0, p.UnagedWeight, 1e-12)
	assert.InDelta(t, 20.0/120.0, p.UnagedShare[0], 1e-12)
	assert.InDelta(t, 100.0/120.0, p.UnagedShare[1], 1e-12)
	assert.InDelta(t, 1.0, p.Total(), 1e-12)
}

func TestProportionEstimator_CatchBelowSpecimenWeight(t *testing.T) {
	hauls, lengths, specimens, key, est := proportionFixture()
	catches := []survey.CatchRecord{{Haul: 1, Weight: 5}}

	p := est.Estimate(hauls, lengths, specimens, catches, key)[1]

	assert.Equal(t, 0.0, p.UnagedWeight)
	assert.InDelta(t, 1.0, p.Total(), 1e-12)
}

func TestMidpointProportions(t *testing.T) {
	a := NewProportions(2, 2)
	b := NewProportions(2, 2)
	a.Aged[0][1][1] = 0.4
	b.Aged[0][1][1] = 0.2
	a.UnagedShare[2] = 1

	m := MidpointProportions(a, b)
	assert.InDelta(t, 0.3, m.Aged[0][1][1], 1e-12)
	assert.InDelta(t, 0.5, m.UnagedShare[2], 1e-12)
	assert.Equal(t, 0.4, a.Aged[0][1][1])
}
