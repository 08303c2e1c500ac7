package gof

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterior/distributions"
)

const (
	sampleCount = 1000
	minFit      = 1e-3
)

func TestDiscreteAcceptsFairSampler(t *testing.T) {
	rng := distributions.NewRNG(0)
	probs := map[int]float64{0: 0.5, 1: 0.3, 2: 0.2}
	samples := make([]int, sampleCount)
	for i := range samples {
		samples[i] = distributions.SampleDiscrete(rng, []float64{0.5, 0.3, 0.2})
	}
	p, err := Discrete(samples, probs)
	require.NoError(t, err)
	assert.Greater(t, p, minFit)
}

func TestDiscreteRejectsBiasedSampler(t *testing.T) {
	rng := distributions.NewRNG(0)
	// Claimed fair, actually skewed.
	probs := map[int]float64{0: 0.5, 1: 0.5}
	samples := make([]int, sampleCount)
	for i := range samples {
		samples[i] = distributions.SampleDiscrete(rng, []float64{0.8, 0.2})
	}
	p, err := Discrete(samples, probs)
	require.NoError(t, err)
	assert.Less(t, p, minFit)
}

func TestDiscreteBinaryPearson(t *testing.T) {
	// 530/470 heads/tails against a fair coin: Pearson chi-square is
	// 2*(30^2/500) = 3.6 on one degree of freedom, p about 0.0578.
	samples := make([]int, 0, sampleCount)
	for i := 0; i < 530; i++ {
		samples = append(samples, 1)
	}
	for i := 0; i < 470; i++ {
		samples = append(samples, 0)
	}
	p, err := Discrete(samples, map[int]float64{0: 0.5, 1: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.0578, p, 0.001)
	assert.Greater(t, p, minFit)
}

func TestDiscretePoolsSparseSupport(t *testing.T) {
	// Four heavy outcomes at their exact expected counts plus 400 singleton
	// outcomes with tiny probabilities. The singletons and the unlisted
	// mass pool into one tail cell that also sits at its expectation, so
	// the statistic is exactly zero.
	samples := make([]int, 0, sampleCount)
	probs := make(map[int]float64)
	for v := 0; v < 4; v++ {
		probs[v] = 0.15
		for i := 0; i < 150; i++ {
			samples = append(samples, v)
		}
	}
	for v := 100; v < 500; v++ {
		probs[v] = 0.0001
		samples = append(samples, v)
	}
	require.Len(t, samples, sampleCount)

	p, err := Discrete(samples, probs)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-9)
}

func TestDiscreteErrors(t *testing.T) {
	_, err := Discrete(nil, map[int]float64{0: 1})
	assert.Error(t, err, "no samples")

	_, err = Discrete([]int{0, 1}, map[int]float64{0: 0.5})
	assert.Error(t, err, "sample outside prob table")
}

func TestDensityAcceptsExponentialSampler(t *testing.T) {
	rng := distributions.NewRNG(0)
	samples := make([]float64, sampleCount)
	densities := make([]float64, sampleCount)
	for i := range samples {
		x := -math.Log(1 - rng.Float64())
		samples[i] = x
		densities[i] = math.Exp(-x)
	}
	p, err := Density(samples, densities)
	require.NoError(t, err)
	assert.Greater(t, p, minFit)
}

func TestDensityAcceptsNormalSampler(t *testing.T) {
	rng := distributions.NewRNG(1)
	norm := 1 / math.Sqrt(2*math.Pi)
	samples := make([]float64, sampleCount)
	densities := make([]float64, sampleCount)
	for i := range samples {
		x := rng.NormFloat64()
		samples[i] = x
		densities[i] = norm * math.Exp(-x*x/2)
	}
	p, err := Density(samples, densities)
	require.NoError(t, err)
	assert.Greater(t, p, minFit)
}

func TestDensityRejectsWrongDensity(t *testing.T) {
	rng := distributions.NewRNG(0)
	norm := 1 / math.Sqrt(2*math.Pi)
	samples := make([]float64, sampleCount)
	densities := make([]float64, sampleCount)
	for i := range samples {
		// Samples from a wide normal, densities claiming a standard one.
		x := 3 * rng.NormFloat64()
		samples[i] = x
		densities[i] = norm * math.Exp(-x*x/2)
	}
	p, err := Density(samples, densities)
	require.NoError(t, err)
	assert.Less(t, p, minFit)
}

func TestDensityErrors(t *testing.T) {
	_, err := Density([]float64{1, 2}, []float64{0.1})
	assert.Error(t, err, "length mismatch")

	_, err = Density(nil, nil)
	assert.Error(t, err, "no samples")
}

func TestKolmogorovSmirnovUniform(t *testing.T) {
	rng := distributions.NewRNG(2)
	samples := make([]float64, sampleCount)
	for i := range samples {
		samples[i] = rng.Float64()
	}
	uniformCDF := func(x float64) float64 {
		return math.Min(1, math.Max(0, x))
	}
	p := KolmogorovSmirnov(samples, uniformCDF)
	assert.Greater(t, p, minFit)

	// Same samples against the wrong CDF.
	squaredCDF := func(x float64) float64 {
		x = math.Min(1, math.Max(0, x))
		return x * x
	}
	assert.Less(t, KolmogorovSmirnov(samples, squaredCDF), minFit)
}
