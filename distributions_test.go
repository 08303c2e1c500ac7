package distributions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoresToProbs(t *testing.T) {
	probs := ScoresToProbs([]float64{math.Log(0.2), math.Log(0.3), math.Log(0.5)})
	require.Len(t, probs, 3)
	assert.InDelta(t, 0.2, probs[0], 1e-12)
	assert.InDelta(t, 0.3, probs[1], 1e-12)
	assert.InDelta(t, 0.5, probs[2], 1e-12)
}

func TestScoresToProbsShiftInvariant(t *testing.T) {
	a := ScoresToProbs([]float64{1, 2, 3})
	b := ScoresToProbs([]float64{1001, 1002, 1003})
	for i := range a {
		assert.InDelta(t, a[i], b[i], 1e-12, "probs must not change under a constant shift")
	}
}

func TestScoresToProbsExtremeScores(t *testing.T) {
	// Raw exponentiation would overflow; max-subtraction must keep this
	// finite and normalized.
	probs := ScoresToProbs([]float64{-1000, -999, -1000})
	var sum float64
	for _, p := range probs {
		require.False(t, math.IsNaN(p))
		require.False(t, math.IsInf(p, 0))
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestScoresToProbsEmpty(t *testing.T) {
	assert.Empty(t, ScoresToProbs(nil))
}

func TestSampleDiscrete(t *testing.T) {
	rng := NewRNG(0)

	assert.Equal(t, 0, SampleDiscrete(rng, []float64{1}))
	assert.Equal(t, 1, SampleDiscrete(rng, []float64{0, 1, 0}))

	// Frequencies track the weights.
	counts := make([]int, 3)
	for i := 0; i < 10000; i++ {
		counts[SampleDiscrete(rng, []float64{0.1, 0.3, 0.6})]++
	}
	assert.InDelta(t, 1000, counts[0], 150)
	assert.InDelta(t, 3000, counts[1], 250)
	assert.InDelta(t, 6000, counts[2], 250)
}
