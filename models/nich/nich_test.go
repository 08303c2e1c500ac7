package nich_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/models/nich"
	"github.com/posterior/distributions/modeltest"
)

func TestNewValidation(t *testing.T) {
	_, err := nich.New(0, 0, 1, 1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument, "kappa must be positive")
	_, err = nich.New(0, 1, 0, 1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument, "sigmasq must be positive")
	_, err = nich.New(0, 1, 1, -1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument, "nu must be positive")
	_, err = nich.New(math.NaN(), 1, 1, 1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
}

// With mu=0, kappa=1, sigmasq=1, nu=1 the prior predictive is a Cauchy with
// scale sqrt(2): log p(0) = -log(pi * sqrt(2)).
func TestCauchyPriorPredictive(t *testing.T) {
	m, err := nich.New(0, 1, 1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup()
	require.NoError(t, err)

	score, err := m.ScoreValue(g, 0)
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(math.Pi*math.Sqrt2), score, 1e-12)
}

func TestPredictiveSymmetry(t *testing.T) {
	m, err := nich.New(0, 1, 1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup()
	require.NoError(t, err)

	var prev float64
	for i, x := range []float64{0.5, 1, 2, 5} {
		pos, err := m.ScoreValue(g, x)
		require.NoError(t, err)
		neg, err := m.ScoreValue(g, -x)
		require.NoError(t, err)
		assert.InDelta(t, pos, neg, 1e-12, "predictive must be symmetric about mu")
		if i > 0 {
			assert.Less(t, pos, prev, "density must fall away from mu")
		}
		prev = pos
	}
}

func TestPosteriorTracksData(t *testing.T) {
	m, err := nich.New(0, 1, 1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup(10, 10.5, 9.5, 10, 10)
	require.NoError(t, err)

	near, err := m.ScoreValue(g, 10)
	require.NoError(t, err)
	far, err := m.ScoreValue(g, 0)
	require.NoError(t, err)
	assert.Greater(t, near, far, "posterior must concentrate near the data")
}

func TestRejectsNonFinite(t *testing.T) {
	m, err := nich.New(0, 1, 1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup()
	require.NoError(t, err)

	assert.ErrorIs(t, g.Add(math.NaN()), distributions.ErrInvalidArgument)
	assert.ErrorIs(t, g.Add(math.Inf(1)), distributions.ErrInvalidArgument)
	_, err = m.ScoreValue(g, math.Inf(-1))
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
}

func TestExamples(t *testing.T) {
	for i, ex := range nich.Examples {
		t.Run(fmt.Sprintf("example_%d", i), func(t *testing.T) {
			m, err := nich.Load(ex.Model)
			require.NoError(t, err)
			modeltest.CheckFixture(t, m, ex.Model, ex.Values)

			t.Run("interface", func(t *testing.T) {
				modeltest.CheckInterface(t, m, ex.Values)
			})
			t.Run("add_remove", func(t *testing.T) {
				modeltest.CheckAddRemove(t, m, 0)
			})
			t.Run("add_merge", func(t *testing.T) {
				modeltest.CheckAddMerge(t, m, ex.Values, 0)
			})
			t.Run("group_merge", func(t *testing.T) {
				modeltest.CheckGroupMerge(t, m, 0)
			})
			t.Run("sample_seed", func(t *testing.T) {
				modeltest.CheckSampleSeed(t, m, 0)
			})
			t.Run("sample_value", func(t *testing.T) {
				modeltest.CheckSampleValueDensity(t, m, ex.Values, 0)
			})
			t.Run("scorer", func(t *testing.T) {
				modeltest.CheckScorer(t, m, ex.Values)
			})
			t.Run("mixture_runs", func(t *testing.T) {
				modeltest.CheckMixtureRuns(t, m, ex.Values, 0)
			})
			t.Run("mixture_score", func(t *testing.T) {
				modeltest.CheckMixtureScore(t, m, ex.Values, 0)
			})
		})
	}
}
