package dd_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/models/dd"
	"github.com/posterior/distributions/modeltest"
)

func TestNewValidation(t *testing.T) {
	_, err := dd.New(1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument, "need at least two outcomes")
	_, err = dd.New(1, 0)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	_, err = dd.New(1, -1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)

	big := make([]float64, dd.MaxDim+1)
	for i := range big {
		big[i] = 1
	}
	_, err = dd.New(big...)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
}

// Categorical posterior over four outcomes with a unit prior: after
// observing [0, 1, 1, 2, 2, 2, 3] the predictive probability of outcome v is
// (1 + count_v) / (4 + 7).
func TestPosteriorPredictive(t *testing.T) {
	m, err := dd.New(1, 1, 1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup(0, 1, 1, 2, 2, 2, 3)
	require.NoError(t, err)
	require.Equal(t, int64(7), g.Count())

	expected := []float64{2.0 / 11, 3.0 / 11, 4.0 / 11, 2.0 / 11}
	for v, want := range expected {
		score, err := m.ScoreValue(g, int64(v))
		require.NoError(t, err)
		assert.InDelta(t, math.Log(want), score, 1e-12, "outcome %d", v)
	}

	// Predictive probabilities over the full support sum to one.
	var sum float64
	for v := int64(0); v < 4; v++ {
		score, err := m.ScoreValue(g, v)
		require.NoError(t, err)
		sum += math.Exp(score)
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestScoreGroupMatchesChainRule(t *testing.T) {
	m, err := dd.New(1, 1, 1, 1)
	require.NoError(t, err)
	values := []int64{0, 1, 1, 2, 2, 2, 3}

	g, err := m.NewGroup()
	require.NoError(t, err)
	var chain float64
	for _, v := range values {
		s, err := m.ScoreValue(g, v)
		require.NoError(t, err)
		chain += s
		require.NoError(t, g.Add(v))
	}

	total, err := m.ScoreGroup(g)
	require.NoError(t, err)
	assert.InDelta(t, chain, total, 1e-10)
}

func TestSampleGroupStaysInSupport(t *testing.T) {
	m, err := dd.New(1, 1, 1, 1)
	require.NoError(t, err)
	rng := distributions.NewRNG(0)
	values, err := m.SampleGroup(rng, 20)
	require.NoError(t, err)
	require.Len(t, values, 20)
	for _, v := range values {
		assert.GreaterOrEqual(t, v, int64(0))
		assert.Less(t, v, int64(4))
	}
}

func TestSupportErrors(t *testing.T) {
	m, err := dd.New(1, 1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup()
	require.NoError(t, err)

	assert.ErrorIs(t, g.Add(3), distributions.ErrInvalidArgument)
	assert.ErrorIs(t, g.Add(-1), distributions.ErrInvalidArgument)
	_, err = m.ScoreValue(g, 3)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
}

func TestGroupModelMismatch(t *testing.T) {
	m1, err := dd.New(1, 1, 1)
	require.NoError(t, err)
	m2, err := dd.New(1, 1, 1)
	require.NoError(t, err)

	g, err := m1.NewGroup(0, 1)
	require.NoError(t, err)
	_, err = m2.ScoreGroup(g)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument,
		"groups are bound to the model that created them")
}

// Reloading a model with a different support size must not leave groups
// bound to it in a state where scoring or updating can index past their
// count vectors.
func TestModelReloadDimMismatch(t *testing.T) {
	m, err := dd.New(1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup(0, 1)
	require.NoError(t, err)

	wider, err := dd.New(1, 1, 1, 1)
	require.NoError(t, err)
	require.NoError(t, m.Load(wider.Dump()))

	_, err = m.ScoreValue(g, 3)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	_, err = m.ScoreGroup(g)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	assert.ErrorIs(t, g.Add(3), distributions.ErrInvalidArgument)
	assert.ErrorIs(t, g.Remove(0), distributions.ErrInvalidArgument)

	fresh, err := m.NewGroup(3)
	require.NoError(t, err)
	assert.ErrorIs(t, fresh.Merge(g), distributions.ErrInvalidArgument)
	assert.ErrorIs(t, g.Merge(fresh), distributions.ErrInvalidArgument)

	// A group dumped before the reload reloads at the new dim or not at all.
	stale := g.Dump()
	assert.ErrorIs(t, fresh.Load(stale), distributions.ErrInvalidArgument)
}

func TestExamples(t *testing.T) {
	for i, ex := range dd.Examples {
		t.Run(fmt.Sprintf("example_%d", i), func(t *testing.T) {
			m, err := dd.Load(ex.Model)
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
				modeltest.CheckSampleValueDiscrete(t, m, ex.Values, 0)
			})
			t.Run("sample_group", func(t *testing.T) {
				modeltest.CheckSampleGroup(t, m, 0)
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
