package gp_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/models/gp"
	"github.com/posterior/distributions/modeltest"
)

func TestNewValidation(t *testing.T) {
	_, err := gp.New(0, 1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	_, err = gp.New(1, 0)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	_, err = gp.New(math.NaN(), 1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
}

// Gamma(1, 1) prior on the rate gives a geometric(1/2) prior predictive:
// p(x) = 2^-(x+1).
func TestGeometricPriorPredictive(t *testing.T) {
	m, err := gp.New(1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup()
	require.NoError(t, err)

	for x := int64(0); x < 6; x++ {
		score, err := m.ScoreValue(g, x)
		require.NoError(t, err)
		assert.InDelta(t, -float64(x+1)*math.Ln2, score, 1e-12, "x=%d", x)
	}
}

func TestSupportErrors(t *testing.T) {
	m, err := gp.New(1, 1)
	require.NoError(t, err)
	g, err := m.NewGroup()
	require.NoError(t, err)

	assert.ErrorIs(t, g.Add(-1), distributions.ErrInvalidArgument)
	_, err = m.ScoreValue(g, -3)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	assert.ErrorIs(t, g.Remove(1), distributions.ErrInvalidArgument,
		"remove from empty group")
}

func TestCapabilities(t *testing.T) {
	m, err := gp.New(1, 1)
	require.NoError(t, err)
	assert.True(t, distributions.HasScorer[int64](m))
	assert.False(t, distributions.HasVectorScorer[int64](m))
	assert.False(t, distributions.HasMixture[int64](m))

	_, err = distributions.NewMixture[int64](m)
	assert.ErrorIs(t, err, distributions.ErrUnsupported)
}

func TestExamples(t *testing.T) {
	for i, ex := range gp.Examples {
		t.Run(fmt.Sprintf("example_%d", i), func(t *testing.T) {
			m, err := gp.Load(ex.Model)
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
		})
	}
}
