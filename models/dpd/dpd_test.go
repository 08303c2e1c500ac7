package dpd_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/dump"
	"github.com/posterior/distributions/models/dpd"
	"github.com/posterior/distributions/modeltest"
)

func TestNewValidation(t *testing.T) {
	_, err := dpd.New(0, 10)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	_, err = dpd.New(-1, 10)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument)
	_, err = dpd.New(1, 1)
	assert.ErrorIs(t, err, distributions.ErrInvalidArgument, "need at least two outcomes")
}

// With total concentration gamma over dim outcomes, the predictive
// probability of outcome v is (gamma/dim + count_v) / (gamma + total).
func TestSparsePredictive(t *testing.T) {
	m, err := dpd.New(4.0, 1000)
	require.NoError(t, err)
	g, err := m.NewGroup(7, 7, 7, 500)
	require.NoError(t, err)

	alpha0 := 4.0 / 1000

	score, err := m.ScoreValue(g, 7)
	require.NoError(t, err)
	assert.InDelta(t, math.Log((alpha0+3)/(4.0+4)), score, 1e-12)

	score, err = m.ScoreValue(g, 500)
	require.NoError(t, err)
	assert.InDelta(t, math.Log((alpha0+1)/(4.0+4)), score, 1e-12)

	// Never-observed outcomes share the prior mass.
	score, err = m.ScoreValue(g, 999)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(alpha0/(4.0+4)), score, 1e-12)
}

func TestSparseDumpIsSorted(t *testing.T) {
	m, err := dpd.New(1.0, 100)
	require.NoError(t, err)
	g, err := m.NewGroup(42, 3, 99, 3, 42, 3)
	require.NoError(t, err)

	d := g.Dump()
	keysItem, err := d.MustField("keys")
	require.NoError(t, err)
	keys, err := keysItem.AsIntSlice()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 42, 99}, keys)

	countsItem, err := d.MustField("counts")
	require.NoError(t, err)
	counts, err := countsItem.AsIntSlice()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, counts)
}

func TestRemoveEvictsZeroCounts(t *testing.T) {
	m, err := dpd.New(1.0, 100)
	require.NoError(t, err)
	g, err := m.NewGroup(5, 5)
	require.NoError(t, err)

	require.NoError(t, g.Remove(5))
	require.NoError(t, g.Remove(5))
	assert.ErrorIs(t, g.Remove(5), distributions.ErrInvalidArgument)

	empty, err := m.NewGroup()
	require.NoError(t, err)
	assert.True(t, empty.Dump().Equal(g.Dump()))
}

func TestGroupLoadRejectsGarbage(t *testing.T) {
	m, err := dpd.New(1.0, 10)
	require.NoError(t, err)
	g, err := m.NewGroup()
	require.NoError(t, err)

	tests := []struct {
		name   string
		keys   []int64
		counts []int64
	}{
		{name: "length mismatch", keys: []int64{1, 2}, counts: []int64{1}},
		{name: "zero count", keys: []int64{1}, counts: []int64{0}},
		{name: "negative count", keys: []int64{1}, counts: []int64{-2}},
		{name: "duplicate key", keys: []int64{1, 1}, counts: []int64{1, 1}},
		{name: "key out of support", keys: []int64{10}, counts: []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := dump.Map(map[string]dump.Value{
				"keys":   dump.IntList(tt.keys...),
				"counts": dump.IntList(tt.counts...),
			})
			assert.ErrorIs(t, g.Load(bad), distributions.ErrInvalidArgument)
		})
	}
}

func TestCapabilities(t *testing.T) {
	m, err := dpd.New(1.0, 100)
	require.NoError(t, err)
	assert.False(t, distributions.HasScorer[int64](m))
	assert.False(t, distributions.HasVectorScorer[int64](m))
	assert.False(t, distributions.HasMixture[int64](m))
}

func TestExamples(t *testing.T) {
	for i, ex := range dpd.Examples {
		t.Run(fmt.Sprintf("example_%d", i), func(t *testing.T) {
			m, err := dpd.Load(ex.Model)
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
		})
	}
}
