// Package modeltest is a verification harness for model families. Each
// family's test file loads its example fixtures and runs the generic checks
// here, so every family is held to the same contract: groups are exact
// sufficient statistics, predictive scores obey the chain rule, and samplers
// agree with scorers under goodness-of-fit testing.
package modeltest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/dump"
	"github.com/posterior/distributions/gof"
)

const (
	// DataCount is the number of synthetic observations used by the
	// add/remove and seed checks.
	DataCount = 20

	// SampleCount is the number of draws used by the goodness-of-fit
	// checks.
	SampleCount = 1000

	// MinGoodnessOfFit is the p-value below which a sampler is declared
	// inconsistent with its scorer.
	MinGoodnessOfFit = 1e-3
)

// floatTolerance bounds the relative drift allowed between float statistics
// accumulated in different orders; floatAbsTolerance is the absolute floor
// for statistics whose exact value is zero, where cancellation leaves a
// residue no relative bound can absorb.
const (
	floatTolerance    = 1e-8
	floatAbsTolerance = 1e-12
)

// CheckFixture verifies the fixture itself: at least seven values, all in
// support, and a model dump that round-trips.
func CheckFixture[V any](t *testing.T, m distributions.Model[V], modelDump dump.Value, values []V) {
	t.Helper()
	require.GreaterOrEqual(t, len(values), 7, "add more example values")
	requireClose(t, modelDump, m.Dump(), "model dump round trip")
	g, err := m.NewGroup()
	require.NoError(t, err)
	for _, v := range values {
		require.NoError(t, g.Add(v), "example value outside support")
	}
}

// CheckInterface verifies the core group lifecycle: incremental adds match
// batch construction, dumps round-trip through Init+Load, and scoring and
// sampling run without error.
func CheckInterface[V any](t *testing.T, m distributions.Model[V], values []V) {
	t.Helper()
	rng := distributions.NewRNG(0)

	group1, err := m.NewGroup()
	require.NoError(t, err)
	group1.Init()
	for _, v := range values {
		require.NoError(t, group1.Add(v))
	}
	group2, err := m.NewGroup(values...)
	require.NoError(t, err)
	requireClose(t, group1.Dump(), group2.Dump(), "incremental adds vs batch create")

	group3, err := m.NewGroup(values...)
	require.NoError(t, err)
	dumped := group3.Dump()
	group3.Init()
	require.NoError(t, group3.Load(dumped))
	requireClose(t, dumped, group3.Dump(), "group dump round trip")

	for _, v := range values {
		require.NoError(t, group2.Remove(v))
	}
	require.Equal(t, int64(0), group2.Count())
	require.NoError(t, group2.Merge(group1))
	require.Equal(t, group1.Count(), group2.Count())

	for _, v := range values {
		_, err := m.ScoreValue(group1, v)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		v, err := m.SampleValue(rng, group1)
		require.NoError(t, err)
		_, err = m.ScoreValue(group1, v)
		require.NoError(t, err)
		sampled, err := m.SampleGroup(rng, 10)
		require.NoError(t, err)
		require.Len(t, sampled, 10)
	}
	_, err = m.ScoreGroup(group1)
	require.NoError(t, err)
	_, err = m.ScoreGroup(group2)
	require.NoError(t, err)
}

// CheckAddRemove verifies that groups are exact sufficient statistics:
// adding then removing observations restores the empty group, re-adding
// restores the full group, and the group score equals the chain-rule product
// of predictive scores.
func CheckAddRemove[V any](t *testing.T, m distributions.Model[V], seed uint64) {
	t.Helper()
	rng := distributions.NewRNG(seed)

	group, err := m.NewGroup()
	require.NoError(t, err)
	empty, err := m.ScoreGroup(group)
	require.NoError(t, err)
	require.Zero(t, empty, "log p(empty) != 0")

	values := make([]V, 0, DataCount)
	score := 0.0
	for i := 0; i < DataCount; i++ {
		v, err := m.SampleValue(rng, group)
		require.NoError(t, err)
		values = append(values, v)
		s, err := m.ScoreValue(group, v)
		require.NoError(t, err)
		score += s
		require.NoError(t, group.Add(v))
	}

	groupAll, err := m.NewGroup()
	require.NoError(t, err)
	require.NoError(t, groupAll.Load(group.Dump()))
	total, err := m.ScoreGroup(group)
	require.NoError(t, err)
	require.InDelta(t, score, total, math.Abs(score)*floatTolerance+1e-6,
		"p(x1..xn) != p(x1) p(x2|x1) ... p(xn|..)")

	rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	for _, v := range values {
		require.NoError(t, group.Remove(v))
	}
	groupEmpty, err := m.NewGroup()
	require.NoError(t, err)
	requireClose(t, groupEmpty.Dump(), group.Dump(), "group + values - values != empty group")

	rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	for _, v := range values {
		require.NoError(t, group.Add(v))
	}
	requireClose(t, groupAll.Dump(), group.Dump(), "group - values + values != group")
}

// CheckAddMerge verifies that merging any two-way split of the values gives
// the same group as adding all values to one group.
func CheckAddMerge[V any](t *testing.T, m distributions.Model[V], values []V, seed uint64) {
	t.Helper()
	rng := distributions.NewRNG(seed)
	values = append([]V(nil), values...)
	rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	group, err := m.NewGroup(values...)
	require.NoError(t, err)

	for i := 0; i <= len(values); i++ {
		rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
		group1, err := m.NewGroup(values[:i]...)
		require.NoError(t, err)
		group2, err := m.NewGroup(values[i:]...)
		require.NoError(t, err)
		before := group2.Dump()
		require.NoError(t, group1.Merge(group2))
		requireClose(t, group.Dump(), group1.Dump(), "merged split != whole")
		requireClose(t, before, group2.Dump(), "merge mutated its argument")
	}
}

// CheckGroupMerge verifies merge against incremental adds over a growing
// stream of sampled values.
func CheckGroupMerge[V any](t *testing.T, m distributions.Model[V], seed uint64) {
	t.Helper()
	rng := distributions.NewRNG(seed)
	group1, err := m.NewGroup()
	require.NoError(t, err)
	group2, err := m.NewGroup()
	require.NoError(t, err)
	expected, err := m.NewGroup()
	require.NoError(t, err)
	actual, err := m.NewGroup()
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		v, err := m.SampleValue(rng, expected)
		require.NoError(t, err)
		require.NoError(t, expected.Add(v))
		require.NoError(t, group1.Add(v))

		v, err = m.SampleValue(rng, expected)
		require.NoError(t, err)
		require.NoError(t, expected.Add(v))
		require.NoError(t, group2.Add(v))

		actual.Init()
		require.NoError(t, actual.Load(group1.Dump()))
		require.NoError(t, actual.Merge(group2))
		requireClose(t, expected.Dump(), actual.Dump(), "merge != incremental adds")
	}
}

// CheckSampleSeed verifies that sampling is a pure function of the rng seed.
func CheckSampleSeed[V any](t *testing.T, m distributions.Model[V], seed uint64) {
	t.Helper()
	draw := func() []V {
		rng := distributions.NewRNG(seed)
		g, err := m.NewGroup()
		require.NoError(t, err)
		values := make([]V, DataCount)
		for i := range values {
			v, err := m.SampleValue(rng, g)
			require.NoError(t, err)
			values[i] = v
		}
		return values
	}
	require.Equal(t, draw(), draw(), "same seed, different samples")
}

// CheckSampleValueDiscrete verifies a discrete sampler against its scorer
// with a chi-square goodness-of-fit test, for both the empty group and the
// example group.
func CheckSampleValueDiscrete[V comparable](t *testing.T, m distributions.Model[V], values []V, seed uint64) {
	t.Helper()
	rng := distributions.NewRNG(seed)
	for _, initial := range [][]V{nil, values} {
		group, err := m.NewGroup(initial...)
		require.NoError(t, err)
		samples := make([]V, SampleCount)
		for i := range samples {
			v, err := m.SampleValue(rng, group)
			require.NoError(t, err)
			samples[i] = v
		}
		probs := make(map[V]float64)
		for _, v := range samples {
			if _, ok := probs[v]; ok {
				continue
			}
			score, err := m.ScoreValue(group, v)
			require.NoError(t, err)
			probs[v] = math.Exp(score)
		}
		p, err := gof.Discrete(samples, probs)
		require.NoError(t, err)
		assert.Greater(t, p, MinGoodnessOfFit, "sampler disagrees with scorer")
	}
}

// CheckSampleValueDensity verifies a continuous sampler against its scorer
// with a density goodness-of-fit test.
func CheckSampleValueDensity(t *testing.T, m distributions.Model[float64], values []float64, seed uint64) {
	t.Helper()
	rng := distributions.NewRNG(seed)
	for _, initial := range [][]float64{nil, values} {
		group, err := m.NewGroup(initial...)
		require.NoError(t, err)
		samples := make([]float64, SampleCount)
		densities := make([]float64, SampleCount)
		for i := range samples {
			v, err := m.SampleValue(rng, group)
			require.NoError(t, err)
			score, err := m.ScoreValue(group, v)
			require.NoError(t, err)
			samples[i] = v
			densities[i] = math.Exp(score)
		}
		p, err := gof.Density(samples, densities)
		require.NoError(t, err)
		assert.Greater(t, p, MinGoodnessOfFit, "sampler disagrees with scorer")
	}
}

// CheckSampleGroup verifies joint sampling against the marginal group score:
// pairs drawn by SampleGroup must occur with probability exp(ScoreGroup).
func CheckSampleGroup[V comparable](t *testing.T, m distributions.Model[V], seed uint64) {
	t.Helper()
	type pair struct{ a, b V }
	rng := distributions.NewRNG(seed)
	samples := make([]pair, SampleCount)
	probs := make(map[pair]float64)
	for i := range samples {
		values, err := m.SampleGroup(rng, 2)
		require.NoError(t, err)
		require.Len(t, values, 2)
		sample := pair{values[0], values[1]}
		samples[i] = sample
		if _, ok := probs[sample]; !ok {
			group, err := m.NewGroup(values...)
			require.NoError(t, err)
			score, err := m.ScoreGroup(group)
			require.NoError(t, err)
			probs[sample] = math.Exp(score)
		}
	}
	p, err := gof.Discrete(samples, probs)
	require.NoError(t, err)
	assert.Greater(t, p, MinGoodnessOfFit, "joint sampler disagrees with group score")
}

// CheckScorer verifies that cached scorers agree with direct scoring, for
// both the nil-group (prior) form and an explicit empty group.
func CheckScorer[V any](t *testing.T, m distributions.ScorerModel[V], values []V) {
	t.Helper()
	group, err := m.NewGroup()
	require.NoError(t, err)
	scorer1, err := m.NewScorer(nil)
	require.NoError(t, err)
	scorer2, err := m.NewScorer(group)
	require.NoError(t, err)
	for _, v := range values {
		s1, err := scorer1.Eval(v)
		require.NoError(t, err)
		s2, err := scorer2.Eval(v)
		require.NoError(t, err)
		s3, err := m.ScoreValue(group, v)
		require.NoError(t, err)
		assert.InDelta(t, s3, s1, math.Abs(s3)*floatTolerance+1e-12)
		assert.InDelta(t, s3, s2, math.Abs(s3)*floatTolerance+1e-12)
	}
}

// CheckMixtureRuns exercises the full mixture lifecycle: append, init,
// score-driven assignment, group add/remove with id shifting, and
// re-assignment afterwards.
func CheckMixtureRuns[V any](t *testing.T, m distributions.VectorScorerModel[V], values []V, seed uint64) {
	t.Helper()
	rng := distributions.NewRNG(seed)
	mixture, err := distributions.NewMixture[V](m)
	require.NoError(t, err)
	for _, v := range values {
		g, err := m.NewGroup(v)
		require.NoError(t, err)
		require.NoError(t, mixture.Append(g))
	}
	require.NoError(t, mixture.Init())
	require.Equal(t, len(values), mixture.Len())

	assign := func(v V) int {
		scores := make([]float64, mixture.Len())
		require.NoError(t, mixture.ScoreValue(v, scores))
		groupid := distributions.SampleDiscrete(rng, distributions.ScoresToProbs(scores))
		require.NoError(t, mixture.AddValue(groupid, v))
		return groupid
	}

	groupids := make([]int, 0, len(values))
	for _, v := range values {
		groupids = append(groupids, assign(v))
	}

	_, err = mixture.AddGroup()
	require.NoError(t, err)
	require.Equal(t, len(values)+1, mixture.Len())

	for i, v := range values {
		require.NoError(t, mixture.RemoveValue(groupids[i], v))
	}

	require.NoError(t, mixture.RemoveGroup(0))
	require.NoError(t, mixture.RemoveGroup(mixture.Len()-1))
	require.Equal(t, len(values)-1, mixture.Len())

	for _, v := range values {
		assign(v)
	}
}

// CheckMixtureScore verifies that mixture scoring stays consistent with
// per-group scoring through adds and removes.
func CheckMixtureScore[V any](t *testing.T, m distributions.VectorScorerModel[V], values []V, seed uint64) {
	t.Helper()
	rng := distributions.NewRNG(seed)
	mixture, err := distributions.NewMixture[V](m)
	require.NoError(t, err)
	for _, v := range values {
		g, err := m.NewGroup(v)
		require.NoError(t, err)
		require.NoError(t, mixture.Append(g))
	}
	require.NoError(t, mixture.Init())

	checkScores := func(v V) []float64 {
		actual := make([]float64, mixture.Len())
		require.NoError(t, mixture.ScoreValue(v, actual))
		for i := range actual {
			g, err := mixture.Group(i)
			require.NoError(t, err)
			expected, err := m.ScoreValue(g, v)
			require.NoError(t, err)
			assert.InDelta(t, expected, actual[i], math.Abs(expected)*floatTolerance+1e-12)
		}
		return actual
	}

	for _, v := range values {
		checkScores(v)
	}

	groupids := make([]int, 0, len(values))
	for _, v := range values {
		scores := checkScores(v)
		groupid := distributions.SampleDiscrete(rng, distributions.ScoresToProbs(scores))
		require.NoError(t, mixture.AddValue(groupid, v))
		groupids = append(groupids, groupid)
	}

	for i, v := range values {
		require.NoError(t, mixture.RemoveValue(groupids[i], v))
		checkScores(v)
	}
}

// requireClose asserts dump equality up to the float tolerances.
// Integer leaves must match exactly.
func requireClose(t *testing.T, want, got dump.Value, msg string) {
	t.Helper()
	require.True(t, closeValue(want, got), "%s:\nwant %v\ngot  %v", msg, want, got)
}

func closeValue(a, b dump.Value) bool {
	if a.Kind() != b.Kind() {
		// int vs float leaves compare numerically
		fa, errA := a.AsFloat()
		fb, errB := b.AsFloat()
		return errA == nil && errB == nil && closeFloat(fa, fb)
	}
	switch a.Kind() {
	case dump.KindInt:
		ia, _ := a.AsInt()
		ib, _ := b.AsInt()
		return ia == ib
	case dump.KindFloat:
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		return closeFloat(fa, fb)
	case dump.KindList:
		la, _ := a.AsList()
		lb, _ := b.AsList()
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !closeValue(la[i], lb[i]) {
				return false
			}
		}
		return true
	case dump.KindMap:
		ka := a.Keys()
		kb := b.Keys()
		if len(ka) != len(kb) {
			return false
		}
		for _, k := range ka {
			va, okA := a.Field(k)
			vb, okB := b.Field(k)
			if !okA || !okB || !closeValue(va, vb) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func closeFloat(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= floatAbsTolerance+floatTolerance*math.Max(math.Abs(a), math.Abs(b))
}
