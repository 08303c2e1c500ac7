// Package distributions provides low-level primitives for Bayesian inference
// on streams of observed values: conjugate exponential-family models, the
// sufficient-statistic groups they summarize observations into, cached
// scorers, and mixtures of groups for clustering-style inference.
//
// # Models and groups
//
// A Model holds the hyperparameters of one family and is immutable except
// through Load. A Group is the sufficient statistic of zero or more observed
// values under a model: two groups with equal dumps behave identically for
// all scoring and sampling operations, regardless of how they were built.
//
//	m, _ := dd.New(1.0, 1.0, 1.0, 1.0)
//	g, _ := m.NewGroup(0, 1, 1, 2)
//	score, _ := m.ScoreGroup(g)
//
// # Optional capabilities
//
// Scorer, VectorScorer, and Mixture support are optional per family and are
// expressed as extension interfaces. Query them with HasScorer,
// HasVectorScorer, and HasMixture instead of probing for failure:
//
//	if sm, ok := m.(distributions.ScorerModel[int64]); ok {
//	    scorer, _ := sm.NewScorer(g)
//	    score, _ = scorer.Eval(2)
//	}
//
// # Randomness
//
// All sampling draws through an explicitly passed *RNG. Reseeding an RNG
// with the same value reproduces prior sampling sequences exactly.
//
// Model, Group, Mixture, and RNG instances are single-owner: callers must
// serialize access or partition instances across goroutines themselves.
package distributions

import (
	"math"

	"github.com/posterior/distributions/dump"
)

// Model is the common contract of every model family, generic over the
// family's observation type V (int64 for discrete families, float64 for
// continuous ones).
//
// Dump and Load round-trip exactly: Load(m.Dump()) yields a model whose
// Dump equals m.Dump().
type Model[V any] interface {
	// Dump serializes the hyperparameters.
	Dump() dump.Value

	// Load replaces the hyperparameters from a dump. A malformed dump
	// fails with ErrInvalidArgument and leaves the model unchanged.
	Load(d dump.Value) error

	// NewGroup builds an empty group, then incorporates the given values
	// in order. The result equals creating an empty group and adding the
	// values one at a time.
	NewGroup(values ...V) (Group[V], error)

	// ScoreValue returns the posterior-predictive log probability
	// log p(value | group's observations).
	ScoreValue(g Group[V], value V) (float64, error)

	// ScoreGroup returns the marginal log probability of all observations
	// summarized by the group. An empty group scores exactly 0.
	ScoreGroup(g Group[V]) (float64, error)

	// SampleValue draws one value from the posterior predictive implied by
	// the group. The group is never mutated.
	SampleValue(rng *RNG, g Group[V]) (V, error)

	// SampleGroup draws size values by growing an implicit group one value
	// at a time: draws are exchangeable but dependent, unlike repeated
	// SampleValue calls against a fixed group.
	SampleGroup(rng *RNG, size int) ([]V, error)
}

// Group is the sufficient-statistic summary of observed values under one
// model. Groups are created by Model.NewGroup and remain bound to their
// model; passing a group to a different model's operations fails with
// ErrInvalidArgument.
type Group[V any] interface {
	// Init resets the group to the empty state.
	Init()

	// Add incorporates one observation.
	Add(value V) error

	// Remove is the exact algebraic inverse of Add for any value
	// previously added. Removing a value never added is undefined.
	Remove(value V) error

	// Merge combines other's statistics into the receiver, equivalent to
	// adding every value other ever incorporated, in any order. The
	// argument is never mutated.
	Merge(other Group[V]) error

	// Count returns the number of observations currently summarized.
	Count() int64

	// Dump serializes the sufficient statistic; Load restores it exactly.
	// Two groups are equal iff their dumps are equal.
	Dump() dump.Value
	Load(d dump.Value) error
}

// Scorer is a read-only cache for repeated scoring against one group
// snapshot. Mutating the source group afterwards does not update an
// already-created scorer; scorers are throwaway and recreated when the
// group changes.
type Scorer[V any] interface {
	Eval(value V) (float64, error)
}

// VectorScorer caches per-group scoring state for N groups at once,
// answering "score this value against every group" without re-deriving from
// each group's full statistic. Entries are updatable independently by dense
// group id; Remove shifts higher ids down by one.
type VectorScorer[V any] interface {
	Len() int
	Append(g Group[V]) error
	Update(groupid int, g Group[V]) error
	Remove(groupid int) error

	// ScoreValue fills scores[i] with the predictive log probability of
	// value under group i, for every cached group. len(scores) must equal
	// Len.
	ScoreValue(value V, scores []float64) error
}

// ScorerModel is the optional capability of building Scorers. A nil group
// binds the scorer to the empty group (the prior predictive).
type ScorerModel[V any] interface {
	Model[V]
	NewScorer(g Group[V]) (Scorer[V], error)
}

// VectorScorerModel is the optional capability of building VectorScorers.
// Families with this capability also support Mixture.
type VectorScorerModel[V any] interface {
	Model[V]
	NewVectorScorer() (VectorScorer[V], error)
}

// HasScorer reports whether the model family implements the Scorer
// capability.
func HasScorer[V any](m Model[V]) bool {
	_, ok := m.(ScorerModel[V])
	return ok
}

// HasVectorScorer reports whether the model family implements the
// VectorScorer capability.
func HasVectorScorer[V any](m Model[V]) bool {
	_, ok := m.(VectorScorerModel[V])
	return ok
}

// HasMixture reports whether NewMixture will succeed for the model.
// Mixture support is exactly the VectorScorer capability.
func HasMixture[V any](m Model[V]) bool {
	return HasVectorScorer(m)
}

// SampleGroupSeq draws size values by creating an empty group and
// alternating SampleValue and Add. It implements the shared SampleGroup
// semantics for all families.
func SampleGroupSeq[V any](rng *RNG, m Model[V], size int) ([]V, error) {
	g, err := m.NewGroup()
	if err != nil {
		return nil, err
	}
	values := make([]V, 0, size)
	for range size {
		v, err := m.SampleValue(rng, g)
		if err != nil {
			return nil, err
		}
		if err := g.Add(v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// ScoresToProbs converts a vector of log scores into normalized
// probabilities, shifting by the max score for numerical stability.
func ScoresToProbs(scores []float64) []float64 {
	probs := make([]float64, len(scores))
	if len(scores) == 0 {
		return probs
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var total float64
	for i, s := range scores {
		p := math.Exp(s - maxScore)
		probs[i] = p
		total += p
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}

// SampleDiscrete draws an index distributed according to probs, which need
// not be normalized. Returns len(probs)-1 if rounding pushes the cumulative
// mass short of the draw.
func SampleDiscrete(rng *RNG, probs []float64) int {
	var total float64
	for _, p := range probs {
		total += p
	}
	u := rng.Float64() * total
	for i, p := range probs {
		u -= p
		if u < 0 {
			return i
		}
	}
	return len(probs) - 1
}
