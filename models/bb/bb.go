// Package bb implements the beta-Bernoulli model family: a Bernoulli
// likelihood over {0, 1} under a Beta(alpha, beta) prior.
//
// Capabilities: Scorer, VectorScorer (and therefore Mixture).
package bb

import (
	"fmt"
	"math"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/dump"
)

// Value is the observation type of this family: 0 or 1.
type Value = int64

// Model holds the Beta prior pseudo-counts.
type Model struct {
	alpha float64
	beta  float64
}

var (
	_ distributions.ScorerModel[Value]       = (*Model)(nil)
	_ distributions.VectorScorerModel[Value] = (*Model)(nil)
)

// New constructs a model from hyperparameters.
func New(alpha, beta float64) (*Model, error) {
	if !(alpha > 0) || !(beta > 0) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return nil, fmt.Errorf("%w: bb hyperparameters alpha=%v beta=%v",
			distributions.ErrInvalidArgument, alpha, beta)
	}
	return &Model{alpha: alpha, beta: beta}, nil
}

// Load constructs a model from a hyperparameter dump.
func Load(d dump.Value) (*Model, error) {
	m := &Model{}
	if err := m.Load(d); err != nil {
		return nil, err
	}
	return m, nil
}

// Dump serializes the hyperparameters.
func (m *Model) Dump() dump.Value {
	return dump.Map(map[string]dump.Value{
		"alpha": dump.Float(m.alpha),
		"beta":  dump.Float(m.beta),
	})
}

// Load replaces the hyperparameters from a dump.
func (m *Model) Load(d dump.Value) error {
	var fields [2]float64
	for i, name := range [...]string{"alpha", "beta"} {
		item, err := d.MustField(name)
		if err != nil {
			return fmt.Errorf("%w: bb model dump: %v", distributions.ErrInvalidArgument, err)
		}
		f, err := item.AsFloat()
		if err != nil {
			return fmt.Errorf("%w: bb model dump: %v", distributions.ErrInvalidArgument, err)
		}
		fields[i] = f
	}
	loaded, err := New(fields[0], fields[1])
	if err != nil {
		return err
	}
	*m = *loaded
	return nil
}

// NewGroup builds an empty group, then incorporates values in order.
func (m *Model) NewGroup(values ...Value) (distributions.Group[Value], error) {
	g := &Group{model: m}
	for _, v := range values {
		if err := g.Add(v); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// heads probability of the posterior predictive.
func (m *Model) prob1(g *Group) float64 {
	return (m.alpha + float64(g.heads)) /
		(m.alpha + m.beta + float64(g.heads+g.tails))
}

// ScoreValue returns the posterior-predictive log probability of value.
func (m *Model) ScoreValue(g distributions.Group[Value], value Value) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	p1 := m.prob1(gg)
	switch value {
	case 1:
		return math.Log(p1), nil
	case 0:
		return math.Log(1 - p1), nil
	default:
		return 0, &distributions.SupportError{Value: value, Support: "{0, 1}"}
	}
}

// ScoreGroup returns the beta-binomial marginal log probability of the
// group's observations.
func (m *Model) ScoreGroup(g distributions.Group[Value]) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if gg.heads+gg.tails == 0 {
		return 0, nil // log p(empty) = log 1
	}
	return lbeta(m.alpha+float64(gg.heads), m.beta+float64(gg.tails)) -
		lbeta(m.alpha, m.beta), nil
}

// SampleValue draws one outcome from the posterior predictive.
func (m *Model) SampleValue(rng *distributions.RNG, g distributions.Group[Value]) (Value, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if rng.Float64() < m.prob1(gg) {
		return 1, nil
	}
	return 0, nil
}

// SampleGroup draws size values by growing an implicit group one value at a
// time.
func (m *Model) SampleGroup(rng *distributions.RNG, size int) ([]Value, error) {
	return distributions.SampleGroupSeq[Value](rng, m, size)
}

// NewScorer builds a cache bound to the group's current statistics. A nil
// group binds the prior predictive.
func (m *Model) NewScorer(g distributions.Group[Value]) (distributions.Scorer[Value], error) {
	gg := &Group{model: m}
	if g != nil {
		var err error
		gg, err = m.group(g)
		if err != nil {
			return nil, err
		}
	}
	p1 := m.prob1(gg)
	return &Scorer{logProb0: math.Log(1 - p1), logProb1: math.Log(p1)}, nil
}

// NewVectorScorer builds an empty vector scorer.
func (m *Model) NewVectorScorer() (distributions.VectorScorer[Value], error) {
	return &VectorScorer{model: m}, nil
}

func (m *Model) group(g distributions.Group[Value]) (*Group, error) {
	gg, ok := g.(*Group)
	if !ok {
		return nil, &distributions.MismatchError{Want: "bb.Group", Got: fmt.Sprintf("%T", g)}
	}
	if gg.model != m {
		return nil, &distributions.MismatchError{Want: "group bound to this model", Got: "group of another model"}
	}
	return gg, nil
}

func lbeta(a, b float64) float64 {
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	lab, _ := math.Lgamma(a + b)
	return la + lb - lab
}

// Group is the sufficient statistic: counts of ones and zeros.
type Group struct {
	model *Model
	heads int64
	tails int64
}

// Init resets the group to the empty state.
func (g *Group) Init() {
	g.heads = 0
	g.tails = 0
}

// Add incorporates one observation.
func (g *Group) Add(value Value) error {
	switch value {
	case 1:
		g.heads++
	case 0:
		g.tails++
	default:
		return &distributions.SupportError{Value: value, Support: "{0, 1}"}
	}
	return nil
}

// Remove removes one previously added observation.
func (g *Group) Remove(value Value) error {
	switch value {
	case 1:
		if g.heads == 0 {
			return fmt.Errorf("%w: remove of 1 never added", distributions.ErrInvalidArgument)
		}
		g.heads--
	case 0:
		if g.tails == 0 {
			return fmt.Errorf("%w: remove of 0 never added", distributions.ErrInvalidArgument)
		}
		g.tails--
	default:
		return &distributions.SupportError{Value: value, Support: "{0, 1}"}
	}
	return nil
}

// Merge combines other's counts into g; other is not mutated.
func (g *Group) Merge(other distributions.Group[Value]) error {
	oo, err := g.model.group(other)
	if err != nil {
		return err
	}
	g.heads += oo.heads
	g.tails += oo.tails
	return nil
}

// Count returns the number of observations summarized.
func (g *Group) Count() int64 { return g.heads + g.tails }

// Dump serializes the sufficient statistic.
func (g *Group) Dump() dump.Value {
	return dump.Map(map[string]dump.Value{
		"heads": dump.Int(g.heads),
		"tails": dump.Int(g.tails),
	})
}

// Load restores the sufficient statistic from a dump.
func (g *Group) Load(d dump.Value) error {
	var fields [2]int64
	for i, name := range [...]string{"heads", "tails"} {
		item, err := d.MustField(name)
		if err != nil {
			return fmt.Errorf("%w: bb group dump: %v", distributions.ErrInvalidArgument, err)
		}
		n, err := item.AsInt()
		if err != nil {
			return fmt.Errorf("%w: bb group dump: %v", distributions.ErrInvalidArgument, err)
		}
		if n < 0 {
			return fmt.Errorf("%w: bb group dump: negative %s", distributions.ErrInvalidArgument, name)
		}
		fields[i] = n
	}
	g.heads = fields[0]
	g.tails = fields[1]
	return nil
}

// Scorer caches the two predictive log probabilities of one group snapshot.
type Scorer struct {
	logProb0 float64
	logProb1 float64
}

// Eval scores one outcome against the cached predictive.
func (s *Scorer) Eval(value Value) (float64, error) {
	switch value {
	case 0:
		return s.logProb0, nil
	case 1:
		return s.logProb1, nil
	default:
		return 0, &distributions.SupportError{Value: value, Support: "{0, 1}"}
	}
}

// VectorScorer caches the two predictive log probabilities of N groups in
// parallel slices.
type VectorScorer struct {
	model    *Model
	logProb0 []float64
	logProb1 []float64
}

// Len returns the number of cached groups.
func (vs *VectorScorer) Len() int { return len(vs.logProb0) }

// Append extends the cache with one group.
func (vs *VectorScorer) Append(g distributions.Group[Value]) error {
	gg, err := vs.model.group(g)
	if err != nil {
		return err
	}
	p1 := vs.model.prob1(gg)
	vs.logProb0 = append(vs.logProb0, math.Log(1-p1))
	vs.logProb1 = append(vs.logProb1, math.Log(p1))
	return nil
}

// Update refreshes the cache entry for one group id.
func (vs *VectorScorer) Update(groupid int, g distributions.Group[Value]) error {
	if groupid < 0 || groupid >= len(vs.logProb0) {
		return &distributions.GroupIDError{GroupID: groupid, Len: len(vs.logProb0)}
	}
	gg, err := vs.model.group(g)
	if err != nil {
		return err
	}
	p1 := vs.model.prob1(gg)
	vs.logProb0[groupid] = math.Log(1 - p1)
	vs.logProb1[groupid] = math.Log(p1)
	return nil
}

// Remove deletes one cache entry; higher ids shift down by one.
func (vs *VectorScorer) Remove(groupid int) error {
	if groupid < 0 || groupid >= len(vs.logProb0) {
		return &distributions.GroupIDError{GroupID: groupid, Len: len(vs.logProb0)}
	}
	vs.logProb0 = append(vs.logProb0[:groupid], vs.logProb0[groupid+1:]...)
	vs.logProb1 = append(vs.logProb1[:groupid], vs.logProb1[groupid+1:]...)
	return nil
}

// ScoreValue fills scores[i] with the predictive log probability of value
// under group i.
func (vs *VectorScorer) ScoreValue(value Value, scores []float64) error {
	if len(scores) != len(vs.logProb0) {
		return fmt.Errorf("%w: scores buffer length %d, want %d",
			distributions.ErrInvalidArgument, len(scores), len(vs.logProb0))
	}
	switch value {
	case 0:
		copy(scores, vs.logProb0)
	case 1:
		copy(scores, vs.logProb1)
	default:
		return &distributions.SupportError{Value: value, Support: "{0, 1}"}
	}
	return nil
}

// Example is a fixture record for the verification harness.
type Example struct {
	Model  dump.Value
	Values []Value
}

// Examples holds this family's verification fixtures.
var Examples = []Example{
	{
		Model: dump.Map(map[string]dump.Value{
			"alpha": dump.Float(0.5),
			"beta":  dump.Float(2.0),
		}),
		Values: []Value{0, 1, 1, 1, 1, 0, 1},
	},
	{
		Model: dump.Map(map[string]dump.Value{
			"alpha": dump.Float(10.0),
			"beta":  dump.Float(10.0),
		}),
		Values: []Value{0, 1, 0, 1, 0, 1, 0, 1},
	},
}
