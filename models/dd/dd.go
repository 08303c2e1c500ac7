// Package dd implements the Dirichlet-discrete model family: a categorical
// likelihood over a fixed finite support [0, dim) under a Dirichlet prior
// with per-outcome pseudo-counts.
//
// Capabilities: Scorer, VectorScorer (and therefore Mixture).
package dd

import (
	"fmt"
	"math"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/dump"
)

// Value is the observation type of this family: an outcome in [0, dim).
type Value = int64

// MaxDim bounds the support size; larger supports belong to the sparse dpd
// family.
const MaxDim = 256

// Model holds the Dirichlet pseudo-counts, one per outcome.
type Model struct {
	alphas   []float64
	alphaSum float64
}

var (
	_ distributions.ScorerModel[Value]       = (*Model)(nil)
	_ distributions.VectorScorerModel[Value] = (*Model)(nil)
)

// New constructs a model from per-outcome pseudo-counts.
func New(alphas ...float64) (*Model, error) {
	if len(alphas) < 2 || len(alphas) > MaxDim {
		return nil, fmt.Errorf("%w: dd support size %d outside [2, %d]",
			distributions.ErrInvalidArgument, len(alphas), MaxDim)
	}
	var sum float64
	for i, a := range alphas {
		if !(a > 0) || math.IsInf(a, 0) {
			return nil, fmt.Errorf("%w: dd alpha[%d] = %v", distributions.ErrInvalidArgument, i, a)
		}
		sum += a
	}
	m := &Model{alphas: append([]float64(nil), alphas...), alphaSum: sum}
	return m, nil
}

// Load constructs a model from a hyperparameter dump.
func Load(d dump.Value) (*Model, error) {
	m := &Model{}
	if err := m.Load(d); err != nil {
		return nil, err
	}
	return m, nil
}

// Dim returns the support size.
func (m *Model) Dim() int { return len(m.alphas) }

// Dump serializes the hyperparameters.
func (m *Model) Dump() dump.Value {
	return dump.Map(map[string]dump.Value{
		"alphas": dump.FloatList(m.alphas...),
	})
}

// Load replaces the hyperparameters from a dump.
func (m *Model) Load(d dump.Value) error {
	item, err := d.MustField("alphas")
	if err != nil {
		return fmt.Errorf("%w: dd model dump: %v", distributions.ErrInvalidArgument, err)
	}
	alphas, err := item.AsFloatSlice()
	if err != nil {
		return fmt.Errorf("%w: dd model dump: %v", distributions.ErrInvalidArgument, err)
	}
	loaded, err := New(alphas...)
	if err != nil {
		return err
	}
	*m = *loaded
	return nil
}

// NewGroup builds an empty group, then incorporates values in order.
func (m *Model) NewGroup(values ...Value) (distributions.Group[Value], error) {
	g := &Group{model: m, counts: make([]int64, len(m.alphas))}
	for _, v := range values {
		if err := g.Add(v); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ScoreValue returns log((alpha_v + count_v) / (alphaSum + total)): the
// Dirichlet posterior predictive.
func (m *Model) ScoreValue(g distributions.Group[Value], value Value) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if err := m.checkValue(value); err != nil {
		return 0, err
	}
	return math.Log((m.alphas[value] + float64(gg.counts[value])) /
		(m.alphaSum + float64(gg.total))), nil
}

// ScoreGroup returns the Dirichlet-multinomial marginal log probability of
// the group's observations.
func (m *Model) ScoreGroup(g distributions.Group[Value]) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if gg.total == 0 {
		return 0, nil // log p(empty) = log 1
	}
	var score float64
	for i, count := range gg.counts {
		if count == 0 {
			continue
		}
		lg1, _ := math.Lgamma(m.alphas[i] + float64(count))
		lg2, _ := math.Lgamma(m.alphas[i])
		score += lg1 - lg2
	}
	lg1, _ := math.Lgamma(m.alphaSum)
	lg2, _ := math.Lgamma(m.alphaSum + float64(gg.total))
	return score + lg1 - lg2, nil
}

// SampleValue draws one outcome from the posterior predictive by inverting
// a single uniform draw over the pseudo-count masses.
func (m *Model) SampleValue(rng *distributions.RNG, g distributions.Group[Value]) (Value, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	u := rng.Float64() * (m.alphaSum + float64(gg.total))
	for i := range m.alphas {
		u -= m.alphas[i] + float64(gg.counts[i])
		if u < 0 {
			return Value(i), nil
		}
	}
	return Value(len(m.alphas) - 1), nil
}

// SampleGroup draws size values by growing an implicit group one value at a
// time.
func (m *Model) SampleGroup(rng *distributions.RNG, size int) ([]Value, error) {
	return distributions.SampleGroupSeq[Value](rng, m, size)
}

// NewScorer builds a cache bound to the group's current statistics. A nil
// group binds the prior predictive.
func (m *Model) NewScorer(g distributions.Group[Value]) (distributions.Scorer[Value], error) {
	gg := &Group{model: m, counts: make([]int64, len(m.alphas))}
	if g != nil {
		var err error
		gg, err = m.group(g)
		if err != nil {
			return nil, err
		}
	}
	return &Scorer{logProbs: m.logProbs(gg, make([]float64, len(m.alphas)))}, nil
}

// NewVectorScorer builds an empty vector scorer.
func (m *Model) NewVectorScorer() (distributions.VectorScorer[Value], error) {
	return &VectorScorer{model: m, scores: make([][]float64, len(m.alphas))}, nil
}

// logProbs fills out with the predictive log probability of every outcome.
func (m *Model) logProbs(g *Group, out []float64) []float64 {
	norm := math.Log(m.alphaSum + float64(g.total))
	for i := range m.alphas {
		out[i] = math.Log(m.alphas[i]+float64(g.counts[i])) - norm
	}
	return out
}

func (m *Model) group(g distributions.Group[Value]) (*Group, error) {
	gg, ok := g.(*Group)
	if !ok {
		return nil, &distributions.MismatchError{Want: "dd.Group", Got: fmt.Sprintf("%T", g)}
	}
	if gg.model != m {
		return nil, &distributions.MismatchError{Want: "group bound to this model", Got: "group of another model"}
	}
	if err := gg.checkDim(); err != nil {
		return nil, err
	}
	return gg, nil
}

func (m *Model) checkValue(value Value) error {
	if value < 0 || value >= Value(len(m.alphas)) {
		return &distributions.SupportError{Value: value, Support: fmt.Sprintf("[0, %d)", len(m.alphas))}
	}
	return nil
}

// Group is the sufficient statistic: one observation count per outcome.
type Group struct {
	model  *Model
	counts []int64
	total  int64
}

// checkDim guards against a model whose support changed underneath the
// group, e.g. through Model.Load with a different dim.
func (g *Group) checkDim() error {
	if len(g.counts) != len(g.model.alphas) {
		return fmt.Errorf("%w: group tracks %d outcomes, model has %d",
			distributions.ErrInvalidArgument, len(g.counts), len(g.model.alphas))
	}
	return nil
}

// Init resets the group to the empty state.
func (g *Group) Init() {
	for i := range g.counts {
		g.counts[i] = 0
	}
	g.total = 0
}

// Add incorporates one observation.
func (g *Group) Add(value Value) error {
	if err := g.checkDim(); err != nil {
		return err
	}
	if err := g.model.checkValue(value); err != nil {
		return err
	}
	g.counts[value]++
	g.total++
	return nil
}

// Remove removes one previously added observation.
func (g *Group) Remove(value Value) error {
	if err := g.checkDim(); err != nil {
		return err
	}
	if err := g.model.checkValue(value); err != nil {
		return err
	}
	if g.counts[value] == 0 {
		return fmt.Errorf("%w: remove of outcome %d never added", distributions.ErrInvalidArgument, value)
	}
	g.counts[value]--
	g.total--
	return nil
}

// Merge combines other's counts into g; other is not mutated.
func (g *Group) Merge(other distributions.Group[Value]) error {
	if err := g.checkDim(); err != nil {
		return err
	}
	oo, err := g.model.group(other)
	if err != nil {
		return err
	}
	for i, count := range oo.counts {
		g.counts[i] += count
	}
	g.total += oo.total
	return nil
}

// Count returns the number of observations summarized.
func (g *Group) Count() int64 { return g.total }

// Dump serializes the sufficient statistic.
func (g *Group) Dump() dump.Value {
	return dump.Map(map[string]dump.Value{
		"counts": dump.IntList(g.counts...),
	})
}

// Load restores the sufficient statistic from a dump.
func (g *Group) Load(d dump.Value) error {
	item, err := d.MustField("counts")
	if err != nil {
		return fmt.Errorf("%w: dd group dump: %v", distributions.ErrInvalidArgument, err)
	}
	counts, err := item.AsIntSlice()
	if err != nil {
		return fmt.Errorf("%w: dd group dump: %v", distributions.ErrInvalidArgument, err)
	}
	if len(counts) != len(g.model.alphas) {
		return fmt.Errorf("%w: dd group dump has %d counts, model dim is %d",
			distributions.ErrInvalidArgument, len(counts), len(g.model.alphas))
	}
	var total int64
	for i, count := range counts {
		if count < 0 {
			return fmt.Errorf("%w: dd group dump: negative count at %d", distributions.ErrInvalidArgument, i)
		}
		total += count
	}
	g.counts = counts
	g.total = total
	return nil
}

// Scorer caches the predictive log probability of every outcome for one
// group snapshot.
type Scorer struct {
	logProbs []float64
}

// Eval scores one outcome against the cached predictive.
func (s *Scorer) Eval(value Value) (float64, error) {
	if value < 0 || value >= Value(len(s.logProbs)) {
		return 0, &distributions.SupportError{Value: value, Support: fmt.Sprintf("[0, %d)", len(s.logProbs))}
	}
	return s.logProbs[value], nil
}

// VectorScorer caches per-group predictive log probabilities in
// outcome-major layout: scores[outcome][groupid]. Scoring one value against
// every group is then a single contiguous copy.
type VectorScorer struct {
	model  *Model
	scores [][]float64 // [dim][ngroups]
	n      int
}

// Len returns the number of cached groups.
func (vs *VectorScorer) Len() int { return vs.n }

// Append extends the cache with one group.
func (vs *VectorScorer) Append(g distributions.Group[Value]) error {
	gg, err := vs.model.group(g)
	if err != nil {
		return err
	}
	probs := vs.model.logProbs(gg, make([]float64, vs.model.Dim()))
	for i := range vs.scores {
		vs.scores[i] = append(vs.scores[i], probs[i])
	}
	vs.n++
	return nil
}

// Update refreshes the cache entry for one group id.
func (vs *VectorScorer) Update(groupid int, g distributions.Group[Value]) error {
	if groupid < 0 || groupid >= vs.n {
		return &distributions.GroupIDError{GroupID: groupid, Len: vs.n}
	}
	gg, err := vs.model.group(g)
	if err != nil {
		return err
	}
	probs := vs.model.logProbs(gg, make([]float64, vs.model.Dim()))
	for i := range vs.scores {
		vs.scores[i][groupid] = probs[i]
	}
	return nil
}

// Remove deletes one cache entry; higher ids shift down by one.
func (vs *VectorScorer) Remove(groupid int) error {
	if groupid < 0 || groupid >= vs.n {
		return &distributions.GroupIDError{GroupID: groupid, Len: vs.n}
	}
	for i := range vs.scores {
		vs.scores[i] = append(vs.scores[i][:groupid], vs.scores[i][groupid+1:]...)
	}
	vs.n--
	return nil
}

// ScoreValue fills scores[i] with the predictive log probability of value
// under group i.
func (vs *VectorScorer) ScoreValue(value Value, scores []float64) error {
	if len(scores) != vs.n {
		return fmt.Errorf("%w: scores buffer length %d, want %d",
			distributions.ErrInvalidArgument, len(scores), vs.n)
	}
	if value < 0 || value >= Value(len(vs.scores)) {
		return &distributions.SupportError{Value: value, Support: fmt.Sprintf("[0, %d)", len(vs.scores))}
	}
	copy(scores, vs.scores[value])
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
			"alphas": dump.FloatList(1.0, 1.0, 1.0, 1.0),
		}),
		Values: []Value{0, 1, 1, 2, 2, 2, 3},
	},
	{
		Model: dump.Map(map[string]dump.Value{
			"alphas": dump.FloatList(0.5, 1.5, 2.5),
		}),
		Values: []Value{0, 0, 1, 1, 1, 2, 2, 2, 2},
	},
}
