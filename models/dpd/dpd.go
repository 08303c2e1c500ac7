// Package dpd implements a sparse Dirichlet-discrete model family over a
// large categorical support. The prior is a symmetric Dirichlet with total
// concentration gamma spread over dim outcomes, and groups track only the
// outcomes actually observed, with a roaring bitmap over the observed
// support.
//
// Capabilities: none beyond the core contract.
package dpd

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/dump"
)

// Value is the observation type of this family: an outcome in [0, dim).
type Value = int64

// MaxDim bounds the support size.
const MaxDim = 1 << 31

// Model holds the symmetric Dirichlet prior: total concentration gamma over
// dim outcomes, so each outcome carries pseudo-count gamma/dim.
type Model struct {
	gamma float64
	dim   int64
}

var _ distributions.Model[Value] = (*Model)(nil)

// New constructs a model from hyperparameters.
func New(gamma float64, dim int64) (*Model, error) {
	if !(gamma > 0) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("%w: dpd concentration gamma=%v", distributions.ErrInvalidArgument, gamma)
	}
	if dim < 2 || dim > MaxDim {
		return nil, fmt.Errorf("%w: dpd dimension %d outside [2, %d]",
			distributions.ErrInvalidArgument, dim, int64(MaxDim))
	}
	return &Model{gamma: gamma, dim: dim}, nil
}

// Load constructs a model from a hyperparameter dump.
func Load(d dump.Value) (*Model, error) {
	m := &Model{}
	if err := m.Load(d); err != nil {
		return nil, err
	}
	return m, nil
}

// alpha0 is the per-outcome pseudo-count.
func (m *Model) alpha0() float64 { return m.gamma / float64(m.dim) }

// Dump serializes the hyperparameters.
func (m *Model) Dump() dump.Value {
	return dump.Map(map[string]dump.Value{
		"gamma": dump.Float(m.gamma),
		"dim":   dump.Int(m.dim),
	})
}

// Load replaces the hyperparameters from a dump.
func (m *Model) Load(d dump.Value) error {
	item, err := d.MustField("gamma")
	if err != nil {
		return fmt.Errorf("%w: dpd model dump: %v", distributions.ErrInvalidArgument, err)
	}
	gamma, err := item.AsFloat()
	if err != nil {
		return fmt.Errorf("%w: dpd model dump: %v", distributions.ErrInvalidArgument, err)
	}
	item, err = d.MustField("dim")
	if err != nil {
		return fmt.Errorf("%w: dpd model dump: %v", distributions.ErrInvalidArgument, err)
	}
	dim, err := item.AsInt()
	if err != nil {
		return fmt.Errorf("%w: dpd model dump: %v", distributions.ErrInvalidArgument, err)
	}
	loaded, err := New(gamma, dim)
	if err != nil {
		return err
	}
	*m = *loaded
	return nil
}

// NewGroup builds an empty group, then incorporates values in order.
func (m *Model) NewGroup(values ...Value) (distributions.Group[Value], error) {
	g := &Group{
		model:    m,
		counts:   make(map[Value]int64),
		observed: roaring.New(),
	}
	for _, v := range values {
		if err := g.Add(v); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (m *Model) checkValue(value Value) error {
	if value < 0 || value >= m.dim {
		return &distributions.SupportError{
			Value:   value,
			Support: fmt.Sprintf("[0, %d)", m.dim),
		}
	}
	return nil
}

// ScoreValue returns the posterior-predictive log probability of value.
func (m *Model) ScoreValue(g distributions.Group[Value], value Value) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if err := m.checkValue(value); err != nil {
		return 0, err
	}
	return math.Log((m.alpha0() + float64(gg.counts[value])) /
		(m.gamma + float64(gg.total))), nil
}

// ScoreGroup returns the Dirichlet-multinomial marginal log probability of
// the group's observations. Only observed outcomes contribute to the sum.
func (m *Model) ScoreGroup(g distributions.Group[Value]) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if gg.total == 0 {
		return 0, nil
	}
	alpha0 := m.alpha0()
	lgAlpha0, _ := math.Lgamma(alpha0)
	score := 0.0
	for _, n := range gg.counts {
		lg, _ := math.Lgamma(alpha0 + float64(n))
		score += lg - lgAlpha0
	}
	lgGamma, _ := math.Lgamma(m.gamma)
	lgPost, _ := math.Lgamma(m.gamma + float64(gg.total))
	return score + lgGamma - lgPost, nil
}

// SampleValue draws one outcome from the posterior predictive. With
// probability gamma / (gamma + total) the draw comes from the uniform prior
// mass; otherwise it follows the empirical counts, walked in bitmap order so
// the draw is deterministic given the rng state.
func (m *Model) SampleValue(rng *distributions.RNG, g distributions.Group[Value]) (Value, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if rng.Float64()*(m.gamma+float64(gg.total)) < m.gamma {
		return rng.Int64N(m.dim), nil
	}
	target := rng.Int64N(gg.total)
	it := gg.observed.Iterator()
	for it.HasNext() {
		v := Value(it.Next())
		target -= gg.counts[v]
		if target < 0 {
			return v, nil
		}
	}
	// unreachable while counts and bitmap agree
	return 0, fmt.Errorf("%w: dpd group statistics inconsistent", distributions.ErrInvalidArgument)
}

// SampleGroup draws size values by growing an implicit group one value at a
// time.
func (m *Model) SampleGroup(rng *distributions.RNG, size int) ([]Value, error) {
	return distributions.SampleGroupSeq[Value](rng, m, size)
}

func (m *Model) group(g distributions.Group[Value]) (*Group, error) {
	gg, ok := g.(*Group)
	if !ok {
		return nil, &distributions.MismatchError{Want: "dpd.Group", Got: fmt.Sprintf("%T", g)}
	}
	if gg.model != m {
		return nil, &distributions.MismatchError{Want: "group bound to this model", Got: "group of another model"}
	}
	return gg, nil
}

// Group is the sufficient statistic: sparse per-outcome counts, the total,
// and a bitmap over observed outcomes.
type Group struct {
	model    *Model
	counts   map[Value]int64
	observed *roaring.Bitmap
	total    int64
}

// Init resets the group to the empty state.
func (g *Group) Init() {
	g.counts = make(map[Value]int64)
	g.observed = roaring.New()
	g.total = 0
}

// Add incorporates one observation.
func (g *Group) Add(value Value) error {
	if err := g.model.checkValue(value); err != nil {
		return err
	}
	g.counts[value]++
	g.observed.Add(uint32(value))
	g.total++
	return nil
}

// Remove removes one previously added observation. Outcomes whose count
// drops to zero leave both the count map and the bitmap.
func (g *Group) Remove(value Value) error {
	if err := g.model.checkValue(value); err != nil {
		return err
	}
	n := g.counts[value]
	if n == 0 {
		return fmt.Errorf("%w: remove of %d never added", distributions.ErrInvalidArgument, value)
	}
	if n == 1 {
		delete(g.counts, value)
		g.observed.Remove(uint32(value))
	} else {
		g.counts[value] = n - 1
	}
	g.total--
	return nil
}

// Merge combines other's counts into g; other is not mutated.
func (g *Group) Merge(other distributions.Group[Value]) error {
	oo, err := g.model.group(other)
	if err != nil {
		return err
	}
	for v, n := range oo.counts {
		g.counts[v] += n
	}
	g.observed.Or(oo.observed)
	g.total += oo.total
	return nil
}

// Count returns the number of observations summarized.
func (g *Group) Count() int64 { return g.total }

// Dump serializes the sufficient statistic as parallel keys/counts lists in
// ascending key order.
func (g *Group) Dump() dump.Value {
	keys := make([]dump.Value, 0, len(g.counts))
	counts := make([]dump.Value, 0, len(g.counts))
	it := g.observed.Iterator()
	for it.HasNext() {
		v := Value(it.Next())
		keys = append(keys, dump.Int(v))
		counts = append(counts, dump.Int(g.counts[v]))
	}
	return dump.Map(map[string]dump.Value{
		"keys":   dump.List(keys...),
		"counts": dump.List(counts...),
	})
}

// Load restores the sufficient statistic from a dump.
func (g *Group) Load(d dump.Value) error {
	keysItem, err := d.MustField("keys")
	if err != nil {
		return fmt.Errorf("%w: dpd group dump: %v", distributions.ErrInvalidArgument, err)
	}
	keys, err := keysItem.AsIntSlice()
	if err != nil {
		return fmt.Errorf("%w: dpd group dump: %v", distributions.ErrInvalidArgument, err)
	}
	countsItem, err := d.MustField("counts")
	if err != nil {
		return fmt.Errorf("%w: dpd group dump: %v", distributions.ErrInvalidArgument, err)
	}
	counts, err := countsItem.AsIntSlice()
	if err != nil {
		return fmt.Errorf("%w: dpd group dump: %v", distributions.ErrInvalidArgument, err)
	}
	if len(keys) != len(counts) {
		return fmt.Errorf("%w: dpd group dump: %d keys but %d counts",
			distributions.ErrInvalidArgument, len(keys), len(counts))
	}
	g.Init()
	for i, k := range keys {
		if err := g.model.checkValue(k); err != nil {
			return err
		}
		n := counts[i]
		if n <= 0 {
			return fmt.Errorf("%w: dpd group dump: count %d for key %d",
				distributions.ErrInvalidArgument, n, k)
		}
		if _, dup := g.counts[k]; dup {
			return fmt.Errorf("%w: dpd group dump: duplicate key %d",
				distributions.ErrInvalidArgument, k)
		}
		g.counts[k] = n
		g.observed.Add(uint32(k))
		g.total += n
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
			"gamma": dump.Float(4.0),
			"dim":   dump.Int(10000),
		}),
		Values: []Value{0, 1, 1, 2, 2, 2, 7138},
	},
	{
		Model: dump.Map(map[string]dump.Value{
			"gamma": dump.Float(1.5),
			"dim":   dump.Int(50),
		}),
		Values: []Value{3, 3, 3, 7, 7, 12, 12, 49, 0},
	},
}
