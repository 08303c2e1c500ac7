// Package gp implements the gamma-Poisson model family: a Poisson likelihood
// over non-negative counts under a Gamma(alpha, 1/invBeta) prior on the rate.
// The posterior predictive is negative binomial.
//
// Capabilities: Scorer.
package gp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/dump"
)

// Value is the observation type of this family: a count >= 0.
type Value = int64

// Model holds the Gamma prior on the Poisson rate. invBeta is the inverse
// scale, so the prior mean rate is alpha / invBeta.
type Model struct {
	alpha   float64
	invBeta float64
}

var _ distributions.ScorerModel[Value] = (*Model)(nil)

// New constructs a model from hyperparameters.
func New(alpha, invBeta float64) (*Model, error) {
	if !(alpha > 0) || !(invBeta > 0) || math.IsInf(alpha, 0) || math.IsInf(invBeta, 0) {
		return nil, fmt.Errorf("%w: gp hyperparameters alpha=%v inv_beta=%v",
			distributions.ErrInvalidArgument, alpha, invBeta)
	}
	return &Model{alpha: alpha, invBeta: invBeta}, nil
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
		"alpha":    dump.Float(m.alpha),
		"inv_beta": dump.Float(m.invBeta),
	})
}

// Load replaces the hyperparameters from a dump.
func (m *Model) Load(d dump.Value) error {
	var fields [2]float64
	for i, name := range [...]string{"alpha", "inv_beta"} {
		item, err := d.MustField(name)
		if err != nil {
			return fmt.Errorf("%w: gp model dump: %v", distributions.ErrInvalidArgument, err)
		}
		f, err := item.AsFloat()
		if err != nil {
			return fmt.Errorf("%w: gp model dump: %v", distributions.ErrInvalidArgument, err)
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

// posterior returns the Gamma posterior parameters given a group.
func (m *Model) posterior(g *Group) (alpha, invBeta float64) {
	return m.alpha + float64(g.sum), m.invBeta + float64(g.count)
}

// ScoreValue returns the negative-binomial predictive log probability of
// value.
func (m *Model) ScoreValue(g distributions.Group[Value], value Value) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, &distributions.SupportError{Value: value, Support: "counts >= 0"}
	}
	alpha, invBeta := m.posterior(gg)
	return scoreNB(alpha, invBeta, float64(value)), nil
}

// scoreNB is the negative binomial log pmf with shape alpha and inverse
// scale invBeta, i.e. the predictive of Gamma(alpha, 1/invBeta).
func scoreNB(alpha, invBeta, value float64) float64 {
	lgX, _ := math.Lgamma(alpha + value)
	lgA, _ := math.Lgamma(alpha)
	lgF, _ := math.Lgamma(value + 1)
	return lgX - lgA - lgF +
		alpha*math.Log(invBeta/(invBeta+1)) -
		value*math.Log(invBeta+1)
}

// ScoreGroup returns the marginal log probability of the group's
// observations.
func (m *Model) ScoreGroup(g distributions.Group[Value]) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if gg.count == 0 {
		return 0, nil
	}
	alpha, invBeta := m.posterior(gg)
	lgN, _ := math.Lgamma(alpha)
	lg0, _ := math.Lgamma(m.alpha)
	return lgN - lg0 +
		m.alpha*math.Log(m.invBeta) - alpha*math.Log(invBeta) -
		gg.logProdFactorial, nil
}

// SampleValue draws one count from the posterior predictive by first drawing
// a rate from the Gamma posterior.
func (m *Model) SampleValue(rng *distributions.RNG, g distributions.Group[Value]) (Value, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	alpha, invBeta := m.posterior(gg)
	src := rng.Source()
	rate := distuv.Gamma{Alpha: alpha, Beta: invBeta, Src: src}.Rand()
	return int64(distuv.Poisson{Lambda: rate, Src: src}.Rand()), nil
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
	alpha, invBeta := m.posterior(gg)
	return &Scorer{alpha: alpha, invBeta: invBeta}, nil
}

func (m *Model) group(g distributions.Group[Value]) (*Group, error) {
	gg, ok := g.(*Group)
	if !ok {
		return nil, &distributions.MismatchError{Want: "gp.Group", Got: fmt.Sprintf("%T", g)}
	}
	if gg.model != m {
		return nil, &distributions.MismatchError{Want: "group bound to this model", Got: "group of another model"}
	}
	return gg, nil
}

// Group is the sufficient statistic: the count, sum, and accumulated
// log(prod x_i!) of the observations.
type Group struct {
	model            *Model
	count            int64
	sum              int64
	logProdFactorial float64
}

// Init resets the group to the empty state.
func (g *Group) Init() {
	g.count = 0
	g.sum = 0
	g.logProdFactorial = 0
}

// Add incorporates one observation.
func (g *Group) Add(value Value) error {
	if value < 0 {
		return &distributions.SupportError{Value: value, Support: "counts >= 0"}
	}
	g.count++
	g.sum += value
	lf, _ := math.Lgamma(float64(value) + 1)
	g.logProdFactorial += lf
	return nil
}

// Remove removes one previously added observation.
func (g *Group) Remove(value Value) error {
	if value < 0 {
		return &distributions.SupportError{Value: value, Support: "counts >= 0"}
	}
	if g.count == 0 || g.sum < value {
		return fmt.Errorf("%w: remove of %d never added", distributions.ErrInvalidArgument, value)
	}
	g.count--
	g.sum -= value
	lf, _ := math.Lgamma(float64(value) + 1)
	g.logProdFactorial -= lf
	if g.count == 0 {
		g.logProdFactorial = 0 // clamp float residue at empty
	}
	return nil
}

// Merge combines other's statistics into g; other is not mutated.
func (g *Group) Merge(other distributions.Group[Value]) error {
	oo, err := g.model.group(other)
	if err != nil {
		return err
	}
	g.count += oo.count
	g.sum += oo.sum
	g.logProdFactorial += oo.logProdFactorial
	return nil
}

// Count returns the number of observations summarized.
func (g *Group) Count() int64 { return g.count }

// Dump serializes the sufficient statistic.
func (g *Group) Dump() dump.Value {
	return dump.Map(map[string]dump.Value{
		"count":              dump.Int(g.count),
		"sum":                dump.Int(g.sum),
		"log_prod_factorial": dump.Float(g.logProdFactorial),
	})
}

// Load restores the sufficient statistic from a dump.
func (g *Group) Load(d dump.Value) error {
	count, err := intField(d, "count")
	if err != nil {
		return err
	}
	sum, err := intField(d, "sum")
	if err != nil {
		return err
	}
	item, err := d.MustField("log_prod_factorial")
	if err != nil {
		return fmt.Errorf("%w: gp group dump: %v", distributions.ErrInvalidArgument, err)
	}
	lpf, err := item.AsFloat()
	if err != nil {
		return fmt.Errorf("%w: gp group dump: %v", distributions.ErrInvalidArgument, err)
	}
	if count < 0 || sum < 0 {
		return fmt.Errorf("%w: gp group dump: negative statistic", distributions.ErrInvalidArgument)
	}
	g.count = count
	g.sum = sum
	g.logProdFactorial = lpf
	return nil
}

func intField(d dump.Value, name string) (int64, error) {
	item, err := d.MustField(name)
	if err != nil {
		return 0, fmt.Errorf("%w: gp group dump: %v", distributions.ErrInvalidArgument, err)
	}
	n, err := item.AsInt()
	if err != nil {
		return 0, fmt.Errorf("%w: gp group dump: %v", distributions.ErrInvalidArgument, err)
	}
	return n, nil
}

// Scorer caches the negative binomial parameters of one group snapshot.
type Scorer struct {
	alpha   float64
	invBeta float64
}

// Eval scores one count against the cached predictive.
func (s *Scorer) Eval(value Value) (float64, error) {
	if value < 0 {
		return 0, &distributions.SupportError{Value: value, Support: "counts >= 0"}
	}
	return scoreNB(s.alpha, s.invBeta, float64(value)), nil
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
			"alpha":    dump.Float(1.0),
			"inv_beta": dump.Float(1.0),
		}),
		Values: []Value{0, 1, 1, 2, 2, 3, 5},
	},
	{
		Model: dump.Map(map[string]dump.Value{
			"alpha":    dump.Float(7.5),
			"inv_beta": dump.Float(2.5),
		}),
		Values: []Value{0, 1, 2, 2, 3, 4, 6, 8, 10},
	},
}
