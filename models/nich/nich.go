// Package nich implements the normal-inverse-chi-squared model family: a
// normal likelihood with unknown mean and variance under the conjugate
// NIX prior, parameterized by (mu, kappa, sigmasq, nu).
//
// The posterior predictive is a location-scale Student-t; scoring caches
// reduce each evaluation to one log and one multiply-add.
//
// Capabilities: Scorer, VectorScorer (and therefore Mixture).
package nich

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/posterior/distributions"
	"github.com/posterior/distributions/dump"
)

// Value is the observation type of this family.
type Value = float64

// Model holds the NIX hyperparameters: prior mean mu with pseudo-count
// kappa, and prior variance sigmasq with pseudo-count nu.
type Model struct {
	mu      float64
	kappa   float64
	sigmasq float64
	nu      float64
}

var (
	_ distributions.ScorerModel[Value]       = (*Model)(nil)
	_ distributions.VectorScorerModel[Value] = (*Model)(nil)
)

// New constructs a model from hyperparameters.
func New(mu, kappa, sigmasq, nu float64) (*Model, error) {
	if !(kappa > 0) || !(sigmasq > 0) || !(nu > 0) || math.IsNaN(mu) || math.IsInf(mu, 0) {
		return nil, fmt.Errorf("%w: nich hyperparameters mu=%v kappa=%v sigmasq=%v nu=%v",
			distributions.ErrInvalidArgument, mu, kappa, sigmasq, nu)
	}
	return &Model{mu: mu, kappa: kappa, sigmasq: sigmasq, nu: nu}, nil
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
		"mu":      dump.Float(m.mu),
		"kappa":   dump.Float(m.kappa),
		"sigmasq": dump.Float(m.sigmasq),
		"nu":      dump.Float(m.nu),
	})
}

// Load replaces the hyperparameters from a dump.
func (m *Model) Load(d dump.Value) error {
	var fields [4]float64
	for i, name := range [...]string{"mu", "kappa", "sigmasq", "nu"} {
		item, err := d.MustField(name)
		if err != nil {
			return fmt.Errorf("%w: nich model dump: %v", distributions.ErrInvalidArgument, err)
		}
		f, err := item.AsFloat()
		if err != nil {
			return fmt.Errorf("%w: nich model dump: %v", distributions.ErrInvalidArgument, err)
		}
		fields[i] = f
	}
	loaded, err := New(fields[0], fields[1], fields[2], fields[3])
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

// posterior is the NIX posterior given a group's statistics, in the same
// hyperparameter coordinates as the prior.
type posterior struct {
	mu      float64
	kappa   float64
	sigmasq float64
	nu      float64
}

func (m *Model) plusGroup(g *Group) posterior {
	var post posterior
	n := float64(g.count)
	mu1 := m.mu - g.mean
	post.kappa = m.kappa + n
	post.mu = (m.kappa*m.mu + g.mean*n) / post.kappa
	post.nu = m.nu + n
	post.sigmasq = (m.nu*m.sigmasq + g.countTimesVariance +
		(n*m.kappa*mu1*mu1)/post.kappa) / post.nu
	return post
}

// studentT holds the cached posterior-predictive Student-t terms shared by
// Scorer and VectorScorer.
type studentT struct {
	score     float64
	logCoeff  float64
	precision float64
	mean      float64
}

func (m *Model) predictive(g *Group) studentT {
	post := m.plusGroup(g)
	lambda := post.kappa / ((post.kappa + 1) * post.sigmasq)
	score1, _ := math.Lgamma(0.5*post.nu + 0.5)
	score2, _ := math.Lgamma(0.5 * post.nu)
	return studentT{
		score:     score1 - score2 + 0.5*math.Log(lambda/(math.Pi*post.nu)),
		logCoeff:  -0.5*post.nu - 0.5,
		precision: lambda / post.nu,
		mean:      post.mu,
	}
}

func (t studentT) eval(value float64) float64 {
	diff := value - t.mean
	return t.score + t.logCoeff*math.Log1p(t.precision*diff*diff)
}

// ScoreValue returns the Student-t predictive log density of value given the
// group's observations.
func (m *Model) ScoreValue(g distributions.Group[Value], value Value) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if err := checkValue(value); err != nil {
		return 0, err
	}
	return m.predictive(gg).eval(value), nil
}

// ScoreGroup returns the marginal log probability of the group's
// observations under the prior.
func (m *Model) ScoreGroup(g distributions.Group[Value]) (float64, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	if gg.count == 0 {
		return 0, nil // log p(empty) = log 1
	}
	post := m.plusGroup(gg)
	n := float64(gg.count)
	lg1, _ := math.Lgamma(0.5 * post.nu)
	lg2, _ := math.Lgamma(0.5 * m.nu)
	score := lg1 - lg2
	score += 0.5 * math.Log(m.kappa/post.kappa)
	score += 0.5*m.nu*math.Log(m.nu*m.sigmasq) - 0.5*post.nu*math.Log(post.nu*post.sigmasq)
	score -= 0.5 * n * math.Log(math.Pi)
	return score, nil
}

// SampleValue draws from the posterior predictive: sigma^2 from the scaled
// inverse chi-squared posterior, mu given sigma^2, then the observation.
func (m *Model) SampleValue(rng *distributions.RNG, g distributions.Group[Value]) (Value, error) {
	gg, err := m.group(g)
	if err != nil {
		return 0, err
	}
	post := m.plusGroup(gg)
	chi2 := distuv.ChiSquared{K: post.nu, Src: rng.Source()}.Rand()
	sigmasq := post.nu * post.sigmasq / chi2
	mu := distuv.Normal{Mu: post.mu, Sigma: math.Sqrt(sigmasq / post.kappa), Src: rng.Source()}.Rand()
	return distuv.Normal{Mu: mu, Sigma: math.Sqrt(sigmasq), Src: rng.Source()}.Rand(), nil
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
	return &Scorer{t: m.predictive(gg)}, nil
}

// NewVectorScorer builds an empty vector scorer.
func (m *Model) NewVectorScorer() (distributions.VectorScorer[Value], error) {
	return &VectorScorer{model: m}, nil
}

func (m *Model) group(g distributions.Group[Value]) (*Group, error) {
	gg, ok := g.(*Group)
	if !ok {
		return nil, &distributions.MismatchError{Want: "nich.Group", Got: fmt.Sprintf("%T", g)}
	}
	if gg.model != m {
		return nil, &distributions.MismatchError{Want: "group bound to this model", Got: "group of another model"}
	}
	return gg, nil
}

func checkValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &distributions.SupportError{Value: value, Support: "finite reals"}
	}
	return nil
}

// Group is the sufficient statistic: observation count, running mean, and
// count-times-variance, updated with Welford's recurrence so Remove is the
// algebraic inverse of Add.
type Group struct {
	model              *Model
	count              int64
	mean               float64
	countTimesVariance float64
}

// Init resets the group to the empty state.
func (g *Group) Init() {
	g.count = 0
	g.mean = 0
	g.countTimesVariance = 0
}

// Add incorporates one observation.
func (g *Group) Add(value Value) error {
	if err := checkValue(value); err != nil {
		return err
	}
	g.count++
	delta := value - g.mean
	g.mean += delta / float64(g.count)
	g.countTimesVariance += delta * (value - g.mean)
	return nil
}

// Remove removes one previously added observation.
func (g *Group) Remove(value Value) error {
	if err := checkValue(value); err != nil {
		return err
	}
	if g.count == 0 {
		return fmt.Errorf("%w: remove from empty group", distributions.ErrInvalidArgument)
	}
	total := g.mean * float64(g.count)
	delta := value - g.mean
	g.count--
	if g.count == 0 {
		g.mean = 0
	} else {
		g.mean = (total - value) / float64(g.count)
	}
	if g.count <= 1 {
		g.countTimesVariance = 0
	} else {
		g.countTimesVariance -= delta * (value - g.mean)
	}
	return nil
}

// Merge combines other's statistics into g; other is not mutated.
func (g *Group) Merge(other distributions.Group[Value]) error {
	oo, err := g.model.group(other)
	if err != nil {
		return err
	}
	totalCount := g.count + oo.count
	if totalCount == 0 {
		return nil
	}
	delta := oo.mean - g.mean
	sourcePart := float64(oo.count) / float64(totalCount)
	crossPart := float64(g.count) * sourcePart
	g.count = totalCount
	g.mean += sourcePart * delta
	g.countTimesVariance += oo.countTimesVariance + crossPart*delta*delta
	return nil
}

// Count returns the number of observations summarized.
func (g *Group) Count() int64 { return g.count }

// Dump serializes the sufficient statistic.
func (g *Group) Dump() dump.Value {
	return dump.Map(map[string]dump.Value{
		"count":                dump.Int(g.count),
		"mean":                 dump.Float(g.mean),
		"count_times_variance": dump.Float(g.countTimesVariance),
	})
}

// Load restores the sufficient statistic from a dump.
func (g *Group) Load(d dump.Value) error {
	countItem, err := d.MustField("count")
	if err != nil {
		return fmt.Errorf("%w: nich group dump: %v", distributions.ErrInvalidArgument, err)
	}
	count, err := countItem.AsInt()
	if err != nil {
		return fmt.Errorf("%w: nich group dump: %v", distributions.ErrInvalidArgument, err)
	}
	if count < 0 {
		return fmt.Errorf("%w: nich group dump: negative count %d", distributions.ErrInvalidArgument, count)
	}
	var fields [2]float64
	for i, name := range [...]string{"mean", "count_times_variance"} {
		item, err := d.MustField(name)
		if err != nil {
			return fmt.Errorf("%w: nich group dump: %v", distributions.ErrInvalidArgument, err)
		}
		f, err := item.AsFloat()
		if err != nil {
			return fmt.Errorf("%w: nich group dump: %v", distributions.ErrInvalidArgument, err)
		}
		fields[i] = f
	}
	g.count = count
	g.mean = fields[0]
	g.countTimesVariance = fields[1]
	return nil
}

// Scorer caches the Student-t predictive of one group snapshot.
type Scorer struct {
	t studentT
}

// Eval scores one value against the cached predictive.
func (s *Scorer) Eval(value Value) (float64, error) {
	if err := checkValue(value); err != nil {
		return 0, err
	}
	return s.t.eval(value), nil
}

// VectorScorer caches the Student-t terms of N groups in parallel slices so
// one value can be scored against every group in a tight loop.
type VectorScorer struct {
	model     *Model
	score     []float64
	logCoeff  []float64
	precision []float64
	mean      []float64
}

// Len returns the number of cached groups.
func (vs *VectorScorer) Len() int { return len(vs.score) }

// Append extends the cache with one group.
func (vs *VectorScorer) Append(g distributions.Group[Value]) error {
	gg, err := vs.model.group(g)
	if err != nil {
		return err
	}
	t := vs.model.predictive(gg)
	vs.score = append(vs.score, t.score)
	vs.logCoeff = append(vs.logCoeff, t.logCoeff)
	vs.precision = append(vs.precision, t.precision)
	vs.mean = append(vs.mean, t.mean)
	return nil
}

// Update refreshes the cache entry for one group id.
func (vs *VectorScorer) Update(groupid int, g distributions.Group[Value]) error {
	if groupid < 0 || groupid >= len(vs.score) {
		return &distributions.GroupIDError{GroupID: groupid, Len: len(vs.score)}
	}
	gg, err := vs.model.group(g)
	if err != nil {
		return err
	}
	t := vs.model.predictive(gg)
	vs.score[groupid] = t.score
	vs.logCoeff[groupid] = t.logCoeff
	vs.precision[groupid] = t.precision
	vs.mean[groupid] = t.mean
	return nil
}

// Remove deletes one cache entry; higher ids shift down by one.
func (vs *VectorScorer) Remove(groupid int) error {
	if groupid < 0 || groupid >= len(vs.score) {
		return &distributions.GroupIDError{GroupID: groupid, Len: len(vs.score)}
	}
	vs.score = append(vs.score[:groupid], vs.score[groupid+1:]...)
	vs.logCoeff = append(vs.logCoeff[:groupid], vs.logCoeff[groupid+1:]...)
	vs.precision = append(vs.precision[:groupid], vs.precision[groupid+1:]...)
	vs.mean = append(vs.mean[:groupid], vs.mean[groupid+1:]...)
	return nil
}

// ScoreValue fills scores[i] with the predictive log density of value under
// group i.
func (vs *VectorScorer) ScoreValue(value Value, scores []float64) error {
	if len(scores) != len(vs.score) {
		return fmt.Errorf("%w: scores buffer length %d, want %d",
			distributions.ErrInvalidArgument, len(scores), len(vs.score))
	}
	if err := checkValue(value); err != nil {
		return err
	}
	for i := range vs.score {
		diff := value - vs.mean[i]
		scores[i] = vs.score[i] + vs.logCoeff[i]*math.Log1p(vs.precision[i]*diff*diff)
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
			"mu":      dump.Float(0),
			"kappa":   dump.Float(1),
			"sigmasq": dump.Float(1),
			"nu":      dump.Float(1),
		}),
		Values: []Value{-4.0, -2.0, -1.0, -0.5, 0.0, 0.5, 1.0, 2.0, 4.0},
	},
	{
		Model: dump.Map(map[string]dump.Value{
			"mu":      dump.Float(2.5),
			"kappa":   dump.Float(7.5),
			"sigmasq": dump.Float(4.0),
			"nu":      dump.Float(2.5),
		}),
		Values: []Value{0.1, 1.3, 1.9, 2.4, 2.5, 2.6, 3.1, 4.4, 6.0},
	},
}
