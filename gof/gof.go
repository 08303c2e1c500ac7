// Package gof provides goodness-of-fit statistics for validating samplers
// against analytic score functions.
//
// The statistics map to p-values in [0, 1]: a correct sampler produces
// p-values distributed roughly uniformly, so verification suites assert the
// p-value exceeds a small significance threshold (1e-3 in this module's
// tests). The package is used only for verification; it is not part of the
// inference-time API.
package gof

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// truncateBeyond caps the number of individually tested chi-square
	// cells.
	truncateBeyond = 8

	// minExpectedCount is the smallest expected count a cell may carry on
	// its own. Cells below it are pooled into the tail, where the
	// chi-square approximation holds again; without pooling, a huge sparse
	// support (near-unique samples, expected counts near zero) rejects a
	// correct sampler.
	minExpectedCount = 5
)

// Discrete compares empirical samples of a discrete variable against
// expected outcome probabilities via Pearson's chi-square test, returning
// the p-value.
//
// probs maps each outcome to its analytic probability; every sampled
// outcome must have an entry, and probabilities may sum to less than one
// when the support is larger than the sampled set. At most truncateBeyond
// of the most probable outcomes are tested as individual cells; the
// remaining outcomes and any unlisted mass are pooled into a single tail
// cell, so the cell probabilities always sum to one.
func Discrete[V comparable](samples []V, probs map[V]float64) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("gof: no samples")
	}

	counts := make(map[V]int, len(probs))
	for _, s := range samples {
		if _, ok := probs[s]; !ok {
			return 0, fmt.Errorf("gof: sample %v has no expected probability", s)
		}
		counts[s]++
	}

	type cell struct {
		prob  float64
		count int
	}
	cells := make([]cell, 0, len(probs))
	for outcome, p := range probs {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return 0, fmt.Errorf("gof: bad probability %v for outcome %v", p, outcome)
		}
		if p == 0 {
			if counts[outcome] > 0 {
				return 0, fmt.Errorf("gof: outcome %v observed but has probability 0", outcome)
			}
			continue
		}
		cells = append(cells, cell{prob: p, count: counts[outcome]})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].prob > cells[j].prob })

	n := float64(len(samples))
	kept := 0
	for kept < len(cells) && kept < truncateBeyond && n*cells[kept].prob >= minExpectedCount {
		kept++
	}
	tail := cell{prob: 1, count: len(samples)}
	for _, c := range cells[:kept] {
		tail.prob -= c.prob
		tail.count -= c.count
	}
	cells = cells[:kept]
	if tail.count > 0 || tail.prob > 1e-9 {
		if tail.prob <= 0 {
			return 0, fmt.Errorf("gof: %d samples fall outside the modeled mass", tail.count)
		}
		cells = append(cells, tail)
	}

	var chi2 float64
	for _, c := range cells {
		if c.prob == 1 {
			if c.count == len(samples) {
				return 1, nil
			}
			return 0, nil
		}
		mean := n * c.prob
		diff := float64(c.count) - mean
		chi2 += diff * diff / mean
	}
	dof := len(cells) - 1
	if dof < 1 {
		return 0, fmt.Errorf("gof: too few outcomes for a chi-square test")
	}

	chi := distuv.ChiSquared{K: float64(dof)}
	return chi.Survival(chi2), nil
}

// Density compares empirical samples of a continuous variable against their
// analytic density values, returning a p-value.
//
// densities[i] must be the model density evaluated at samples[i]. Under the
// null hypothesis that the samples follow the density, the normalized gaps
//
//	g_i = n * p(x_(i)) * (x_(i+1) - x_(i))
//
// between order statistics are approximately unit-exponential; a
// Kolmogorov-Smirnov test of the gaps against Exp(1) yields the statistic.
func Density(samples, densities []float64) (float64, error) {
	if len(samples) != len(densities) {
		return 0, fmt.Errorf("gof: %d samples but %d densities", len(samples), len(densities))
	}
	if len(samples) < 3 {
		return 0, fmt.Errorf("gof: need at least 3 samples, got %d", len(samples))
	}

	type pair struct{ x, p float64 }
	pairs := make([]pair, len(samples))
	for i := range samples {
		if densities[i] < 0 || math.IsNaN(densities[i]) || math.IsInf(densities[i], 0) {
			return 0, fmt.Errorf("gof: bad density %v at sample %v", densities[i], samples[i])
		}
		pairs[i] = pair{samples[i], densities[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].x < pairs[j].x })

	n := float64(len(pairs))
	gaps := make([]float64, 0, len(pairs)-1)
	for i := 0; i+1 < len(pairs); i++ {
		density := 0.5 * (pairs[i].p + pairs[i+1].p)
		gaps = append(gaps, n*density*(pairs[i+1].x-pairs[i].x))
	}

	return KolmogorovSmirnov(gaps, distuv.Exponential{Rate: 1}.CDF), nil
}

// KolmogorovSmirnov runs a one-sample KS test of the samples against the
// given CDF and returns the asymptotic p-value.
func KolmogorovSmirnov(samples []float64, cdf func(float64) float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	var d float64
	for i, x := range sorted {
		f := cdf(x)
		lo := f - float64(i)/n
		hi := float64(i+1)/n - f
		d = math.Max(d, math.Max(lo, hi))
	}
	return ksSurvival(math.Sqrt(n) * d)
}

// ksSurvival evaluates the Kolmogorov distribution's survival function
// Q(t) = 2 sum_{k>=1} (-1)^{k-1} exp(-2 k^2 t^2).
//
// gonum's distuv has no Kolmogorov distribution; the alternating series
// converges in a handful of terms for any t of practical interest.
func ksSurvival(t float64) float64 {
	if t <= 0 {
		return 1
	}
	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*t*t)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	return math.Min(1, math.Max(0, p))
}
