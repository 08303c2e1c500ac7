package distributions

import "math/rand/v2"

// rngStream is mixed into the second PCG seed word so that the two words
// differ even for small seeds.
const rngStream = 0x9e3779b97f4a7c15

// RNG is the random source all sampling operations draw from.
//
// It is an explicit handle rather than process-global state: every
// SampleValue/SampleGroup call receives the RNG it should consume. Reseeding
// with the same value makes subsequent sampling sequences fully reproducible.
//
// An RNG is not safe for concurrent use; like groups and mixtures, it is
// owned by a single logical thread of control.
type RNG struct {
	src *rand.PCG
	rnd *rand.Rand
}

// NewRNG returns an RNG seeded with the given value.
func NewRNG(seed uint64) *RNG {
	src := rand.NewPCG(seed, seed^rngStream)
	return &RNG{src: src, rnd: rand.New(src)}
}

// Reseed resets the generator state. Two sampling sequences of equal length
// started from the same seed produce identical output.
func (r *RNG) Reseed(seed uint64) {
	r.src.Seed(seed, seed^rngStream)
}

// Float64 returns a uniform draw from [0, 1).
func (r *RNG) Float64() float64 { return r.rnd.Float64() }

// IntN returns a uniform draw from [0, n).
func (r *RNG) IntN(n int) int { return r.rnd.IntN(n) }

// Int64N returns a uniform draw from [0, n).
func (r *RNG) Int64N(n int64) int64 { return r.rnd.Int64N(n) }

// NormFloat64 returns a standard normal draw.
func (r *RNG) NormFloat64() float64 { return r.rnd.NormFloat64() }

// Shuffle pseudo-randomizes the order of n elements.
func (r *RNG) Shuffle(n int, swap func(i, j int)) { r.rnd.Shuffle(n, swap) }

// Source exposes the underlying rand.Source for handing to gonum distuv
// distributions.
func (r *RNG) Source() rand.Source { return r.src }
