package task

import "math/rand"

// Rand is the source of every random draw made when configuring and
// advancing tasks. Implementations must be safe for concurrent use.
type Rand interface {
	// Float64 returns a number in [0.0,1.0).
	Float64() float64
	// Intn returns a number in [0,n).
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) Intn(n int) int   { return rand.Intn(n) }

// DefaultRand draws from the math/rand global source.
var DefaultRand Rand = globalRand{}

// intBetween draws from [min,max).
func intBetween(r Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + r.Intn(max-min)
}

// floatBetween draws from [min,max).
func floatBetween(r Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + r.Float64()*(max-min)
}
