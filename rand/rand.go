// rand/rand.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	"github.com/MichaelTJones/pcg"
)

///////////////////////////////////////////////////////////////////////////
// Random numbers.

// Rand is a small PCG-based generator. It is not safe for concurrent use;
// each goroutine that needs random numbers should have its own.
type Rand struct {
	r *pcg.PCG32
}

func Make() *Rand {
	return &Rand{r: pcg.NewPCG32()}
}

// MakeSeeded returns a Rand with a deterministic sequence.
func MakeSeeded(s int64) *Rand {
	r := Make()
	r.Seed(s)
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), 0xda3e39cb94b95bdb)
}

func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.r.Bounded(uint32(n)))
}

func (r *Rand) Uint32() uint32 {
	return r.r.Random()
}

func (r *Rand) Float32() float32 {
	return float32(r.r.Random()) / (1<<32 - 1)
}

func (r *Rand) Float64() float64 {
	return float64(r.r.Random()) / (1<<32 - 1)
}

// Uniform returns a value in [lo, hi].
func (r *Rand) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// Chance returns true with probability p.
func (r *Rand) Chance(p float64) bool {
	return p > 0 && r.Float64() < p
}

// Sample returns a uniformly selected element of the slice and true, or
// the zero value and false if the slice is empty.
func Sample[T any](r *Rand, s []T) (T, bool) {
	if len(s) == 0 {
		var v T
		return v, false
	}
	return s[r.Intn(len(s))], true
}
