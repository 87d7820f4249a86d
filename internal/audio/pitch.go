package audio

import (
	"math/rand"
	"time"
)

// PitchRange configures the per-character pitch ratio.
type PitchRange struct {
	Min    float64
	Max    float64
	Random bool
	Seed   int64 // 0 seeds from the clock
}

// Pitches draws n ratios in order. Without Random every ratio is the midpoint.
func (p PitchRange) Pitches(n int) []float64 {
	out := make([]float64, n)
	if !p.Random || p.Max <= p.Min {
		mid := (p.Min + p.Max) / 2
		for i := range out {
			out[i] = mid
		}
		return out
	}

	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = p.Min + rng.Float64()*(p.Max-p.Min)
	}
	return out
}
