package perf

import (
	"math/rand/v2"
	"sync"
)

// Sampler is a fixed-probability gate. A rate of 0 never samples and a rate
// of 1 always does, regardless of the random source.
type Sampler struct {
	rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a Sampler seeded with seed. Equal seeds yield equal
// decision sequences.
func NewSampler(rate float64, seed uint64) *Sampler {
	return &Sampler{
		rate: rate,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Sampler) Rate() float64 { return s.rate }

func (s *Sampler) Sample() bool {
	switch {
	case s.rate <= 0:
		return false
	case s.rate >= 1:
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.rate
}
