package routing

import "math/rand"

// CountingSource is a seeded rand.Source that remembers how many values it has
// produced, so a generator can be rebuilt from (seed, draws).
type CountingSource struct {
	src   rand.Source
	draws uint64
}

func NewCountingSource(seed int64) *CountingSource {
	return &CountingSource{src: rand.NewSource(seed)}
}

func (s *CountingSource) Int63() int64 {
	s.draws++
	return s.src.Int63()
}

func (s *CountingSource) Seed(seed int64) {
	s.src.Seed(seed)
	s.draws = 0
}

func (s *CountingSource) Draws() uint64 { return s.draws }

// Skip discards n values.
func (s *CountingSource) Skip(n uint64) {
	for i := uint64(0); i < n; i++ {
		s.Int63()
	}
}
