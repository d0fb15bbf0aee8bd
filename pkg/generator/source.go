package generator

import (
	"math/rand"
	"sync"
	"time"
)

// Source is the randomness the search draws on. *rand.Rand satisfies it;
// tests pass a seeded one to make runs reproducible.
type Source interface {
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// NewSource returns a seeded source. A zero seed draws from the clock so that
// production runs explore differently each time.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// lockedSource serializes access to a *rand.Rand, which is not safe for
// concurrent use
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *lockedSource) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}
