package promo

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// pcgSource implements Source with a PCG generator guarded by a mutex
type pcgSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewRandomSource returns a uniformly distributed Source seeded from the runtime
func NewRandomSource() Source {
	return &pcgSource{rng: mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))}
}

// NewSeededSource returns a deterministic Source, used for reproducible draws and tests
func NewSeededSource(seed uint64) Source {
	return &pcgSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Intn returns a uniformly distributed int in [0, n)
func (s *pcgSource) Intn(n int) int {
	if n <= 0 {
		panic("promo: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// cryptoSource implements Source using crypto/rand
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n)
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("promo: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("promo: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// NewSourceFromConfig picks the Source named by the engine configuration
func NewSourceFromConfig(name string) (Source, error) {
	switch name {
	case "", RandomSourcePCG:
		return NewRandomSource(), nil
	case RandomSourceCrypto:
		return NewCryptoSource(), nil
	default:
		return nil, ErrConfigInvalid.WithDetails("unknown random source " + name)
	}
}
