package pricing

import (
	"math/rand/v2"
	"sync"
)

// MaxSyntheticPrice bounds RandomFallback: prices fall in [0, MaxSyntheticPrice).
const MaxSyntheticPrice = 1000.0

// Fallback produces a tradable price when the live quote is unavailable.
type Fallback interface {
	Price(symbol string) float64
}

type FallbackFunc func(symbol string) float64

func (f FallbackFunc) Price(symbol string) float64 { return f(symbol) }

// FixedFallback always returns v.
func FixedFallback(v float64) Fallback {
	return FallbackFunc(func(string) float64 { return v })
}

type randomFallback struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// RandomFallback draws a uniform price in [0, 1000). A nil rng uses the global source.
func RandomFallback(rng *rand.Rand) Fallback {
	return &randomFallback{rng: rng}
}

func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (f *randomFallback) Price(string) float64 {
	if f.rng == nil {
		return rand.Float64() * MaxSyntheticPrice
	}
	// rand.Rand не потокобезопасен
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Float64() * MaxSyntheticPrice
}
