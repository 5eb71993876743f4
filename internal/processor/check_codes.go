package processor

import (
	"math/rand/v2"
	"sync"

	"account_ledger/internal/domain"
)

const (
	minCheckCode     = 1000
	maxCheckCode     = 9999
	maxRandomRetries = 32
)

// CheckCodeGenerator hands out four digit check codes that do not collide with
// any code still outstanding. Codes are not meant to be unguessable.
type CheckCodeGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewCheckCodeGenerator(src rand.Source) *CheckCodeGenerator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &CheckCodeGenerator{rng: rand.New(src)}
}

// Next draws random codes, re-rolling on collision. After maxRandomRetries misses
// it walks the code space from a random start so a nearly full space still
// yields a free code.
func (g *CheckCodeGenerator) Next(inUse func(code uint32) bool) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	const span = maxCheckCode - minCheckCode + 1

	for i := 0; i < maxRandomRetries; i++ {
		code := uint32(minCheckCode + g.rng.IntN(span))
		if !inUse(code) {
			return code, nil
		}
	}

	start := g.rng.IntN(span)
	for i := 0; i < span; i++ {
		code := uint32(minCheckCode + (start+i)%span)
		if !inUse(code) {
			return code, nil
		}
	}
	return 0, domain.ErrCheckCodesExhausted
}
