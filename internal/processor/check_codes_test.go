package processor

import (
	"math/rand/v2"
	"testing"

	"account_ledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCodeGenerator_InRange(t *testing.T) {
	g := NewCheckCodeGenerator(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		code, err := g.Next(func(uint32) bool { return false })
		require.NoError(t, err)
		assert.GreaterOrEqual(t, code, uint32(minCheckCode))
		assert.LessOrEqual(t, code, uint32(maxCheckCode))
	}
}

func TestCheckCodeGenerator_ReRollsOnCollision(t *testing.T) {
	g := NewCheckCodeGenerator(rand.NewPCG(7, 7))
	used := make(map[uint32]bool)

	for i := 0; i < 2000; i++ {
		code, err := g.Next(func(c uint32) bool { return used[c] })
		require.NoError(t, err)
		require.False(t, used[code], "code %d handed out twice", code)
		used[code] = true
	}
}

func TestCheckCodeGenerator_FindsLastFreeCode(t *testing.T) {
	g := NewCheckCodeGenerator(rand.NewPCG(3, 4))

	code, err := g.Next(func(c uint32) bool { return c != 5555 })

	require.NoError(t, err)
	assert.Equal(t, uint32(5555), code)
}

func TestCheckCodeGenerator_Exhausted(t *testing.T) {
	g := NewCheckCodeGenerator(nil)

	_, err := g.Next(func(uint32) bool { return true })

	assert.ErrorIs(t, err, domain.ErrCheckCodesExhausted)
}
