package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandWithoutRangesReturnsBase(t *testing.T) {
	base := Default()
	out := Sweep{}.Expand(base)
	require.Len(t, out, 1)
	assert.Equal(t, base, out[0])
	assert.Equal(t, 1, Sweep{}.Count())
}

func TestExpandCartesianProduct(t *testing.T) {
	s := Sweep{
		CarryOverCount: []int{0, 2},
		Game:           []string{"a", "b", "c"},
		ChainRewards:   []bool{false, true},
	}
	out := s.Expand(Default())
	require.Len(t, out, 12)
	assert.Equal(t, 12, s.Count())

	seen := map[[3]any]bool{}
	for _, e := range out {
		seen[[3]any{e.CarryOverCount, e.Game, e.ChainRewards}] = true
		assert.Equal(t, 10, e.Generations)
	}
	assert.Len(t, seen, 12)
}

func TestExpandOrderVariesGenerationsFastest(t *testing.T) {
	s := Sweep{Generations: []int{1, 2}, ChainRewards: []bool{false, true}}
	out := s.Expand(Default())
	require.Len(t, out, 4)
	assert.Equal(t, []int{1, 2, 1, 2}, []int{out[0].Generations, out[1].Generations, out[2].Generations, out[3].Generations})
	assert.False(t, out[1].ChainRewards)
	assert.True(t, out[2].ChainRewards)
}
