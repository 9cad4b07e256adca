package evo

import (
	"math/rand"
	"strings"
	"testing"

	"coevofuzzy/internal/genotype"

	"github.com/stretchr/testify/require"
)

func TestCutPointRange(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		cut := CutPoint(rng, 5)
		require.GreaterOrEqual(t, cut, 1)
		require.LessOrEqual(t, cut, 3)
	}
}

func TestOnePointCrossoverSwapsTails(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 200; trial++ {
		a, _ := genotype.Parse("11111111")
		b, _ := genotype.Parse("00000000")
		pool := []*genotype.PopEntity{{Genotype: a}, {Genotype: b}}

		require.NoError(t, OnePointCrossover{Probability: 1}.Cross(rng, pool))

		childA, childB := pool[0].Genotype.String(), pool[1].Genotype.String()
		cut := 0
		for cut < len(childA) && childA[cut] == '1' {
			cut++
		}
		require.GreaterOrEqual(t, cut, 1, "cut never at 0: %s", childA)
		require.LessOrEqual(t, cut, 6, "cut never at L-1: %s", childA)
		for i := range childA {
			if i < cut {
				require.Equal(t, byte('1'), childA[i])
				require.Equal(t, byte('0'), childB[i])
			} else {
				require.Equal(t, byte('0'), childA[i])
				require.Equal(t, byte('1'), childB[i])
			}
		}
	}
}

func TestOnePointCrossoverZeroProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a, _ := genotype.Parse("1111")
	b, _ := genotype.Parse("0000")
	pool := []*genotype.PopEntity{{Genotype: a}, {Genotype: b}}
	require.NoError(t, OnePointCrossover{Probability: 0}.Cross(rng, pool))
	require.Equal(t, "1111", a.String())
	require.Equal(t, "0000", b.String())
}

func TestOnePointCrossoverOddPoolLeavesLastAlone(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	last, _ := genotype.Parse("1010")
	pool := []*genotype.PopEntity{
		{Genotype: genotype.New(4)},
		{Genotype: genotype.New(4)},
		{Genotype: last},
	}
	require.NoError(t, OnePointCrossover{Probability: 1}.Cross(rng, pool))
	require.Equal(t, "1010", last.String())
}

func TestBitToggleSingleBitWhenNoBitProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	e := &genotype.PopEntity{Genotype: genotype.New(32)}
	require.NoError(t, BitToggleMutation{IndividualProbability: 1}.Mutate(rng, []*genotype.PopEntity{e}))

	require.Equal(t, 1, strings.Count(e.Genotype.String(), "1"))
}

func TestBitTogglePerBit(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	e := &genotype.PopEntity{Genotype: genotype.New(16)}
	require.NoError(t, BitToggleMutation{IndividualProbability: 1, BitProbability: 1}.Mutate(rng, []*genotype.PopEntity{e}))
	require.Equal(t, "1111111111111111", e.Genotype.String())
}

func TestBitToggleSkipsWithZeroIndividualProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	e := &genotype.PopEntity{Genotype: genotype.New(16)}
	require.NoError(t, BitToggleMutation{IndividualProbability: 0, BitProbability: 1}.Mutate(rng, []*genotype.PopEntity{e}))
	require.Equal(t, "0000000000000000", e.Genotype.String())
}
