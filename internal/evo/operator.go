package evo

import (
	"fmt"
	"math/rand"

	"coevofuzzy/internal/genotype"
)

// Crossover recombines a breeding pool in place.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, pool []*genotype.PopEntity) error
}

// Mutation perturbs a breeding pool in place.
type Mutation interface {
	Name() string
	Mutate(rng *rand.Rand, pool []*genotype.PopEntity) error
}

// OnePointCrossover pairs adjacent entities (0,1), (2,3), ... and, with the
// configured probability, swaps their tails from a cut point in [1, L-2].
type OnePointCrossover struct {
	Probability float64
}

func (OnePointCrossover) Name() string {
	return "one_point"
}

func (c OnePointCrossover) Cross(rng *rand.Rand, pool []*genotype.PopEntity) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	for i := 0; i+1 < len(pool); i += 2 {
		if rng.Float64() >= c.Probability {
			continue
		}
		a, b := pool[i].Genotype, pool[i+1].Genotype
		length := a.Len()
		if length < 3 {
			continue
		}
		cut := CutPoint(rng, length)
		if err := a.SwapTail(b, cut); err != nil {
			return fmt.Errorf("crossover of pair %d: %w", i/2, err)
		}
	}
	return nil
}

// CutPoint draws a crossover point uniformly in [1, length-2].
func CutPoint(rng *rand.Rand, length int) int {
	return 1 + rng.Intn(length-2)
}

// BitToggleMutation mutates each entity with IndividualProbability. A
// mutated entity flips every bit independently with BitProbability, or
// exactly one random bit when BitProbability is zero.
type BitToggleMutation struct {
	IndividualProbability float64
	BitProbability        float64
}

func (BitToggleMutation) Name() string {
	return "bit_toggle"
}

func (m BitToggleMutation) Mutate(rng *rand.Rand, pool []*genotype.PopEntity) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	for _, e := range pool {
		if rng.Float64() >= m.IndividualProbability {
			continue
		}
		if err := m.toggle(rng, e.Genotype); err != nil {
			return err
		}
	}
	return nil
}

func (m BitToggleMutation) toggle(rng *rand.Rand, g *genotype.Genotype) error {
	if g.Len() == 0 {
		return nil
	}
	if m.BitProbability <= 0 {
		return g.Flip(rng.Intn(g.Len()))
	}
	for i := 0; i < g.Len(); i++ {
		if rng.Float64() < m.BitProbability {
			if err := g.Flip(i); err != nil {
				return err
			}
		}
	}
	return nil
}
