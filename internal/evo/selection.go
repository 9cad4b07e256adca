package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"coevofuzzy/internal/genotype"
)

var errEmptyPopulation = errors.New("no entities to select from")

// Selector picks count entities from a population by a fitness policy. The
// returned slice references the input entities; callers copy as needed.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, entities []*genotype.PopEntity, count int) ([]*genotype.PopEntity, error)
}

// ElitismSelector returns the count fittest entities, best first. The sort
// is stable so equally fit entities keep their population order.
type ElitismSelector struct{}

func (ElitismSelector) Name() string {
	return "elitism"
}

func (ElitismSelector) Select(_ *rand.Rand, entities []*genotype.PopEntity, count int) ([]*genotype.PopEntity, error) {
	if count < 0 {
		return nil, fmt.Errorf("invalid selection count: %d", count)
	}
	if count == 0 {
		return nil, nil
	}
	if len(entities) == 0 {
		return nil, errEmptyPopulation
	}
	if count > len(entities) {
		count = len(entities)
	}
	ranked := rankByFitness(entities)
	return ranked[:count], nil
}

// ElitismRandomSelector is ElitismSelector plus one uniformly random entity,
// so it returns count+1 entities.
type ElitismRandomSelector struct{}

func (ElitismRandomSelector) Name() string {
	return "elitism_random"
}

func (ElitismRandomSelector) Select(rng *rand.Rand, entities []*genotype.PopEntity, count int) ([]*genotype.PopEntity, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	picked, err := ElitismSelector{}.Select(rng, entities, count)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, errEmptyPopulation
	}
	return append(picked, entities[rng.Intn(len(entities))]), nil
}

// RankSelector runs count small tournaments over a tenth of the population
// each. The same entity may win several tournaments.
type RankSelector struct{}

func (RankSelector) Name() string {
	return "rank"
}

func (RankSelector) Select(rng *rand.Rand, entities []*genotype.PopEntity, count int) ([]*genotype.PopEntity, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid selection count: %d", count)
	}
	if count == 0 {
		return nil, nil
	}
	if len(entities) == 0 {
		return nil, errEmptyPopulation
	}

	sampleSize := (len(entities) + 9) / 10
	out := make([]*genotype.PopEntity, 0, count)
	for i := 0; i < count; i++ {
		best := entities[rng.Intn(len(entities))]
		for j := 1; j < sampleSize; j++ {
			candidate := entities[rng.Intn(len(entities))]
			if candidate.Fitness > best.Fitness {
				best = candidate
			}
		}
		out = append(out, best)
	}
	return out, nil
}

func SelectorFromName(name string) (Selector, error) {
	switch name {
	case "", "rank":
		return RankSelector{}, nil
	case "elitism":
		return ElitismSelector{}, nil
	case "elitism_random":
		return ElitismRandomSelector{}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}

func rankByFitness(entities []*genotype.PopEntity) []*genotype.PopEntity {
	ranked := make([]*genotype.PopEntity, len(entities))
	copy(ranked, entities)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked
}
