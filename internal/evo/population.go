package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"coevofuzzy/internal/genotype"
)

// Population is a named, fixed-size collection of owned entities. The
// entities themselves are only touched by the goroutine evolving the
// population; the representative snapshot is the part shared with the
// paired population and is guarded separately.
type Population struct {
	name         string
	genomeLength int
	entities     []*genotype.PopEntity

	repMu           sync.RWMutex
	representatives []*genotype.PopEntity
	readyOnce       sync.Once
	ready           chan struct{}
}

func NewPopulation(name string, size, genomeLength int) (*Population, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population %s: size must be > 0", name)
	}
	if genomeLength <= 0 {
		return nil, fmt.Errorf("population %s: genome length must be > 0", name)
	}
	entities := make([]*genotype.PopEntity, size)
	for i := range entities {
		entities[i] = genotype.NewEntity(genomeLength)
	}
	return &Population{
		name:         name,
		genomeLength: genomeLength,
		entities:     entities,
		ready:        make(chan struct{}),
	}, nil
}

func (p *Population) Name() string      { return p.name }
func (p *Population) Size() int         { return len(p.entities) }
func (p *Population) GenomeLength() int { return p.genomeLength }

// Entities exposes the owned entities to the evolving goroutine.
func (p *Population) Entities() []*genotype.PopEntity {
	return p.entities
}

func (p *Population) Randomize(rng *rand.Rand) {
	for _, e := range p.entities {
		e.Genotype.Randomize(rng)
		e.Fitness = 0
	}
}

// Replace swaps the whole entity set.
func (p *Population) Replace(entities []*genotype.PopEntity) error {
	if len(entities) != len(p.entities) {
		return fmt.Errorf("population %s: replace with %d entities, want %d", p.name, len(entities), len(p.entities))
	}
	for i, e := range entities {
		if e == nil {
			return fmt.Errorf("population %s: entity %d is nil", p.name, i)
		}
		if e.Genotype.Len() != p.genomeLength {
			return fmt.Errorf("population %s: entity %d has genome length %d, want %d: %w", p.name, i, e.Genotype.Len(), p.genomeLength, genotype.ErrLengthMismatch)
		}
	}
	p.entities = entities
	return nil
}

// ReplaceWith keeps base and appends generated.
func (p *Population) ReplaceWith(base, generated []*genotype.PopEntity) error {
	next := make([]*genotype.PopEntity, 0, len(base)+len(generated))
	next = append(next, base...)
	next = append(next, generated...)
	return p.Replace(next)
}

// SelectSome runs the selector and returns independent copies.
func (p *Population) SelectSome(rng *rand.Rand, selector Selector, count int) ([]*genotype.PopEntity, error) {
	picked, err := selector.Select(rng, p.entities, count)
	if err != nil {
		return nil, fmt.Errorf("population %s: %s selection: %w", p.name, selector.Name(), err)
	}
	return genotype.CloneAll(picked), nil
}

// SetRepresentatives publishes the first count entities (all of them when
// count <= 0) as the snapshot the paired population evaluates against. The
// first call releases anyone blocked in WaitRepresentatives.
func (p *Population) SetRepresentatives(entities []*genotype.PopEntity, count int) {
	if count <= 0 || count > len(entities) {
		count = len(entities)
	}
	snapshot := genotype.CloneAll(entities[:count])

	p.repMu.Lock()
	p.representatives = snapshot
	p.repMu.Unlock()

	p.readyOnce.Do(func() { close(p.ready) })
}

// Representatives returns deep copies of the current snapshot.
func (p *Population) Representatives() []*genotype.PopEntity {
	p.repMu.RLock()
	defer p.repMu.RUnlock()
	return genotype.CloneAll(p.representatives)
}

func (p *Population) WaitRepresentatives(ctx context.Context) error {
	select {
	case <-p.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Population) Fitnesses() []float64 {
	out := make([]float64, len(p.entities))
	for i, e := range p.entities {
		out[i] = e.Fitness
	}
	return out
}

// Best returns a copy of the fittest entity; ties keep the earliest one.
func (p *Population) Best() *genotype.PopEntity {
	best := p.entities[0]
	for _, e := range p.entities[1:] {
		if e.Fitness > best.Fitness {
			best = e
		}
	}
	return best.Clone()
}
