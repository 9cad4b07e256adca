package coevo

import (
	"sync"
	"sync/atomic"

	"coevofuzzy/internal/fuzzy"
	"coevofuzzy/internal/genotype"
	"coevofuzzy/internal/model"
)

// Observer receives notifications from both evolving populations. Methods
// are called from the populations' goroutines and must be safe for
// concurrent use.
type Observer interface {
	GenerationEvaluated(stats model.GenerationStats)
	ThresholdReached(population string, generation int, fitness float64)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped.
type ObserverFuncs struct {
	OnGeneration func(model.GenerationStats)
	OnThreshold  func(population string, generation int, fitness float64)
}

func (o ObserverFuncs) GenerationEvaluated(stats model.GenerationStats) {
	if o.OnGeneration != nil {
		o.OnGeneration(stats)
	}
}

func (o ObserverFuncs) ThresholdReached(population string, generation int, fitness float64) {
	if o.OnThreshold != nil {
		o.OnThreshold(population, generation, fitness)
	}
}

// Best is the best genome pairing found so far across both populations.
type Best struct {
	Found       bool
	Fitness     float64
	Population  string
	Generation  int
	Membership  *genotype.Genotype
	Rules       *genotype.Genotype
	Metrics     fuzzy.Metrics
	Description model.SystemDescription
}

func (b Best) clone() Best {
	b.Membership = b.Membership.Copy()
	b.Rules = b.Rules.Copy()
	return b
}

// RunContext is the state shared by the two coevolving tasks of one run:
// the cooperative stop flag and the best-result slot.
type RunContext struct {
	stop     atomic.Bool
	observer Observer

	mu   sync.Mutex
	best Best
}

func NewRunContext(observer Observer) *RunContext {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	return &RunContext{observer: observer}
}

func (rc *RunContext) RequestStop()           { rc.stop.Store(true) }
func (rc *RunContext) Stopped() bool          { return rc.stop.Load() }
func (rc *RunContext) StopFlag() *atomic.Bool { return &rc.stop }

// Improves reports whether fitness would replace the stored best.
func (rc *RunContext) Improves(fitness float64) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return !rc.best.Found || fitness >= rc.best.Fitness
}

// Offer stores candidate when its fitness is at least the stored one. Among
// equal fitness values found concurrently the last writer wins. Describe is
// only called when the candidate is kept.
func (rc *RunContext) Offer(candidate Best, describe func() model.SystemDescription) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.best.Found && candidate.Fitness < rc.best.Fitness {
		return false
	}
	candidate.Found = true
	candidate = candidate.clone()
	if describe != nil {
		candidate.Description = describe()
	}
	rc.best = candidate
	return true
}

// Best returns a copy of the best result so far.
func (rc *RunContext) Best() Best {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.best.clone()
}
