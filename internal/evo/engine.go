package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"

	"coevofuzzy/internal/genotype"
	"coevofuzzy/internal/stats"
)

// Evaluator assigns fitness to every entity of a population. Returning false
// asks the engine to stop after this generation.
type Evaluator interface {
	Evaluate(ctx context.Context, pop *Population, generation int) (bool, error)
}

type EvaluatorFunc func(ctx context.Context, pop *Population, generation int) (bool, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, pop *Population, generation int) (bool, error) {
	return f(ctx, pop, generation)
}

type EngineConfig struct {
	Population *Population
	// Partner is the population whose representatives must be published
	// before generation 0 is evaluated. Nil disables the startup barrier.
	Partner    *Population
	Evaluator  Evaluator
	Selector   Selector
	Cooperator Selector
	Crossover  Crossover
	Mutation   Mutation

	Generations     int
	EliteCount      int
	CooperatorCount int
	Seed            int64

	Stop         *atomic.Bool
	OnGeneration func(stats.Generation)
	Logger       *slog.Logger
}

type EngineResult struct {
	Generations int
	Stopped     bool
	History     []stats.Generation
	Best        *genotype.PopEntity
}

// Engine runs the generational loop of one population:
//
//	publish representatives, wait for partner, evaluate generation 0, then
//	per generation: elites, publish, breeders, crossover, mutate, replace,
//	evaluate.
type Engine struct {
	cfg EngineConfig
	rng *rand.Rand
	log *slog.Logger
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Population == nil {
		return nil, fmt.Errorf("population is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0")
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.Population.Size() {
		return nil, fmt.Errorf("elite count must be in [0, population size]")
	}
	if cfg.CooperatorCount <= 0 || cfg.CooperatorCount > cfg.Population.Size() {
		return nil, fmt.Errorf("cooperator count must be in [1, population size]")
	}
	if cfg.Selector == nil {
		cfg.Selector = RankSelector{}
	}
	if cfg.Cooperator == nil {
		cfg.Cooperator = ElitismSelector{}
	}
	if cfg.Crossover == nil {
		cfg.Crossover = OnePointCrossover{}
	}
	if cfg.Mutation == nil {
		cfg.Mutation = BitToggleMutation{}
	}
	if cfg.Stop == nil {
		cfg.Stop = &atomic.Bool{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		log: logger.With("component", "evolution", "population", cfg.Population.Name()),
	}, nil
}

func (e *Engine) Rand() *rand.Rand {
	return e.rng
}

func (e *Engine) Run(ctx context.Context) (EngineResult, error) {
	pop := e.cfg.Population
	result := EngineResult{History: make([]stats.Generation, 0, e.cfg.Generations+1)}

	if err := e.publish(); err != nil {
		return result, err
	}
	if e.cfg.Partner != nil {
		e.log.Debug("waiting for partner representatives", "partner", e.cfg.Partner.Name())
		if err := e.cfg.Partner.WaitRepresentatives(ctx); err != nil {
			return result, fmt.Errorf("population %s: wait for %s representatives: %w", pop.Name(), e.cfg.Partner.Name(), err)
		}
	}

	proceed, err := e.evaluate(ctx, 0, &result)
	if err != nil {
		return result, err
	}

	for gen := 1; proceed && gen <= e.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.breed(); err != nil {
			return result, err
		}
		proceed, err = e.evaluate(ctx, gen, &result)
		if err != nil {
			return result, err
		}
	}

	result.Stopped = e.cfg.Stop.Load()
	result.Best = pop.Best()
	e.log.Info("evolution finished", "generations", result.Generations, "stopped", result.Stopped, "best_fitness", result.Best.Fitness)
	return result, nil
}

func (e *Engine) publish() error {
	pop := e.cfg.Population
	reps, err := pop.SelectSome(e.rng, e.cfg.Cooperator, e.cfg.CooperatorCount)
	if err != nil {
		return err
	}
	pop.SetRepresentatives(reps, len(reps))
	return nil
}

func (e *Engine) breed() error {
	pop := e.cfg.Population
	elites, err := pop.SelectSome(e.rng, ElitismSelector{}, e.cfg.EliteCount)
	if err != nil {
		return err
	}
	if err := e.publish(); err != nil {
		return err
	}

	need := pop.Size() - len(elites)
	breeders, err := pop.SelectSome(e.rng, e.cfg.Selector, need)
	if err != nil {
		return err
	}
	if len(breeders) > need {
		breeders = breeders[:need]
	}
	if err := e.cfg.Crossover.Cross(e.rng, breeders); err != nil {
		return fmt.Errorf("population %s: %s: %w", pop.Name(), e.cfg.Crossover.Name(), err)
	}
	if err := e.cfg.Mutation.Mutate(e.rng, breeders); err != nil {
		return fmt.Errorf("population %s: %s: %w", pop.Name(), e.cfg.Mutation.Name(), err)
	}
	return pop.ReplaceWith(elites, breeders)
}

func (e *Engine) evaluate(ctx context.Context, gen int, result *EngineResult) (bool, error) {
	pop := e.cfg.Population
	proceed, err := e.cfg.Evaluator.Evaluate(ctx, pop, gen)
	if err != nil {
		return false, fmt.Errorf("population %s: evaluate generation %d: %w", pop.Name(), gen, err)
	}

	summary := stats.Summarize(pop.Name(), gen, pop.Fitnesses())
	result.History = append(result.History, summary)
	result.Generations = gen
	e.log.Info("generation evaluated",
		"generation", gen,
		"min", summary.Min,
		"max", summary.Max,
		"mean", summary.Mean,
		"std", summary.Std,
	)
	if e.cfg.OnGeneration != nil {
		e.cfg.OnGeneration(summary)
	}

	if e.cfg.Stop.Load() {
		e.log.Info("stop requested", "generation", gen)
		return false, nil
	}
	return proceed, nil
}
