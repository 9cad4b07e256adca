package coevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"coevofuzzy/internal/evo"
	"coevofuzzy/internal/fuzzy"

	"golang.org/x/sync/errgroup"
)

// PopulationSettings configures one of the two evolving populations.
type PopulationSettings struct {
	Name                   string
	Size                   int
	Generations            int
	EliteCount             int
	Cooperators            int
	CrossoverProbability   float64
	MutationProbability    float64
	BitMutationProbability float64
	Selection              string
	CooperatorSelection    string
}

type RunConfig struct {
	Data        fuzzy.Data
	System      fuzzy.Config
	Membership  PopulationSettings
	Rules       PopulationSettings
	Coevolution bool
	// FitnessThreshold stops both populations once either reaches it; 0
	// disables early stopping.
	FitnessThreshold float64
	Seed             int64
	Observer         Observer
	Logger           *slog.Logger
}

type RunResult struct {
	Best       Best
	Membership evo.EngineResult
	Rules      evo.EngineResult
	Stopped    bool
}

// Run evolves both populations concurrently and waits for both to finish.
// A failure in one population does not cancel the other; both failures are
// reported.
func Run(ctx context.Context, cfg RunConfig) (RunResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Data == nil {
		return RunResult{}, fmt.Errorf("dataset is required")
	}

	mfSystem, err := newSystem(cfg)
	if err != nil {
		return RunResult{}, err
	}
	ruleSystem, err := newSystem(cfg)
	if err != nil {
		return RunResult{}, err
	}

	mfPop, err := evo.NewPopulation(nameOr(cfg.Membership.Name, "membership"), cfg.Membership.Size, mfSystem.MembershipGenomeLength())
	if err != nil {
		return RunResult{}, err
	}
	rulePop, err := evo.NewPopulation(nameOr(cfg.Rules.Name, "rules"), cfg.Rules.Size, ruleSystem.RuleGenomeLength())
	if err != nil {
		return RunResult{}, err
	}

	rc := NewRunContext(cfg.Observer)
	mf, err := newCoEvolution(cfg, MembershipRole, mfPop, rulePop, mfSystem, rc, cfg.Membership, cfg.Seed, logger)
	if err != nil {
		return RunResult{}, err
	}
	rules, err := newCoEvolution(cfg, RulesRole, rulePop, mfPop, ruleSystem, rc, cfg.Rules, cfg.Seed+1, logger)
	if err != nil {
		return RunResult{}, err
	}
	mf.Randomize()
	rules.Randomize()

	logger.Info("coevolution started",
		"dataset", cfg.Data.Name(),
		"coevolution", cfg.Coevolution,
		"membership_genome_bits", mfPop.GenomeLength(),
		"rule_genome_bits", rulePop.GenomeLength(),
	)

	var (
		result          RunResult
		mfErr, rulesErr error
		g               errgroup.Group
	)
	g.Go(func() error {
		result.Membership, mfErr = mf.Run(ctx)
		return mfErr
	})
	g.Go(func() error {
		result.Rules, rulesErr = rules.Run(ctx)
		return rulesErr
	})
	_ = g.Wait()
	err = errors.Join(mfErr, rulesErr)

	result.Best = rc.Best()
	result.Stopped = rc.Stopped()
	if err != nil {
		return result, err
	}
	logger.Info("coevolution finished", "best_fitness", result.Best.Fitness, "stopped", result.Stopped)
	return result, nil
}

func newSystem(cfg RunConfig) (*fuzzy.System, error) {
	sys, err := fuzzy.NewSystem(cfg.System)
	if err != nil {
		return nil, err
	}
	if err := sys.LoadData(cfg.Data); err != nil {
		return nil, err
	}
	return sys, nil
}

func newCoEvolution(cfg RunConfig, role Role, own, partner *evo.Population, sys *fuzzy.System, rc *RunContext, ps PopulationSettings, seed int64, logger *slog.Logger) (*CoEvolution, error) {
	selector, err := evo.SelectorFromName(ps.Selection)
	if err != nil {
		return nil, fmt.Errorf("%s population: %w", role, err)
	}
	cooperatorName := ps.CooperatorSelection
	if cooperatorName == "" {
		cooperatorName = "elitism"
	}
	cooperator, err := evo.SelectorFromName(cooperatorName)
	if err != nil {
		return nil, fmt.Errorf("%s population: %w", role, err)
	}
	return New(Config{
		Role:             role,
		Population:       own,
		Partner:          partner,
		System:           sys,
		Run:              rc,
		Coevolution:      cfg.Coevolution,
		FitnessThreshold: cfg.FitnessThreshold,
		Generations:      ps.Generations,
		EliteCount:       ps.EliteCount,
		CooperatorCount:  ps.Cooperators,
		Selector:         selector,
		Cooperator:       cooperator,
		Crossover:        evo.OnePointCrossover{Probability: ps.CrossoverProbability},
		Mutation: evo.BitToggleMutation{
			IndividualProbability: ps.MutationProbability,
			BitProbability:        ps.BitMutationProbability,
		},
		Seed:   seed,
		Logger: logger,
	})
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
