package coevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"coevofuzzy/internal/evo"
	"coevofuzzy/internal/fuzzy"
	"coevofuzzy/internal/genotype"
	"coevofuzzy/internal/model"
)

// Role tells which half of a fuzzy system a population encodes.
type Role int

const (
	MembershipRole Role = iota
	RulesRole
)

func (r Role) String() string {
	switch r {
	case MembershipRole:
		return "membership"
	case RulesRole:
		return "rules"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

type Config struct {
	Role       Role
	Population *evo.Population
	// Partner is the other population. Its representatives are the
	// cooperators every individual is evaluated with.
	Partner *evo.Population
	System  *fuzzy.System
	Run     *RunContext
	// Coevolution false evaluates every individual alone, paired with nil.
	Coevolution      bool
	FitnessThreshold float64

	Generations     int
	EliteCount      int
	CooperatorCount int
	Selector        evo.Selector
	Cooperator      evo.Selector
	Crossover       evo.Crossover
	Mutation        evo.Mutation
	Seed            int64

	Logger *slog.Logger
}

// CoEvolution binds one population's evolution engine to a fuzzy system
// evaluator.
type CoEvolution struct {
	cfg    Config
	engine *evo.Engine
	log    *slog.Logger
}

func New(cfg Config) (*CoEvolution, error) {
	if cfg.Population == nil {
		return nil, fmt.Errorf("%s coevolution: population is required", cfg.Role)
	}
	if cfg.System == nil {
		return nil, fmt.Errorf("%s coevolution: fuzzy system is required", cfg.Role)
	}
	if cfg.Run == nil {
		return nil, fmt.Errorf("%s coevolution: run context is required", cfg.Role)
	}
	if cfg.Coevolution && cfg.Partner == nil {
		return nil, fmt.Errorf("%s coevolution: partner population is required", cfg.Role)
	}
	want := cfg.System.MembershipGenomeLength()
	if cfg.Role == RulesRole {
		want = cfg.System.RuleGenomeLength()
	}
	if cfg.Population.GenomeLength() != want {
		return nil, fmt.Errorf("%s coevolution: genome length %d, system expects %d: %w", cfg.Role, cfg.Population.GenomeLength(), want, fuzzy.ErrStructuralMismatch)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &CoEvolution{
		cfg: cfg,
		log: logger.With("component", "coevolution", "role", cfg.Role.String()),
	}
	cfg.System.SetInterrupt(cfg.Run.Stopped)

	var partner *evo.Population
	if cfg.Coevolution {
		partner = cfg.Partner
	}
	engine, err := evo.NewEngine(evo.EngineConfig{
		Population:      cfg.Population,
		Partner:         partner,
		Evaluator:       c,
		Selector:        cfg.Selector,
		Cooperator:      cfg.Cooperator,
		Crossover:       cfg.Crossover,
		Mutation:        cfg.Mutation,
		Generations:     cfg.Generations,
		EliteCount:      cfg.EliteCount,
		CooperatorCount: cfg.CooperatorCount,
		Seed:            cfg.Seed,
		Stop:            cfg.Run.StopFlag(),
		OnGeneration:    cfg.Run.observer.GenerationEvaluated,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%s coevolution: %w", cfg.Role, err)
	}
	c.engine = engine
	return c, nil
}

// Randomize seeds the population with random genomes from the engine's
// random source.
func (c *CoEvolution) Randomize() {
	c.cfg.Population.Randomize(c.engine.Rand())
}

func (c *CoEvolution) Run(ctx context.Context) (evo.EngineResult, error) {
	return c.engine.Run(ctx)
}

// Evaluate scores every individual against each cooperator of the partner
// population and keeps its best cooperative fitness.
func (c *CoEvolution) Evaluate(ctx context.Context, pop *evo.Population, generation int) (bool, error) {
	partners := []*genotype.PopEntity{nil}
	if c.cfg.Coevolution {
		if reps := c.cfg.Partner.Representatives(); len(reps) > 0 {
			partners = reps
		}
	}

	genBest := math.Inf(-1)
	for _, e := range pop.Entities() {
		if c.cfg.Run.Stopped() {
			return false, nil
		}
		fitness, err := c.evaluateEntity(ctx, e, partners, generation)
		if errors.Is(err, fuzzy.ErrInterrupted) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		e.Fitness = fitness
		genBest = math.Max(genBest, fitness)
	}

	if c.cfg.FitnessThreshold > 0 && genBest >= c.cfg.FitnessThreshold {
		c.log.Info("fitness threshold reached", "generation", generation, "fitness", genBest, "threshold", c.cfg.FitnessThreshold)
		c.cfg.Run.RequestStop()
		c.cfg.Run.observer.ThresholdReached(pop.Name(), generation, genBest)
		return false, nil
	}
	return true, nil
}

func (c *CoEvolution) evaluateEntity(ctx context.Context, e *genotype.PopEntity, partners []*genotype.PopEntity, generation int) (float64, error) {
	best := math.Inf(-1)
	for _, p := range partners {
		mf, rules := c.pair(e, p)
		res, err := c.cfg.System.Evaluate(ctx, mf, rules)
		if err != nil {
			return 0, err
		}
		if res.Fitness > best {
			best = res.Fitness
		}
		if c.cfg.Run.Improves(res.Fitness) {
			c.cfg.Run.Offer(Best{
				Fitness:    res.Fitness,
				Population: c.cfg.Population.Name(),
				Generation: generation,
				Membership: mf,
				Rules:      rules,
				Metrics:    res.Metrics,
			}, func() model.SystemDescription {
				desc := c.cfg.System.Describe()
				desc.Fitness = res.Fitness
				desc.Metrics = fuzzy.MetricsMap(res.Metrics)
				desc.MembershipGenome = genomeString(mf)
				desc.RuleGenome = genomeString(rules)
				return desc
			})
		}
	}
	return best, nil
}

func (c *CoEvolution) pair(e, partner *genotype.PopEntity) (*genotype.Genotype, *genotype.Genotype) {
	var other *genotype.Genotype
	if partner != nil {
		other = partner.Genotype
	}
	if c.cfg.Role == MembershipRole {
		return e.Genotype, other
	}
	return other, e.Genotype
}

func genomeString(g *genotype.Genotype) string {
	if g == nil {
		return ""
	}
	return g.String()
}
