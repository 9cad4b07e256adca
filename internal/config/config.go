// Package config loads run configuration from INI files.
package config

import (
	"fmt"
	"strings"

	"coevofuzzy/internal/evo"
	"coevofuzzy/internal/fuzzy"

	"gopkg.in/ini.v1"
)

// Config is built once per run and passed down to every component.
type Config struct {
	Run        RunConfig
	Membership PopulationConfig
	Rules      PopulationConfig
	System     SystemConfig
	Fitness    fuzzy.Weights
	Dataset    DatasetConfig
}

type RunConfig struct {
	Coevolution      bool    `ini:"coevolution"`
	Seed             int64   `ini:"seed"`
	FitnessThreshold float64 `ini:"fitness_threshold"`
}

// PopulationConfig holds the evolution parameters of one population.
type PopulationConfig struct {
	Size                   int     `ini:"size"`
	Generations            int     `ini:"generations"`
	EliteCount             int     `ini:"elite_count"`
	Cooperators            int     `ini:"cooperators"`
	CrossoverProbability   float64 `ini:"crossover_probability"`
	MutationProbability    float64 `ini:"mutation_probability"`
	BitMutationProbability float64 `ini:"bit_mutation_probability"`
	Selection              string  `ini:"selection"`
	CooperatorSelection    string  `ini:"cooperator_selection"`
}

type SystemConfig struct {
	Params             fuzzy.Params `ini:"-"`
	OutVars            int          `ini:"out_vars"`
	ThresholdActivated bool         `ini:"threshold_activated"`
	Thresholds         []float64    `ini:"thresholds" delim:","`
}

type DatasetConfig struct {
	Path      string `ini:"path"`
	Name      string `ini:"name"`
	IDColumn  bool   `ini:"id_column"`
	Delimiter string `ini:"delimiter"`
}

// Default returns the configuration used for keys absent from a file.
func Default() Config {
	pop := PopulationConfig{
		Size:                   50,
		Generations:            100,
		EliteCount:             2,
		Cooperators:            2,
		CrossoverProbability:   0.7,
		MutationProbability:    0.1,
		BitMutationProbability: 0.01,
		Selection:              "rank",
		CooperatorSelection:    "elitism",
	}
	return Config{
		Run: RunConfig{
			Coevolution: true,
			Seed:        1,
		},
		Membership: pop,
		Rules:      pop,
		System: SystemConfig{
			Params: fuzzy.Params{
				Rules:              10,
				VarsPerRule:        3,
				InSets:             3,
				OutSets:            2,
				InVarsCodeSize:     4,
				InSetsCodeSize:     2,
				OutVarsCodeSize:    1,
				OutSetsCodeSize:    1,
				InSetsPosCodeSize:  6,
				OutSetsPosCodeSize: 6,
			},
			OutVars:            1,
			ThresholdActivated: true,
			Thresholds:         []float64{0.5},
		},
		Fitness: fuzzy.Weights{
			Sensitivity: 1,
			Specificity: 1,
			RMSE:        1,
		},
		Dataset: DatasetConfig{Delimiter: ","},
	}
}

// Load reads an INI file over the defaults.
func Load(path string) (Config, error) {
	cfg, err := load(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads INI text over the defaults.
func Parse(data []byte) (Config, error) {
	cfg, err := load(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func load(source any) (Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, source)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	sections := []struct {
		name   string
		target any
	}{
		{"run", &cfg.Run},
		{"membership", &cfg.Membership},
		{"rules", &cfg.Rules},
		{"system", &cfg.System.Params},
		{"system", &cfg.System},
		{"fitness", &cfg.Fitness},
		{"dataset", &cfg.Dataset},
	}
	for _, s := range sections {
		if !file.HasSection(s.name) {
			continue
		}
		if err := file.Section(s.name).MapTo(s.target); err != nil {
			return Config{}, fmt.Errorf("map [%s] section: %w", s.name, err)
		}
	}

	cfg.Membership.Selection = clean(cfg.Membership.Selection)
	cfg.Membership.CooperatorSelection = clean(cfg.Membership.CooperatorSelection)
	cfg.Rules.Selection = clean(cfg.Rules.Selection)
	cfg.Rules.CooperatorSelection = clean(cfg.Rules.CooperatorSelection)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func clean(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`))
}

func (c Config) Validate() error {
	if err := c.Membership.validate("membership"); err != nil {
		return err
	}
	if err := c.Rules.validate("rules"); err != nil {
		return err
	}
	if err := c.System.Params.Validate(); err != nil {
		return fmt.Errorf("[system]: %w", err)
	}
	if c.System.OutVars <= 0 {
		return fmt.Errorf("[system] out_vars must be positive")
	}
	if c.Run.FitnessThreshold < 0 {
		return fmt.Errorf("[run] fitness_threshold must be >= 0")
	}
	if c.Dataset.Delimiter != "" && len([]rune(c.Dataset.Delimiter)) != 1 {
		return fmt.Errorf("[dataset] delimiter must be a single character")
	}
	w := c.Fitness
	for _, v := range []float64{w.Sensitivity, w.Specificity, w.Accuracy, w.PPV, w.RMSE, w.RRSE, w.RAE, w.MSE, w.ADM, w.MDM, w.Size, w.Overlearn} {
		if v < 0 {
			return fmt.Errorf("[fitness] weights must be >= 0")
		}
	}
	return nil
}

func (p PopulationConfig) validate(section string) error {
	switch {
	case p.Size <= 0:
		return fmt.Errorf("[%s] size must be positive", section)
	case p.Generations < 0:
		return fmt.Errorf("[%s] generations must be >= 0", section)
	case p.EliteCount < 0 || p.EliteCount > p.Size:
		return fmt.Errorf("[%s] elite_count must be in [0, size]", section)
	case p.Cooperators <= 0 || p.Cooperators > p.Size:
		return fmt.Errorf("[%s] cooperators must be in [1, size]", section)
	case !probability(p.CrossoverProbability) || !probability(p.MutationProbability) || !probability(p.BitMutationProbability):
		return fmt.Errorf("[%s] probabilities must be in [0, 1]", section)
	}
	for _, name := range []string{p.Selection, p.CooperatorSelection} {
		if _, err := evo.SelectorFromName(name); err != nil {
			return fmt.Errorf("[%s]: %w", section, err)
		}
	}
	return nil
}

func probability(p float64) bool {
	return p >= 0 && p <= 1
}

// FuzzyConfig is the fuzzy system configuration shared by both populations.
func (c Config) FuzzyConfig() fuzzy.Config {
	return fuzzy.Config{
		Params:             c.System.Params,
		Weights:            c.Fitness,
		OutVars:            c.System.OutVars,
		ThresholdActivated: c.System.ThresholdActivated,
		Thresholds:         append([]float64(nil), c.System.Thresholds...),
	}
}
