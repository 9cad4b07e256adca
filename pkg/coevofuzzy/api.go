// Package coevofuzzy runs coevolutionary fuzzy system synthesis and keeps
// the results in a store and an artifacts directory.
package coevofuzzy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"coevofuzzy/internal/coevo"
	"coevofuzzy/internal/config"
	"coevofuzzy/internal/dataset"
	"coevofuzzy/internal/fuzzy"
	"coevofuzzy/internal/genotype"
	"coevofuzzy/internal/model"
	"coevofuzzy/internal/stats"
	"coevofuzzy/internal/storage"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "coevofuzzy.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store storage.Store
	log   *slog.Logger

	initMu      sync.Mutex
	initialized bool

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Config config.Config
	// Data overrides Config.Dataset when set.
	Data fuzzy.Data
	// OnGeneration is called once per population generation. Calls are
	// serialized.
	OnGeneration func(model.GenerationStats)
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Dataset      string
	BestFitness  float64
	BestFound    bool
	Stopped      bool
	Generations  map[string]int
	History      []model.GenerationStats
	Best         model.SystemDescription
}

type RunsRequest struct {
	Limit int
}

type RunSelector struct {
	RunID  string
	Latest bool
}

type StatsRequest struct {
	RunSelector
	Population string
	Limit      int
}

type ExportRequest struct {
	RunSelector
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// CompareRequest selects runs whose fitness series are averaged. An empty
// Population combines both populations by taking the per-generation max.
type CompareRequest struct {
	RunIDs     []string
	Population string
}

type CompareSummary struct {
	RunIDs     []string
	Population string
	Curve      []stats.CurvePoint
	FinalMean  float64
	FinalStd   float64
}

type PredictRequest struct {
	RunSelector
	Config config.Config
	Data   fuzzy.Data
}

type PredictSummary struct {
	RunID       string
	Columns     []string
	Predictions [][]float64
	Fitness     float64
	Metrics     fuzzy.Metrics
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the store. It is called by every operation and only runs
// once.
func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	data := req.Data
	if data == nil {
		loaded, err := loadDataset(cfg.Dataset)
		if err != nil {
			return RunSummary{}, err
		}
		data = loaded
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	log := c.log.With("run_id", runID)

	var (
		historyMu sync.Mutex
		history   []model.GenerationStats
	)
	observer := coevo.ObserverFuncs{
		OnGeneration: func(s model.GenerationStats) {
			historyMu.Lock()
			defer historyMu.Unlock()
			history = append(history, s)
			if req.OnGeneration != nil {
				req.OnGeneration(s)
			}
		},
		OnThreshold: func(population string, generation int, fitness float64) {
			log.Info("fitness threshold reached", "population", population, "generation", generation, "fitness", fitness)
		},
	}

	result, err := coevo.Run(ctx, coevo.RunConfig{
		Data:             data,
		System:           cfg.FuzzyConfig(),
		Membership:       populationSettings("membership", cfg.Membership),
		Rules:            populationSettings("rules", cfg.Rules),
		Coevolution:      cfg.Run.Coevolution,
		FitnessThreshold: cfg.Run.FitnessThreshold,
		Seed:             cfg.Run.Seed,
		Observer:         observer,
		Logger:           log,
	})
	if err != nil {
		return RunSummary{}, err
	}

	historyMu.Lock()
	sorted := append([]model.GenerationStats(nil), history...)
	historyMu.Unlock()
	sortHistory(sorted)

	record := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		Dataset:         data.Name(),
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		Seed:            cfg.Run.Seed,
		Coevolution:     cfg.Run.Coevolution,
		Generations:     max(result.Membership.Generations, result.Rules.Generations),
		BestFitness:     result.Best.Fitness,
		Stopped:         result.Stopped,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := c.store.SaveGenerationStats(ctx, runID, sorted); err != nil {
		return RunSummary{}, fmt.Errorf("save generation stats %s: %w", runID, err)
	}

	var best *model.SystemDescription
	if result.Best.Found {
		desc := result.Best.Description
		desc.VersionedRecord = storage.Versioned()
		desc.RunID = runID
		if err := c.store.SaveBestSystem(ctx, runID, desc); err != nil {
			return RunSummary{}, fmt.Errorf("save best system %s: %w", runID, err)
		}
		best = &desc
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:      runConfigSnapshot(runID, data.Name(), cfg),
		Generations: sorted,
		Best:        best,
	})
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Dataset:      data.Name(),
		BestFitness:  result.Best.Fitness,
		BestFound:    result.Best.Found,
		Stopped:      result.Stopped,
		Generations: map[string]int{
			"membership": result.Membership.Generations,
			"rules":      result.Rules.Generations,
		},
		History: sorted,
	}
	if best != nil {
		summary.Best = *best
	}
	return summary, nil
}

// Runs lists stored runs, most recent first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) Stats(ctx context.Context, req StatsRequest) ([]model.GenerationStats, error) {
	runID, err := c.resolveRunID(ctx, req.RunSelector)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetGenerationStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generation stats not found for run %s", runID)
	}
	if req.Population != "" {
		filtered := history[:0]
		for _, s := range history {
			if s.Population == req.Population {
				filtered = append(filtered, s)
			}
		}
		history = filtered
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) Best(ctx context.Context, req RunSelector) (model.SystemDescription, error) {
	runID, err := c.resolveRunID(ctx, req)
	if err != nil {
		return model.SystemDescription{}, err
	}
	system, ok, err := c.store.GetBestSystem(ctx, runID)
	if err != nil {
		return model.SystemDescription{}, err
	}
	if !ok {
		return model.SystemDescription{}, fmt.Errorf("best system not found for run %s", runID)
	}
	return system, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunSelector)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	dir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

// Compare reads the fitness series artifacts of several runs and builds the
// averaged best-fitness curve.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (CompareSummary, error) {
	if len(req.RunIDs) == 0 {
		return CompareSummary{}, errors.New("at least one run id is required")
	}
	all := make([][]float64, 0, len(req.RunIDs))
	for _, runID := range req.RunIDs {
		if err := ctx.Err(); err != nil {
			return CompareSummary{}, err
		}
		series, ok, err := stats.ReadFitnessSeries(c.artifactsDir, runID)
		if err != nil {
			return CompareSummary{}, err
		}
		if !ok {
			return CompareSummary{}, fmt.Errorf("fitness series not found for run %s", runID)
		}
		if req.Population != "" {
			s, ok := series[req.Population]
			if !ok {
				return CompareSummary{}, fmt.Errorf("run %s has no population %q", runID, req.Population)
			}
			all = append(all, s)
			continue
		}
		all = append(all, combineSeries(series))
	}

	out := CompareSummary{
		RunIDs:     append([]string(nil), req.RunIDs...),
		Population: req.Population,
		Curve:      stats.AverageCurve(all),
	}
	if final := stats.FinalBest(all); len(final) > 0 {
		out.FinalMean, out.FinalStd = stat.PopMeanStdDev(final, nil)
	}
	return out, nil
}

// combineSeries merges population series by generation, keeping the max.
func combineSeries(series map[string][]float64) []float64 {
	var out []float64
	for _, s := range series {
		for gen, v := range s {
			if gen >= len(out) {
				out = append(out, v)
				continue
			}
			out[gen] = max(out[gen], v)
		}
	}
	return out
}

// Predict re-evaluates the stored best genome pair of a run on a dataset.
// Coding sizes, thresholds and weights come from the run's config artifact
// when it exists, otherwise from req.Config. Variable ranges always come from
// the stored system, so the genomes decode to the trained set positions.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (PredictSummary, error) {
	best, err := c.Best(ctx, req.RunSelector)
	if err != nil {
		return PredictSummary{}, err
	}
	fuzzyCfg := req.Config.FuzzyConfig()
	datasetCfg := req.Config.Dataset
	snapshot, ok, err := stats.ReadRunConfig(c.artifactsDir, best.RunID)
	if err != nil {
		return PredictSummary{}, fmt.Errorf("run %s config: %w", best.RunID, err)
	}
	if ok {
		fuzzyCfg = snapshotFuzzyConfig(snapshot)
		if datasetCfg.Path == "" {
			datasetCfg.Path = snapshot.DatasetPath
		}
	}

	data := req.Data
	if data == nil {
		loaded, err := loadDataset(datasetCfg)
		if err != nil {
			return PredictSummary{}, err
		}
		data = loaded
	}

	sys, err := fuzzy.NewSystem(fuzzyCfg)
	if err != nil {
		return PredictSummary{}, err
	}
	if err := sys.LoadData(data); err != nil {
		return PredictSummary{}, err
	}
	if err := sys.SetRanges(best.Variables); err != nil {
		return PredictSummary{}, fmt.Errorf("run %s: %w", best.RunID, err)
	}
	membership, err := parseGenome(best.MembershipGenome)
	if err != nil {
		return PredictSummary{}, fmt.Errorf("run %s membership genome: %w", best.RunID, err)
	}
	rules, err := parseGenome(best.RuleGenome)
	if err != nil {
		return PredictSummary{}, fmt.Errorf("run %s rule genome: %w", best.RunID, err)
	}
	predictions, res, err := sys.Predict(ctx, membership, rules)
	if err != nil {
		return PredictSummary{}, err
	}

	var columns []string
	for _, v := range sys.OutputVariables() {
		columns = append(columns, v.Name)
	}
	return PredictSummary{
		RunID:       best.RunID,
		Columns:     columns,
		Predictions: predictions,
		Fitness:     res.Fitness,
		Metrics:     res.Metrics,
	}, nil
}

func (c *Client) resolveRunID(ctx context.Context, sel RunSelector) (string, error) {
	if sel.RunID != "" && sel.Latest {
		return "", errors.New("use either run id or latest")
	}
	if sel.RunID == "" && !sel.Latest {
		return "", errors.New("run id or latest is required")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if sel.RunID != "" {
		return sel.RunID, nil
	}
	runs, err := c.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func loadDataset(cfg config.DatasetConfig) (*dataset.Dataset, error) {
	var delimiter rune
	if cfg.Delimiter != "" {
		delimiter = []rune(cfg.Delimiter)[0]
	}
	return dataset.Load(cfg.Path, dataset.Options{
		Name:      cfg.Name,
		IDColumn:  cfg.IDColumn,
		Delimiter: delimiter,
	})
}

func parseGenome(s string) (*genotype.Genotype, error) {
	if s == "" {
		return nil, nil
	}
	return genotype.Parse(s)
}

func populationSettings(name string, p config.PopulationConfig) coevo.PopulationSettings {
	return coevo.PopulationSettings{
		Name:                   name,
		Size:                   p.Size,
		Generations:            p.Generations,
		EliteCount:             p.EliteCount,
		Cooperators:            p.Cooperators,
		CrossoverProbability:   p.CrossoverProbability,
		MutationProbability:    p.MutationProbability,
		BitMutationProbability: p.BitMutationProbability,
		Selection:              p.Selection,
		CooperatorSelection:    p.CooperatorSelection,
	}
}

func runConfigSnapshot(runID, datasetName string, cfg config.Config) stats.RunConfig {
	pop := func(p config.PopulationConfig) stats.PopulationConfig {
		return stats.PopulationConfig{
			Size:                   p.Size,
			Generations:            p.Generations,
			EliteCount:             p.EliteCount,
			Cooperators:            p.Cooperators,
			CrossoverProbability:   p.CrossoverProbability,
			MutationProbability:    p.MutationProbability,
			BitMutationProbability: p.BitMutationProbability,
			Selection:              p.Selection,
		}
	}
	params := cfg.System.Params
	return stats.RunConfig{
		RunID:            runID,
		Dataset:          datasetName,
		DatasetPath:      cfg.Dataset.Path,
		Coevolution:      cfg.Run.Coevolution,
		Seed:             cfg.Run.Seed,
		FitnessThreshold: cfg.Run.FitnessThreshold,
		Membership:       pop(cfg.Membership),
		Rules:            pop(cfg.Rules),
		CodingSizes: map[string]int{
			"rules":                  params.Rules,
			"vars_per_rule":          params.VarsPerRule,
			"in_sets":                params.InSets,
			"out_sets":               params.OutSets,
			"in_vars_code_size":      params.InVarsCodeSize,
			"in_sets_code_size":      params.InSetsCodeSize,
			"out_vars_code_size":     params.OutVarsCodeSize,
			"out_sets_code_size":     params.OutSetsCodeSize,
			"in_sets_pos_code_size":  params.InSetsPosCodeSize,
			"out_sets_pos_code_size": params.OutSetsPosCodeSize,
		},
		OutVars:            cfg.System.OutVars,
		ThresholdActivated: cfg.System.ThresholdActivated,
		Thresholds:         append([]float64(nil), cfg.System.Thresholds...),
		Weights:            fuzzy.WeightsMap(cfg.Fitness),
	}
}

// snapshotFuzzyConfig rebuilds the fuzzy system settings a run was started
// with from its config artifact.
func snapshotFuzzyConfig(snap stats.RunConfig) fuzzy.Config {
	sizes := snap.CodingSizes
	return fuzzy.Config{
		Params: fuzzy.Params{
			Rules:              sizes["rules"],
			VarsPerRule:        sizes["vars_per_rule"],
			InSets:             sizes["in_sets"],
			OutSets:            sizes["out_sets"],
			InVarsCodeSize:     sizes["in_vars_code_size"],
			InSetsCodeSize:     sizes["in_sets_code_size"],
			OutVarsCodeSize:    sizes["out_vars_code_size"],
			OutSetsCodeSize:    sizes["out_sets_code_size"],
			InSetsPosCodeSize:  sizes["in_sets_pos_code_size"],
			OutSetsPosCodeSize: sizes["out_sets_pos_code_size"],
		},
		Weights:            fuzzy.WeightsFromMap(snap.Weights),
		OutVars:            snap.OutVars,
		ThresholdActivated: snap.ThresholdActivated,
		Thresholds:         append([]float64(nil), snap.Thresholds...),
	}
}

// sortHistory orders statistics by generation, membership before rules.
func sortHistory(history []model.GenerationStats) {
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].Generation != history[j].Generation {
			return history[i].Generation < history[j].Generation
		}
		return history[i].Population < history[j].Population
	})
}
