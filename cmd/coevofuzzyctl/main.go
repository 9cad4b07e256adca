package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"coevofuzzy/internal/config"
	"coevofuzzy/internal/dataset"
	"coevofuzzy/internal/storage"
	api "coevofuzzy/pkg/coevofuzzy"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	defaultDB    = "coevofuzzy.db"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "stats":
		return runStats(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "predict":
		return runPredict(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "compare":
		return runCompare(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind      *string
	dbPath    *string
	artifacts *string
	logLevel  *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:      fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDB, "sqlite database path"),
		artifacts: fs.String("artifacts", artifactsDir, "run artifacts directory"),
		logLevel:  fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f storeFlags) client() (*api.Client, error) {
	logger, err := newLogger(*f.logLevel)
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		StoreKind:    *f.kind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifacts,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func loadConfig(path, dataPath string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if dataPath != "" {
		cfg.Dataset.Path = dataPath
	}
	if strings.TrimSpace(cfg.Dataset.Path) == "" {
		return config.Config{}, errors.New("dataset path is required: set [dataset] path or --data")
	}
	return cfg, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	configPath := fs.String("config", "", "INI configuration file")
	dataPath := fs.String("data", "", "CSV dataset, overrides [dataset] path")
	seed := fs.Int64("seed", 0, "random seed, overrides [run] seed when non-zero")
	quiet := fs.Bool("quiet", false, "skip the per-generation table")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *dataPath)
	if err != nil {
		return err
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, api.RunRequest{Config: cfg})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(stdout, map[string]any{
			"run_id":        summary.RunID,
			"dataset":       summary.Dataset,
			"artifacts_dir": summary.ArtifactsDir,
			"best_fitness":  summary.BestFitness,
			"stopped":       summary.Stopped,
			"generations":   summary.Generations,
			"best":          summary.Best,
		})
	}

	fmt.Fprintf(stdout, "run completed run_id=%s dataset=%s best_fitness=%.6f stopped=%t artifacts=%s\n",
		summary.RunID, summary.Dataset, summary.BestFitness, summary.Stopped, summary.ArtifactsDir)
	if !*quiet {
		writeStatsTable(stdout, "Generations", summary.History)
	}
	if summary.BestFound {
		writeSystemReport(stdout, summary.Best)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(stdout, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	writeRunsTable(stdout, runs)
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	population := fs.String("population", "", "filter by population: membership|rules")
	limit := fs.Int("limit", 0, "max records to show, 0 for all")
	jsonOut := fs.Bool("json", false, "emit statistics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.Stats(ctx, api.StatsRequest{
		RunSelector: api.RunSelector{RunID: *runID, Latest: *latest},
		Population:  *population,
		Limit:       *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(stdout, history)
	}
	writeStatsTable(stdout, "Generations", history)
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit the system description as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	best, err := client.Best(ctx, api.RunSelector{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(stdout, best)
	}
	writeSystemReport(stdout, best)
	return nil
}

func runPredict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	configPath := fs.String("config", "", "INI configuration file; coding sizes fall back to it when the run has no config artifact")
	dataPath := fs.String("data", "", "CSV dataset, overrides [dataset] path")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	outPath := fs.String("out", "", "write predictions as CSV to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *dataPath)
	if err != nil {
		return err
	}
	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	pred, err := client.Predict(ctx, api.PredictRequest{
		RunSelector: api.RunSelector{RunID: *runID, Latest: *latest},
		Config:      cfg,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "predicted run_id=%s samples=%d fitness=%.6f\n", pred.RunID, len(pred.Predictions), pred.Fitness)
	writeMetricsTable(stdout, pred.Metrics)
	if *outPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := dataset.WriteCSV(f, pred.Columns, pred.Predictions); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	fmt.Fprintf(stdout, "wrote predictions to=%s\n", filepath.Clean(*outPath))
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, api.ExportRequest{
		RunSelector: api.RunSelector{RunID: *runID, Latest: *latest},
		OutDir:      *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runCompare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runIDs := fs.String("run-ids", "", "comma-separated run ids")
	population := fs.String("population", "", "compare one population: membership|rules")
	jsonOut := fs.Bool("json", false, "emit the comparison as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var ids []string
	for _, id := range strings.Split(*runIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	cmp, err := client.Compare(ctx, api.CompareRequest{RunIDs: ids, Population: *population})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(stdout, cmp)
	}
	fmt.Fprintf(stdout, "compared runs=%d final_mean=%.6f final_std=%.6f\n", len(cmp.RunIDs), cmp.FinalMean, cmp.FinalStd)
	writeCurveTable(stdout, cmp.Curve)
	return nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: coevofuzzyctl <run|runs|stats|best|predict|export|compare> [flags]", msg)
}
