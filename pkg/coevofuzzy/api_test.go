package coevofuzzy

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coevofuzzy/internal/config"
	"coevofuzzy/internal/dataset"
	"coevofuzzy/internal/model"
)

func stepDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	rows := make([][]float64, 0, 16)
	for i := 0; i < 16; i++ {
		x := float64(i) / 15
		y := 0.0
		if x >= 0.5 {
			y = 1
		}
		rows = append(rows, []float64{x, y})
	}
	d, err := dataset.New("step", []string{"x", "y"}, rows)
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	return d
}

func smallConfig() config.Config {
	cfg := config.Default()
	cfg.Run.Seed = 11
	for _, p := range []*config.PopulationConfig{&cfg.Membership, &cfg.Rules} {
		p.Size = 8
		p.Generations = 3
		p.EliteCount = 1
		p.Cooperators = 2
	}
	cfg.System.Params.Rules = 2
	cfg.System.Params.VarsPerRule = 1
	cfg.System.Params.InSets = 2
	cfg.System.Params.InVarsCodeSize = 0
	cfg.System.Params.InSetsCodeSize = 1
	cfg.System.Params.OutVarsCodeSize = 0
	cfg.System.Params.InSetsPosCodeSize = 3
	cfg.System.Params.OutSetsPosCodeSize = 3
	return cfg
}

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()

	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func TestClientRunPersistsResults(t *testing.T) {
	ctx := context.Background()
	client, base := newTestClient(t)

	var seen int
	summary, err := client.Run(ctx, RunRequest{
		Config:       smallConfig(),
		Data:         stepDataset(t),
		OnGeneration: func(model.GenerationStats) { seen++ },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.Dataset != "step" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.BestFound || summary.BestFitness <= 0 {
		t.Fatalf("expected a best system, got %+v", summary)
	}
	if summary.Generations["membership"] != 3 || summary.Generations["rules"] != 3 {
		t.Fatalf("unexpected generation counts: %+v", summary.Generations)
	}
	if len(summary.History) != 8 || seen != 8 {
		t.Fatalf("expected 8 generation records, got history=%d seen=%d", len(summary.History), seen)
	}
	for i := 1; i < len(summary.History); i++ {
		if summary.History[i].Generation < summary.History[i-1].Generation {
			t.Fatalf("history not ordered by generation: %+v", summary.History)
		}
	}
	if summary.Best.RunID != summary.RunID || summary.Best.SchemaVersion == 0 {
		t.Fatalf("best system not stamped: %+v", summary.Best)
	}
	if !strings.HasPrefix(summary.ArtifactsDir, filepath.Join(base, "runs")) {
		t.Fatalf("unexpected artifacts dir: %s", summary.ArtifactsDir)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "best_system.txt")); err != nil {
		t.Fatalf("expected rules text artifact: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID || runs[0].BestFitness != summary.BestFitness {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	history, err := client.Stats(ctx, StatsRequest{RunSelector: RunSelector{Latest: true}, Population: "rules"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 rules generations, got %d", len(history))
	}
	for _, s := range history {
		if s.Population != "rules" {
			t.Fatalf("unexpected population in filtered stats: %+v", s)
		}
	}

	best, err := client.Best(ctx, RunSelector{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if best.Fitness != summary.BestFitness || best.String() == "" {
		t.Fatalf("unexpected best system: %+v", best)
	}

	exported, err := client.Export(ctx, ExportRequest{RunSelector: RunSelector{Latest: true}})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}

func TestClientPredictReproducesBestFitness(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	cfg := smallConfig()
	data := stepDataset(t)

	summary, err := client.Run(ctx, RunRequest{Config: cfg, Data: data})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	pred, err := client.Predict(ctx, PredictRequest{
		RunSelector: RunSelector{Latest: true},
		Config:      cfg,
		Data:        data,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.RunID != summary.RunID || len(pred.Predictions) != data.Len() {
		t.Fatalf("unexpected prediction: %+v", pred)
	}
	if len(pred.Columns) != 1 || pred.Columns[0] != "y" {
		t.Fatalf("unexpected prediction columns: %v", pred.Columns)
	}
	if pred.Fitness != summary.BestFitness {
		t.Fatalf("re-evaluated fitness %.6f differs from stored %.6f", pred.Fitness, summary.BestFitness)
	}
}

func TestClientPredictKeepsTrainingRanges(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	data := stepDataset(t)

	if _, err := client.Run(ctx, RunRequest{Config: smallConfig(), Data: data}); err != nil {
		t.Fatalf("run: %v", err)
	}
	full, err := client.Predict(ctx, PredictRequest{
		RunSelector: RunSelector{Latest: true},
		Config:      smallConfig(),
		Data:        data,
	})
	if err != nil {
		t.Fatalf("predict full: %v", err)
	}

	rows := data.Rows()[4:12]
	subset, err := dataset.New("subset", data.Columns(), rows)
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	// Coding sizes come from the run's config artifact, not from the request.
	narrow, err := client.Predict(ctx, PredictRequest{
		RunSelector: RunSelector{Latest: true},
		Config:      config.Default(),
		Data:        subset,
	})
	if err != nil {
		t.Fatalf("predict subset: %v", err)
	}
	if len(narrow.Predictions) != len(rows) {
		t.Fatalf("expected %d predictions, got %d", len(rows), len(narrow.Predictions))
	}
	for i, p := range narrow.Predictions {
		if math.Abs(p[0]-full.Predictions[4+i][0]) > 1e-12 {
			t.Fatalf("row %d: subset prediction %f differs from training prediction %f", i, p[0], full.Predictions[4+i][0])
		}
	}
}

func TestClientLoadsDatasetFromConfig(t *testing.T) {
	client, base := newTestClient(t)
	path := filepath.Join(base, "step.csv")
	var b strings.Builder
	b.WriteString("x,y\n")
	for _, row := range stepDataset(t).Rows() {
		if row[1] == 1 {
			b.WriteString("0.9,1\n")
		} else {
			b.WriteString("0.1,0\n")
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	cfg := smallConfig()
	cfg.Dataset.Path = path
	summary, err := client.Run(context.Background(), RunRequest{Config: cfg})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Dataset != "step" {
		t.Fatalf("expected dataset named after file, got %s", summary.Dataset)
	}
}

func TestClientRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	bad := smallConfig()
	bad.Membership.Size = 0
	if _, err := client.Run(ctx, RunRequest{Config: bad, Data: stepDataset(t)}); err == nil {
		t.Fatal("expected config validation error")
	}
	if _, err := client.Run(ctx, RunRequest{Config: smallConfig()}); err == nil {
		t.Fatal("expected missing dataset error")
	}
	if _, err := client.Best(ctx, RunSelector{}); err == nil {
		t.Fatal("expected selector error")
	}
	if _, err := client.Best(ctx, RunSelector{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected selector conflict error")
	}
	if _, err := client.Stats(ctx, StatsRequest{RunSelector: RunSelector{Latest: true}}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Best(ctx, RunSelector{RunID: "missing"}); err == nil {
		t.Fatal("expected missing best system error")
	}
	if _, err := New(Options{StoreKind: "bogus"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestClientCompareAveragesRuns(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	var runIDs []string
	for _, seed := range []int64{3, 4} {
		cfg := smallConfig()
		cfg.Run.Seed = seed
		summary, err := client.Run(ctx, RunRequest{Config: cfg, Data: stepDataset(t)})
		if err != nil {
			t.Fatalf("run seed %d: %v", seed, err)
		}
		runIDs = append(runIDs, summary.RunID)
	}

	cmp, err := client.Compare(ctx, CompareRequest{RunIDs: runIDs})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(cmp.Curve) != 4 {
		t.Fatalf("expected 4 curve points, got %d", len(cmp.Curve))
	}
	for _, p := range cmp.Curve {
		if p.Runs != 2 {
			t.Fatalf("expected both runs at every generation: %+v", p)
		}
		if p.Max < p.Mean {
			t.Fatalf("max below mean: %+v", p)
		}
	}
	if cmp.FinalMean <= 0 {
		t.Fatalf("expected positive final mean, got %f", cmp.FinalMean)
	}

	rules, err := client.Compare(ctx, CompareRequest{RunIDs: runIDs, Population: "rules"})
	if err != nil {
		t.Fatalf("compare rules: %v", err)
	}
	for i := range rules.Curve {
		if rules.Curve[i].Mean > cmp.Curve[i].Mean+1e-12 {
			t.Fatalf("single population mean exceeds combined mean at generation %d", i)
		}
	}

	if _, err := client.Compare(ctx, CompareRequest{}); err == nil {
		t.Fatal("expected error without run ids")
	}
	if _, err := client.Compare(ctx, CompareRequest{RunIDs: []string{"missing"}}); err == nil {
		t.Fatal("expected error for unknown run")
	}
	if _, err := client.Compare(ctx, CompareRequest{RunIDs: runIDs, Population: "neurons"}); err == nil {
		t.Fatal("expected error for unknown population")
	}
}
