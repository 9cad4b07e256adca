package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"coevofuzzy/internal/model"
)

const (
	configFile      = "config.json"
	generationsFile = "generation_stats.json"
	bestSystemFile  = "best_system.json"
	rulesFile       = "best_system.txt"
	seriesFile      = "fitness_series.csv"
)

// RunConfig is the snapshot of settings a run was started with.
type RunConfig struct {
	RunID              string             `json:"run_id"`
	Dataset            string             `json:"dataset"`
	DatasetPath        string             `json:"dataset_path,omitempty"`
	Coevolution        bool               `json:"coevolution"`
	Seed               int64              `json:"seed"`
	FitnessThreshold   float64            `json:"fitness_threshold"`
	Membership         PopulationConfig   `json:"membership"`
	Rules              PopulationConfig   `json:"rules"`
	CodingSizes        map[string]int     `json:"coding_sizes"`
	OutVars            int                `json:"out_vars"`
	ThresholdActivated bool               `json:"threshold_activated"`
	Thresholds         []float64          `json:"thresholds,omitempty"`
	Weights            map[string]float64 `json:"weights"`
}

type PopulationConfig struct {
	Size                   int     `json:"size"`
	Generations            int     `json:"generations"`
	EliteCount             int     `json:"elite_count"`
	Cooperators            int     `json:"cooperators"`
	CrossoverProbability   float64 `json:"crossover_probability"`
	MutationProbability    float64 `json:"mutation_probability"`
	BitMutationProbability float64 `json:"bit_mutation_probability"`
	Selection              string  `json:"selection"`
}

type RunArtifacts struct {
	Config      RunConfig                `json:"config"`
	Generations []model.GenerationStats  `json:"generations"`
	Best        *model.SystemDescription `json:"best,omitempty"`
}

// WriteRunArtifacts writes one directory per run under baseDir and returns
// its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.Config.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, generationsFile), artifacts.Generations); err != nil {
		return "", err
	}
	if err := writeFitnessSeries(filepath.Join(runDir, seriesFile), artifacts.Generations); err != nil {
		return "", err
	}
	if artifacts.Best != nil {
		if err := writeJSON(filepath.Join(runDir, bestSystemFile), artifacts.Best); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(runDir, rulesFile), []byte(artifacts.Best.String()), 0o644); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// ExportRunArtifacts copies a run directory written by WriteRunArtifacts to
// outDir. Files a run did not produce are skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, generationsFile, seriesFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{bestSystemFile, rulesFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadGenerationStats(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	var stats []model.GenerationStats
	ok, err := readJSON(filepath.Join(baseDir, runID, generationsFile), &stats)
	return stats, ok, err
}

// ReadFitnessSeries reads the per-population best fitness by generation from
// the CSV series.
func ReadFitnessSeries(baseDir, runID string) (map[string][]float64, bool, error) {
	path := filepath.Join(baseDir, runID, seriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return map[string][]float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 4 {
		return nil, false, fmt.Errorf("fitness series header must have at least 4 columns")
	}

	series := make(map[string][]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 4 {
			return nil, false, fmt.Errorf("fitness series row must have at least 4 columns")
		}
		value, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, false, err
		}
		series[record[0]] = append(series[record[0]], value)
	}
	return series, true, nil
}

func writeFitnessSeries(path string, generations []model.GenerationStats) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"population", "generation", "min_fitness", "max_fitness", "mean_fitness", "std_fitness"}); err != nil {
		return err
	}
	for _, g := range generations {
		if err := writer.Write([]string{
			g.Population,
			strconv.Itoa(g.Generation),
			strconv.FormatFloat(g.Min, 'f', -1, 64),
			strconv.FormatFloat(g.Max, 'f', -1, 64),
			strconv.FormatFloat(g.Mean, 'f', -1, 64),
			strconv.FormatFloat(g.Std, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
