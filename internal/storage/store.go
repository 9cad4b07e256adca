package storage

import (
	"context"

	"coevofuzzy/internal/model"
)

// Store persists coevolution runs: the run record, per-generation statistics
// of both populations and the best fuzzy system found.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGenerationStats(ctx context.Context, runID string, stats []model.GenerationStats) error
	GetGenerationStats(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
	SaveBestSystem(ctx context.Context, runID string, system model.SystemDescription) error
	GetBestSystem(ctx context.Context, runID string) (model.SystemDescription, bool, error)
}
