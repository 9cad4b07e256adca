package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"coevofuzzy/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	stats       map[string][]model.GenerationStats
	systems     map[string]model.SystemDescription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.stats = make(map[string][]model.GenerationStats)
	s.systems = make(map[string]model.SystemDescription)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns every run ordered by creation time, then ID.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveGenerationStats(_ context.Context, runID string, stats []model.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.GenerationStats, len(stats))
	copy(copied, stats)
	s.stats[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationStats(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationStats, len(stats))
	copy(copied, stats)
	return copied, true, nil
}

func (s *MemoryStore) SaveBestSystem(_ context.Context, runID string, system model.SystemDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.systems[runID] = cloneSystem(system)
	return nil
}

func (s *MemoryStore) GetBestSystem(_ context.Context, runID string) (model.SystemDescription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	system, ok := s.systems[runID]
	if !ok {
		return model.SystemDescription{}, false, nil
	}
	return cloneSystem(system), true, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.stats, id)
	delete(s.systems, id)
	return nil
}

func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}

func cloneSystem(in model.SystemDescription) model.SystemDescription {
	out := in
	out.Weights = cloneMap(in.Weights)
	out.Metrics = cloneMap(in.Metrics)
	out.Variables = make([]model.VariableDescription, len(in.Variables))
	for i, v := range in.Variables {
		v.Sets = append([]model.SetPosition(nil), v.Sets...)
		out.Variables[i] = v
	}
	out.Rules = make([]model.RuleDescription, len(in.Rules))
	for i, r := range in.Rules {
		out.Rules[i] = model.RuleDescription{
			Antecedents: append([]model.Clause(nil), r.Antecedents...),
			Consequents: append([]model.Clause(nil), r.Consequents...),
		}
	}
	out.Defaults = append([]model.Clause(nil), in.Defaults...)
	out.DefaultIndices = append([]int(nil), in.DefaultIndices...)
	return out
}

func cloneMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
