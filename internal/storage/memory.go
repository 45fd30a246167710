package storage

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"dnnevo/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	networks    map[string]model.NetworkRecord
	runs        map[string]model.RunRecord
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.networks = make(map[string]model.NetworkRecord)
	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, network model.NetworkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	network.LayerSizes = append([]int(nil), network.LayerSizes...)
	network.Weights = append([]float64(nil), network.Weights...)
	s.networks[network.ID] = network
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, id string) (model.NetworkRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	network, ok := s.networks[id]
	if !ok {
		return model.NetworkRecord{}, false, nil
	}
	network.LayerSizes = append([]int(nil), network.LayerSizes...)
	network.Weights = append([]float64(nil), network.Weights...)
	return network, true, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	run.LayerSizes = append([]int(nil), run.LayerSizes...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.LayerSizes = append([]int(nil), run.LayerSizes...)
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	var runs []model.RunRecord
	for _, run := range s.runs {
		if filter.Dataset != "" && run.Dataset != filter.Dataset {
			continue
		}
		if filter.ConvergedOnly && !run.Converged {
			continue
		}
		run.LayerSizes = append([]int(nil), run.LayerSizes...)
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if filter.ByError {
			a, b := runs[i].BestError, runs[j].BestError
			if math.IsNaN(a) != math.IsNaN(b) {
				return !math.IsNaN(a)
			}
			if a != b && !math.IsNaN(a) {
				return a < b
			}
		}
		if !runs[i].FinishedAt.Equal(runs[j].FinishedAt) {
			return runs[i].FinishedAt.After(runs[j].FinishedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

func (s *MemoryStore) SaveErrorHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetErrorHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}
