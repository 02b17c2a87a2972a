package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"bemekit/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	experiments map[string]model.ExperimentSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.experiments = make(map[string]model.ExperimentSummary)
	return nil
}

var errNotInitialized = errors.New("store is not initialized")

func (s *MemoryStore) SaveExperiment(_ context.Context, summary model.ExperimentSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if summary.Name == "" {
		return errors.New("experiment name is required")
	}
	s.experiments[summary.Name] = cloneSummary(summary)
	return nil
}

func (s *MemoryStore) GetExperiment(_ context.Context, name string) (model.ExperimentSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.ExperimentSummary{}, false, errNotInitialized
	}
	summary, ok := s.experiments[name]
	if !ok {
		return model.ExperimentSummary{}, false, nil
	}
	return cloneSummary(summary), true, nil
}

func (s *MemoryStore) ListExperiments(_ context.Context) ([]model.ExperimentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	out := make([]model.ExperimentSummary, 0, len(s.experiments))
	for _, summary := range s.experiments {
		out = append(out, cloneSummary(summary))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeleteExperiment(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	delete(s.experiments, name)
	return nil
}
