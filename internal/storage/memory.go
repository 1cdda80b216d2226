package storage

import (
	"context"
	"errors"
	"sync"

	"coinevo/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps encoded records so reads never alias stored values.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string][]byte
	generations map[string]map[int][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string][]byte)
	s.generations = make(map[string]map[int][]byte)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = payload
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.RunRecord{}, false, errNotInitialized
	}
	payload, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, errNotInitialized
	}
	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, payload := range s.runs {
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	sortRunsNewestFirst(runs)
	return runs, nil
}

func (s *MemoryStore) SaveGeneration(_ context.Context, gen model.GenerationRecord) error {
	payload, err := EncodeGeneration(gen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	byGen, ok := s.generations[gen.RunID]
	if !ok {
		byGen = make(map[int][]byte)
		s.generations[gen.RunID] = byGen
	}
	byGen[gen.Generation] = payload
	return nil
}

func (s *MemoryStore) GetGenerations(_ context.Context, runID string) ([]model.GenerationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, false, errNotInitialized
	}
	byGen, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	gens := make([]model.GenerationRecord, 0, len(byGen))
	for _, payload := range byGen {
		gen, err := DecodeGeneration(payload)
		if err != nil {
			return nil, false, err
		}
		gens = append(gens, gen)
	}
	sortGenerations(gens)
	return gens, true, nil
}
