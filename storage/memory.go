package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/pthm-cable/arbor/sim"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps records in process memory. Snapshots are stored in
// encoded form so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	snapshots   map[string]map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]Run)
	s.snapshots = make(map[string]map[int64][]byte)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, runID string, snap *sim.Snapshot) error {
	payload, err := EncodeSnapshot(runID, snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	byStep, ok := s.snapshots[runID]
	if !ok {
		byStep = make(map[int64][]byte)
		s.snapshots[runID] = byStep
	}
	byStep[snap.Substeps] = payload
	return nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, runID string) (*sim.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStep := s.snapshots[runID]
	if len(byStep) == 0 {
		return nil, false, nil
	}
	latest := int64(-1)
	for step := range byStep {
		if step > latest {
			latest = step
		}
	}
	snap, err := DecodeSnapshot(byStep[latest])
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}
