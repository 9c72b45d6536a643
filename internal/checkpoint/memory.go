package checkpoint

import (
	"context"
	"maps"
	"sync"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

// MemoryStore 把断点保存在进程内，用于同步模拟和测试
type MemoryStore struct {
	mu       sync.Mutex
	counts   map[string]map[domain.Stage]int
	progress map[string]Progress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts:   make(map[string]map[domain.Stage]int),
		progress: make(map[string]Progress),
	}
}

func (s *MemoryStore) Save(_ context.Context, runID string, householdID int64, counts map[domain.Stage]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := countsKey(runID, householdID)
	if s.counts[key] == nil {
		s.counts[key] = make(map[domain.Stage]int, len(counts))
	}
	maps.Copy(s.counts[key], counts)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, runID string, householdID int64) (map[domain.Stage]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, ok := s.counts[countsKey(runID, householdID)]
	if !ok || len(counts) == 0 {
		return nil, ErrNotFound
	}
	return maps.Clone(counts), nil
}

func (s *MemoryStore) AddProgress(_ context.Context, runID string, processed, failed int64) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.progress[runID]
	p.Processed += processed
	p.Failed += failed
	s.progress[runID] = p
	return p, nil
}

func (s *MemoryStore) Progress(_ context.Context, runID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.progress[runID], nil
}
