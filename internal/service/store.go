package service

import (
	"fmt"
	"sync"

	"github.com/Strob0t/taskbridge/internal/domain"
	"github.com/Strob0t/taskbridge/internal/domain/task"
)

// ResultStore maps task IDs to their terminal results. A result, once
// stored, is never replaced or removed for the lifetime of the process.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*task.Result
}

// NewResultStore creates an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*task.Result)}
}

// Put stores r. A second result for the same task ID is rejected with
// domain.ErrConflict and the original is kept.
func (s *ResultStore) Put(r *task.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[r.TaskID]; exists {
		return fmt.Errorf("result for task %s: %w", r.TaskID, domain.ErrConflict)
	}
	s.results[r.TaskID] = r
	return nil
}

// Get returns the stored result for taskID.
func (s *ResultStore) Get(taskID string) (*task.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[taskID]
	return r, ok
}

// Len returns the number of stored results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
