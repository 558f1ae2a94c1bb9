package budget

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/remitos/internal/model"
)

// MemoryStore keeps the budget window for the lifetime of the process.
type MemoryStore struct {
	window model.BudgetWindow
	mu     sync.Mutex
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadBudget returns the current window.
func (s *MemoryStore) LoadBudget(_ context.Context) (model.BudgetWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window, nil
}

// SaveBudget replaces the current window.
func (s *MemoryStore) SaveBudget(_ context.Context, window model.BudgetWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = window
	return nil
}

// AddCall counts one call under the store lock.
func (s *MemoryStore) AddCall(_ context.Context, now time.Time, length time.Duration) (model.BudgetWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = s.window.WithCall(now, length)
	return s.window, nil
}

// ResetBudget clears the window.
func (s *MemoryStore) ResetBudget(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = model.BudgetWindow{}
	return nil
}
