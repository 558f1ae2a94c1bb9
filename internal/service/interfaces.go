// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/remitos/internal/model"
)

// BudgetStore persists the rolling OCR call window between runs.
type BudgetStore interface {
	// LoadBudget returns the stored window, or a zero window when none exists.
	LoadBudget(ctx context.Context) (model.BudgetWindow, error)
	SaveBudget(ctx context.Context, window model.BudgetWindow) error
	ResetBudget(ctx context.Context) error
	// AddCall atomically counts one call made at now against the stored window,
	// opening a new window when the stored one is length old, and returns the
	// window after the increment. Concurrent runs sharing a store never lose calls.
	AddCall(ctx context.Context, now time.Time, length time.Duration) (model.BudgetWindow, error)
}

// OutcomeStore persists per-page outcomes and document progress for resumable runs.
type OutcomeStore interface {
	SaveProgress(ctx context.Context, progress *model.DocumentProgress) error
	GetProgress(ctx context.Context, documentHash string) (*model.DocumentProgress, error)
	SaveOutcome(ctx context.Context, documentHash string, pageIndex int, outcome model.Outcome) error
	GetOutcomes(ctx context.Context, documentHash string) (map[int]model.Outcome, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	BudgetStore
	OutcomeStore

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// CompletionStats shows the results of a classification run.
type CompletionStats struct {
	Counts      model.BatchCounts
	ResumeIndex *int
	TotalPages  int
	OCRCalls    int
	Duration    time.Duration
}
