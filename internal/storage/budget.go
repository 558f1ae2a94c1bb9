package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/remitos/internal/model"
)

// LoadBudget returns the persisted OCR call window, or a zero window if none was saved.
func (s *SQLiteStorage) LoadBudget(ctx context.Context) (model.BudgetWindow, error) {
	if err := validateContext(ctx); err != nil {
		return model.BudgetWindow{}, err
	}
	return loadBudget(ctx, s.db)
}

// SaveBudget upserts the OCR call window.
func (s *SQLiteStorage) SaveBudget(ctx context.Context, window model.BudgetWindow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveBudget(ctx, s.db, window)
}

// AddCall counts one call in a single transaction. File databases open
// transactions with BEGIN IMMEDIATE, so a second process waits on the
// busy timeout instead of reading a stale count.
func (s *SQLiteStorage) AddCall(ctx context.Context, now time.Time, length time.Duration) (model.BudgetWindow, error) {
	if err := validateContext(ctx); err != nil {
		return model.BudgetWindow{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.BudgetWindow{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := loadBudget(ctx, tx)
	if err != nil {
		return model.BudgetWindow{}, err
	}
	updated := current.WithCall(now.UTC(), length)
	if err = saveBudget(ctx, tx, updated); err != nil {
		return model.BudgetWindow{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.BudgetWindow{}, fmt.Errorf("failed to commit call: %w", err)
	}
	return updated, nil
}

func loadBudget(ctx context.Context, q queryable) (model.BudgetWindow, error) {
	var (
		windowStart sql.NullTime
		calls       int
	)
	err := q.QueryRowContext(ctx,
		`SELECT window_start, calls_in_window FROM call_budget WHERE id = 1`).
		Scan(&windowStart, &calls)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BudgetWindow{}, nil
	}
	if err != nil {
		return model.BudgetWindow{}, fmt.Errorf("failed to load call budget: %w", err)
	}

	window := model.BudgetWindow{CallsInWindow: calls}
	if windowStart.Valid {
		window.WindowStart = windowStart.Time.UTC()
	}
	return window, nil
}

func saveBudget(ctx context.Context, q queryable, window model.BudgetWindow) error {
	if window.CallsInWindow < 0 {
		return fmt.Errorf("%w: negative call count", ErrInvalidProgress)
	}

	var windowStart sql.NullTime
	if !window.WindowStart.IsZero() {
		windowStart = sql.NullTime{Time: window.WindowStart.UTC(), Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO call_budget (id, window_start, calls_in_window, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			window_start = excluded.window_start,
			calls_in_window = excluded.calls_in_window,
			updated_at = excluded.updated_at`,
		windowStart, window.CallsInWindow, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save call budget: %w", err)
	}
	return nil
}

// ResetBudget forgets the persisted window so the next call opens a fresh one.
func (s *SQLiteStorage) ResetBudget(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM call_budget`); err != nil {
		return fmt.Errorf("failed to reset call budget: %w", err)
	}
	return nil
}
