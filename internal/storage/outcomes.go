package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/model"
)

// SaveProgress records how far classification of a document has advanced.
func (s *SQLiteStorage) SaveProgress(ctx context.Context, progress *model.DocumentProgress) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProgress(progress); err != nil {
		return err
	}

	var resume sql.NullInt64
	if progress.ResumeIndex != nil {
		resume = sql.NullInt64{Int64: int64(*progress.ResumeIndex), Valid: true}
	}

	updatedAt := progress.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (hash, name, page_count, resume_index, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			name = excluded.name,
			page_count = excluded.page_count,
			resume_index = excluded.resume_index,
			updated_at = excluded.updated_at`,
		progress.Hash, progress.Name, progress.PageCount, resume, updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// GetProgress returns the stored progress for a document.
// It returns common.ErrNotFound if the document has never been classified.
func (s *SQLiteStorage) GetProgress(ctx context.Context, documentHash string) (*model.DocumentProgress, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(documentHash, "documentHash"); err != nil {
		return nil, err
	}

	var (
		progress model.DocumentProgress
		resume   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, name, page_count, resume_index, updated_at
		FROM documents
		WHERE hash = ?`, documentHash).
		Scan(&progress.Hash, &progress.Name, &progress.PageCount, &resume, &progress.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	if resume.Valid {
		idx := int(resume.Int64)
		progress.ResumeIndex = &idx
	}
	return &progress, nil
}

// SaveOutcome stores the outcome of one page, replacing any earlier outcome,
// and appends it to the outcome history.
func (s *SQLiteStorage) SaveOutcome(ctx context.Context, documentHash string, pageIndex int, outcome model.Outcome) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(documentHash, "documentHash"); err != nil {
		return err
	}
	if err := validateOutcome(pageIndex, outcome); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = saveOutcomeTx(ctx, tx, documentHash, pageIndex, outcome); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func saveOutcomeTx(ctx context.Context, q queryable, documentHash string, pageIndex int, outcome model.Outcome) error {
	var branch, number, identifier sql.NullString
	if outcome.IsClassified() {
		branch = sql.NullString{String: outcome.Identifier.Branch, Valid: true}
		number = sql.NullString{String: outcome.Identifier.Number, Valid: true}
		identifier = sql.NullString{String: outcome.Identifier.String(), Valid: true}
	}

	now := time.Now().UTC()
	_, err := q.ExecContext(ctx, `
		INSERT INTO page_outcomes (document_hash, page_index, status, branch, number, source, reason, detail, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_hash, page_index) DO UPDATE SET
			status = excluded.status,
			branch = excluded.branch,
			number = excluded.number,
			source = excluded.source,
			reason = excluded.reason,
			detail = excluded.detail,
			classified_at = excluded.classified_at`,
		documentHash, pageIndex, string(outcome.Status), branch, number,
		string(outcome.Source), string(outcome.Reason), outcome.Detail, now)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO outcome_history (document_hash, page_index, status, identifier, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		documentHash, pageIndex, string(outcome.Status), identifier, string(outcome.Reason), now)
	if err != nil {
		return fmt.Errorf("failed to record outcome history: %w", err)
	}
	return nil
}

// GetOutcomes returns every stored page outcome for a document keyed by page index.
func (s *SQLiteStorage) GetOutcomes(ctx context.Context, documentHash string) (map[int]model.Outcome, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(documentHash, "documentHash"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT page_index, status, branch, number, source, reason, detail
		FROM page_outcomes
		WHERE document_hash = ?
		ORDER BY page_index`, documentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	outcomes := make(map[int]model.Outcome)
	for rows.Next() {
		var (
			pageIndex              int
			status                 string
			branch, number         sql.NullString
			source, reason, detail sql.NullString
		)
		if err := rows.Scan(&pageIndex, &status, &branch, &number, &source, &reason, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes[pageIndex] = model.Outcome{
			Status:     model.ClassificationStatus(status),
			Identifier: model.Identifier{Branch: branch.String, Number: number.String},
			Source:     model.TextSource(source.String),
			Reason:     model.UnclassifiedReason(reason.String),
			Detail:     detail.String,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return outcomes, nil
}

// OutcomeHistory returns how many outcomes were ever recorded for a page.
func (s *SQLiteStorage) OutcomeHistory(ctx context.Context, documentHash string, pageIndex int) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outcome_history
		WHERE document_hash = ? AND page_index = ?`, documentHash, pageIndex).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outcome history: %w", err)
	}
	return count, nil
}
