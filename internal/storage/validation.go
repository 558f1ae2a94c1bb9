// Package storage provides the data persistence layer for remitos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/remitos/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidStatus   = errors.New("invalid classification status")
	ErrInvalidOutcome  = errors.New("invalid outcome")
	ErrInvalidProgress = errors.New("invalid progress")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateOutcome validates a page outcome.
func validateOutcome(pageIndex int, outcome model.Outcome) error {
	if pageIndex < 0 {
		return fmt.Errorf("%w: negative page index %d", ErrInvalidOutcome, pageIndex)
	}

	switch outcome.Status {
	case model.StatusClassified:
		if _, err := model.ParseIdentifier(outcome.Identifier.String()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOutcome, err)
		}
	case model.StatusUnclassified:
		switch outcome.Reason {
		case model.ReasonNoMatch,
			model.ReasonOCRSkippedRateLimit,
			model.ReasonOCRSkippedBudget,
			model.ReasonOCRError:
		default:
			return fmt.Errorf("%w: unknown reason %q", ErrInvalidOutcome, outcome.Reason)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, outcome.Status)
	}
	return nil
}

// validateProgress validates document progress.
func validateProgress(progress *model.DocumentProgress) error {
	if progress == nil {
		return fmt.Errorf("%w: progress", ErrNilParameter)
	}
	if err := validateString(progress.Hash, "hash"); err != nil {
		return err
	}
	if progress.PageCount < 0 {
		return fmt.Errorf("%w: negative page count", ErrInvalidProgress)
	}
	if progress.ResumeIndex != nil && (*progress.ResumeIndex < 0 || *progress.ResumeIndex >= progress.PageCount) {
		return fmt.Errorf("%w: resume index %d outside %d pages", ErrInvalidProgress, *progress.ResumeIndex, progress.PageCount)
	}
	return nil
}
