// Package sequence orders classified pages by identifier and names the
// per-page artifacts.
package sequence

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/remitos/internal/model"
)

// DefaultExtension is the artifact extension for split PDF pages.
const DefaultExtension = "pdf"

// Name suffixes for unclassified pages.
const (
	SuffixOCRPending = "OCR_PENDIENTE"
	SuffixOCRError   = "OCR_ERROR"
)

// Entry is one named artifact in sequence order.
type Entry struct {
	Name       string
	Outcome    model.Outcome
	PageIndex  int
	Sequence   int // 1-based position among classified pages, 0 when unclassified
	Classified bool
}

// Sequence orders a batch for output. Classified pages come first, sorted by
// branch then number as integers with page index breaking ties, and are
// numbered from 1. Unclassified pages follow in page order and keep a name
// derived from their page number.
func Sequence(batch model.ClassifiedBatch, ext string) []Entry {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExtension
	}

	classified := make([]model.PageResult, 0, len(batch))
	unclassified := make([]model.PageResult, 0, len(batch))
	for _, r := range batch {
		if r.Outcome.IsClassified() {
			classified = append(classified, r)
		} else {
			unclassified = append(unclassified, r)
		}
	}

	slices.SortStableFunc(classified, func(a, b model.PageResult) int {
		if c := a.Outcome.Identifier.Compare(b.Outcome.Identifier); c != 0 {
			return c
		}
		return a.Page.Index - b.Page.Index
	})
	slices.SortStableFunc(unclassified, func(a, b model.PageResult) int {
		return a.Page.Index - b.Page.Index
	})

	entries := make([]Entry, 0, len(batch))
	for i, r := range classified {
		entries = append(entries, Entry{
			Name:       ClassifiedName(i+1, r.Outcome.Identifier, ext),
			PageIndex:  r.Page.Index,
			Sequence:   i + 1,
			Outcome:    r.Outcome,
			Classified: true,
		})
	}
	for _, r := range unclassified {
		entries = append(entries, Entry{
			Name:      UnclassifiedName(r.Page.Number(), r.Outcome.Reason, ext),
			PageIndex: r.Page.Index,
			Outcome:   r.Outcome,
		})
	}
	return entries
}

// ClassifiedName renders {6-digit sequence}_{branch}-{number}.{ext}.
func ClassifiedName(seq int, id model.Identifier, ext string) string {
	return fmt.Sprintf("%06d_%s.%s", seq, id.String(), ext)
}

// UnclassifiedName renders SIN_REMITO_{page number}[_suffix].{ext}.
func UnclassifiedName(pageNumber int, reason model.UnclassifiedReason, ext string) string {
	name := fmt.Sprintf("SIN_REMITO_%d", pageNumber)
	if suffix := Suffix(reason); suffix != "" {
		name += "_" + suffix
	}
	return name + "." + ext
}

// Suffix returns the name suffix for an unclassified reason, or "" when the
// reason needs none.
func Suffix(reason model.UnclassifiedReason) string {
	switch reason {
	case model.ReasonOCRSkippedRateLimit, model.ReasonOCRSkippedBudget:
		return SuffixOCRPending
	case model.ReasonOCRError:
		return SuffixOCRError
	case model.ReasonNoMatch:
		return ""
	default:
		return ""
	}
}
