package model

import (
	"crypto/sha256"
	"fmt"
)

// Page is one page of a source document as handed over by the page splitter.
type Page struct {
	Data  []byte // Single-page document bytes
	Text  string // Embedded text, empty when the page has none
	Index int    // 0-based position in the source document
}

// Number returns the 1-based page number used in artifact names and messages.
func (p Page) Number() int {
	return p.Index + 1
}

// Document is a source document split into pages.
type Document struct {
	Name  string
	Hash  string
	Pages []Page
}

// HashDocument creates a stable hash of a document's raw bytes for resume lookups.
func HashDocument(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// PageResult pairs a page with its classification outcome.
type PageResult struct {
	Page    Page
	Outcome Outcome
}

// ClassifiedBatch is a list of page results ordered by page index.
type ClassifiedBatch []PageResult

// Counts tallies outcomes by status and reason.
func (b ClassifiedBatch) Counts() BatchCounts {
	var counts BatchCounts
	for _, r := range b {
		if r.Outcome.IsClassified() {
			counts.Classified++
			if r.Outcome.Source == SourceOCR {
				counts.ViaOCR++
			}
			continue
		}
		counts.Unclassified++
		switch r.Outcome.Reason {
		case ReasonOCRSkippedRateLimit, ReasonOCRSkippedBudget:
			counts.Skipped++
		case ReasonOCRError:
			counts.OCRErrors++
		case ReasonNoMatch:
		}
	}
	return counts
}

// BatchCounts summarizes a classified batch.
type BatchCounts struct {
	Classified   int
	ViaOCR       int
	Unclassified int
	Skipped      int
	OCRErrors    int
}
