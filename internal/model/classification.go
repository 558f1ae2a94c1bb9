// Package model defines the core domain models used throughout the application.
package model

// ClassificationStatus indicates whether a page yielded an identifier.
type ClassificationStatus string

// Classification status constants.
const (
	StatusClassified   ClassificationStatus = "CLASSIFIED"
	StatusUnclassified ClassificationStatus = "UNCLASSIFIED"
)

// UnclassifiedReason explains why a page has no identifier.
type UnclassifiedReason string

// Unclassified reasons.
const (
	ReasonNoMatch             UnclassifiedReason = "NO_MATCH"
	ReasonOCRSkippedRateLimit UnclassifiedReason = "OCR_SKIPPED_RATE_LIMIT"
	ReasonOCRSkippedBudget    UnclassifiedReason = "OCR_SKIPPED_BUDGET"
	ReasonOCRError            UnclassifiedReason = "OCR_ERROR"
)

// IsOCRSkip reports whether the page was left unclassified because no OCR call was allowed.
func (r UnclassifiedReason) IsOCRSkip() bool {
	return r == ReasonOCRSkippedRateLimit || r == ReasonOCRSkippedBudget
}

// TextSource records where the text that produced an identifier came from.
type TextSource string

// Text sources.
const (
	SourceEmbedded TextSource = "EMBEDDED"
	SourceOCR      TextSource = "OCR"
)

// Outcome is the classification result of a single page.
// Exactly one of Identifier (when classified) or Reason (when not) is meaningful.
type Outcome struct {
	Status     ClassificationStatus
	Identifier Identifier
	Source     TextSource
	Reason     UnclassifiedReason
	Detail     string // Free-form detail, e.g. the OCR error message
}

// Classified builds a classified outcome.
func Classified(id Identifier, source TextSource) Outcome {
	return Outcome{Status: StatusClassified, Identifier: id, Source: source}
}

// Unclassified builds an unclassified outcome.
func Unclassified(reason UnclassifiedReason, detail string) Outcome {
	return Outcome{Status: StatusUnclassified, Reason: reason, Detail: detail}
}

// IsClassified reports whether the outcome carries an identifier.
func (o Outcome) IsClassified() bool {
	return o.Status == StatusClassified
}
