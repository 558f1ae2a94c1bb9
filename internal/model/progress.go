package model

import "time"

// DocumentProgress tracks how far classification of a document has advanced.
// ResumeIndex is nil once every page has an outcome.
type DocumentProgress struct {
	UpdatedAt   time.Time
	ResumeIndex *int
	Hash        string
	Name        string
	PageCount   int
}

// Complete reports whether the document needs no further runs.
func (p DocumentProgress) Complete() bool {
	return p.ResumeIndex == nil
}
