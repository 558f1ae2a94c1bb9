// Package budget governs whether an OCR call may be dispatched.
// It enforces a rolling hourly cap and a per-run cap over a model.CallBudget,
// with time supplied by an injected Clock, and provides stores that carry the
// rolling window across runs.
package budget
