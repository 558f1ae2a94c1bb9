package model

import "time"

// CallBudget tracks OCR calls against the rolling hourly cap and the per-run cap.
// A zero WindowStart means no window has been opened yet.
type CallBudget struct {
	WindowStart   time.Time
	CallsInWindow int
	PerRunCap     int
	PerHourCap    int
	CallsThisRun  int
}

// Window returns the persisted part of the budget.
func (b CallBudget) Window() BudgetWindow {
	return BudgetWindow{WindowStart: b.WindowStart, CallsInWindow: b.CallsInWindow}
}

// BudgetWindow is the part of a call budget that outlives a single run.
type BudgetWindow struct {
	WindowStart   time.Time
	CallsInWindow int
}

// WithCall returns the window after one more call at now. A new window opens
// at now when none is open or the current one is length old.
func (w BudgetWindow) WithCall(now time.Time, length time.Duration) BudgetWindow {
	if w.WindowStart.IsZero() || !now.Before(w.WindowStart.Add(length)) {
		return BudgetWindow{WindowStart: now, CallsInWindow: 1}
	}
	w.CallsInWindow++
	return w
}
