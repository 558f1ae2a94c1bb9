package budget

import (
	"time"

	"github.com/Veraticus/remitos/internal/model"
)

// DefaultWindow is the length of the rolling quota window.
const DefaultWindow = time.Hour

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Decision is the result of an admission check.
type Decision int

// Admission decisions.
const (
	Admitted Decision = iota
	RefusedHourly
	RefusedRun
)

// Allowed reports whether a call may be dispatched.
func (d Decision) Allowed() bool { return d == Admitted }

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case RefusedHourly:
		return "refused_hourly_cap"
	case RefusedRun:
		return "refused_run_cap"
	default:
		return "unknown"
	}
}

// Limiter applies the rolling-window and per-run policy to a call budget.
// It holds no budget state of its own.
type Limiter struct {
	clock  Clock
	window time.Duration
}

// NewLimiter creates a limiter. A nil clock uses SystemClock and a
// non-positive window uses DefaultWindow.
func NewLimiter(clock Clock, window time.Duration) *Limiter {
	if clock == nil {
		clock = SystemClock
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{clock: clock, window: window}
}

// Now returns the current time from the limiter's clock.
func (l *Limiter) Now() time.Time {
	return l.clock.Now()
}

// Window returns the rolling window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Refresh opens a new window when none is open or the current one has elapsed.
func (l *Limiter) Refresh(b *model.CallBudget) {
	now := l.clock.Now()
	if b.WindowStart.IsZero() || !now.Before(b.WindowStart.Add(l.window)) {
		b.WindowStart = now
		b.CallsInWindow = 0
	}
}

// Admit checks whether another call fits both caps. It never increments counters.
func (l *Limiter) Admit(b *model.CallBudget) Decision {
	l.Refresh(b)
	if b.CallsInWindow >= b.PerHourCap {
		return RefusedHourly
	}
	if b.CallsThisRun >= b.PerRunCap {
		return RefusedRun
	}
	return Admitted
}

// Allows is Admit reduced to a yes/no answer.
func (l *Limiter) Allows(b *model.CallBudget) bool {
	return l.Admit(b).Allowed()
}

// Record counts a dispatched call against both caps.
func (l *Limiter) Record(b *model.CallBudget) {
	if b.WindowStart.IsZero() {
		b.WindowStart = l.clock.Now()
	}
	b.CallsInWindow++
	b.CallsThisRun++
}

// ResetsAt returns when the current window closes.
func (l *Limiter) ResetsAt(b model.CallBudget) time.Time {
	if b.WindowStart.IsZero() {
		return l.clock.Now()
	}
	return b.WindowStart.Add(l.window)
}

// Remaining returns the calls left in the window and in the run.
func (l *Limiter) Remaining(b model.CallBudget) (hour, run int) {
	hour = b.PerHourCap - b.CallsInWindow
	if !b.WindowStart.IsZero() && !l.clock.Now().Before(b.WindowStart.Add(l.window)) {
		hour = b.PerHourCap
	}
	run = b.PerRunCap - b.CallsThisRun
	return max(hour, 0), max(run, 0)
}
