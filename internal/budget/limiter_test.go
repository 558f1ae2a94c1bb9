package budget

import (
	"testing"
	"time"

	"github.com/Veraticus/remitos/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestLimiter_AdmitOpensWindowLazily(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(clock, time.Hour)
	b := model.CallBudget{PerHourCap: 2, PerRunCap: 10}

	require.True(t, b.WindowStart.IsZero())
	assert.Equal(t, Admitted, limiter.Admit(&b))
	assert.Equal(t, clock.now, b.WindowStart)
	assert.Zero(t, b.CallsInWindow)
	assert.Zero(t, b.CallsThisRun, "admit must not count calls")
}

func TestLimiter_HourlyCap(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(clock, time.Hour)
	b := model.CallBudget{PerHourCap: 2, PerRunCap: 10}

	for i := 0; i < 2; i++ {
		require.True(t, limiter.Allows(&b))
		limiter.Record(&b)
	}

	assert.Equal(t, RefusedHourly, limiter.Admit(&b))
	assert.Equal(t, 2, b.CallsInWindow)
	assert.Equal(t, 2, b.CallsThisRun)
}

func TestLimiter_RunCap(t *testing.T) {
	limiter := NewLimiter(newFakeClock(), time.Hour)
	b := model.CallBudget{PerHourCap: 100, PerRunCap: 1}

	require.True(t, limiter.Allows(&b))
	limiter.Record(&b)

	assert.Equal(t, RefusedRun, limiter.Admit(&b))
}

func TestLimiter_HourlyCapCheckedFirst(t *testing.T) {
	limiter := NewLimiter(newFakeClock(), time.Hour)
	b := model.CallBudget{PerHourCap: 1, PerRunCap: 1}
	limiter.Admit(&b)
	limiter.Record(&b)

	assert.Equal(t, RefusedHourly, limiter.Admit(&b))
}

func TestLimiter_WindowReset(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(clock, time.Hour)
	b := model.CallBudget{PerHourCap: 1, PerRunCap: 10}

	limiter.Admit(&b)
	limiter.Record(&b)
	require.False(t, limiter.Allows(&b))

	clock.Advance(59 * time.Minute)
	assert.False(t, limiter.Allows(&b), "window has not elapsed yet")
	assert.Equal(t, 1, b.CallsInWindow)

	clock.Advance(time.Minute)
	assert.True(t, limiter.Allows(&b), "window elapsed exactly at one hour")
	assert.Zero(t, b.CallsInWindow)
	assert.Equal(t, clock.now, b.WindowStart)
	assert.Equal(t, 1, b.CallsThisRun, "run counter survives window reset")
}

func TestLimiter_Remaining(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(clock, time.Hour)
	b := model.CallBudget{PerHourCap: 5, PerRunCap: 3}

	limiter.Admit(&b)
	limiter.Record(&b)

	hour, run := limiter.Remaining(b)
	assert.Equal(t, 4, hour)
	assert.Equal(t, 2, run)
	assert.Equal(t, clock.now.Add(time.Hour), limiter.ResetsAt(b))

	clock.Advance(2 * time.Hour)
	hour, _ = limiter.Remaining(b)
	assert.Equal(t, 5, hour)
}

func TestLimiter_Defaults(t *testing.T) {
	limiter := NewLimiter(nil, 0)
	assert.Equal(t, DefaultWindow, limiter.window)
	assert.NotNil(t, limiter.clock)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "admitted", Admitted.String())
	assert.Equal(t, "refused_hourly_cap", RefusedHourly.String())
	assert.Equal(t, "refused_run_cap", RefusedRun.String())
	assert.True(t, Admitted.Allowed())
	assert.False(t, RefusedRun.Allowed())
}
