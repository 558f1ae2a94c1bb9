package model

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	id, err := ParseIdentifier("0001-00001234")
	require.NoError(t, err)
	assert.Equal(t, Identifier{Branch: "0001", Number: "00001234"}, id)
	assert.Equal(t, "0001-00001234", id.String())

	for _, bad := range []string{"", "1-2", "00010-0001234", "0001_00001234", "abcd-00001234", "0001-0000123x"} {
		_, err := ParseIdentifier(bad)
		assert.Error(t, err, bad)
	}
}

func TestIdentifierCompare(t *testing.T) {
	ids := []Identifier{
		{Branch: "0010", Number: "00000005"},
		{Branch: "0002", Number: "00000099"},
		{Branch: "0010", Number: "00000001"},
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	assert.Equal(t, []string{"0002-00000099", "0010-00000001", "0010-00000005"},
		[]string{ids[0].String(), ids[1].String(), ids[2].String()})

	a := Identifier{Branch: "0001", Number: "00000001"}
	assert.Zero(t, a.Compare(a))
	assert.True(t, Identifier{}.IsZero())
	assert.False(t, a.IsZero())
}

func TestBatchCounts(t *testing.T) {
	id := Identifier{Branch: "0001", Number: "00000001"}
	batch := ClassifiedBatch{
		{Outcome: Classified(id, SourceEmbedded)},
		{Outcome: Classified(id, SourceOCR)},
		{Outcome: Unclassified(ReasonNoMatch, "")},
		{Outcome: Unclassified(ReasonOCRSkippedRateLimit, "")},
		{Outcome: Unclassified(ReasonOCRSkippedBudget, "")},
		{Outcome: Unclassified(ReasonOCRError, "timeout")},
	}

	assert.Equal(t, BatchCounts{
		Classified:   2,
		ViaOCR:       1,
		Unclassified: 4,
		Skipped:      2,
		OCRErrors:    1,
	}, batch.Counts())
}

func TestReasonIsOCRSkip(t *testing.T) {
	assert.True(t, ReasonOCRSkippedRateLimit.IsOCRSkip())
	assert.True(t, ReasonOCRSkippedBudget.IsOCRSkip())
	assert.False(t, ReasonOCRError.IsOCRSkip())
	assert.False(t, ReasonNoMatch.IsOCRSkip())
}

func TestPageAndDocument(t *testing.T) {
	assert.Equal(t, 1, Page{Index: 0}.Number())
	assert.Equal(t, HashDocument([]byte("a")), HashDocument([]byte("a")))
	assert.NotEqual(t, HashDocument([]byte("a")), HashDocument([]byte("b")))
	assert.Len(t, HashDocument(nil), 64)
}

func TestCallBudgetWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := CallBudget{WindowStart: start, CallsInWindow: 7, CallsThisRun: 3, PerHourCap: 10, PerRunCap: 5}

	assert.Equal(t, BudgetWindow{WindowStart: start, CallsInWindow: 7}, b.Window())

	idx := 2
	assert.False(t, DocumentProgress{ResumeIndex: &idx}.Complete())
	assert.True(t, DocumentProgress{}.Complete())
}

func TestBudgetWindowWithCall(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		window BudgetWindow
		now    time.Time
		want   BudgetWindow
	}{
		{
			name: "opens first window",
			now:  start,
			want: BudgetWindow{WindowStart: start, CallsInWindow: 1},
		},
		{
			name:   "counts inside window",
			window: BudgetWindow{WindowStart: start, CallsInWindow: 4},
			now:    start.Add(59 * time.Minute),
			want:   BudgetWindow{WindowStart: start, CallsInWindow: 5},
		},
		{
			name:   "reopens at window end",
			window: BudgetWindow{WindowStart: start, CallsInWindow: 180},
			now:    start.Add(time.Hour),
			want:   BudgetWindow{WindowStart: start.Add(time.Hour), CallsInWindow: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.window.WithCall(tt.now, time.Hour))
		})
	}
}
