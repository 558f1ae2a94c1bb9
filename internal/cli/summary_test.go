package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/Veraticus/remitos/internal/model"
	"github.com/Veraticus/remitos/internal/sequence"
	"github.com/Veraticus/remitos/internal/service"
	"github.com/stretchr/testify/assert"
)

func testEntries() []sequence.Entry {
	batch := model.ClassifiedBatch{
		{Page: model.Page{Index: 0}, Outcome: model.Classified(model.Identifier{Branch: "0001", Number: "00000002"}, model.SourceEmbedded)},
		{Page: model.Page{Index: 1}, Outcome: model.Unclassified(model.ReasonOCRSkippedRateLimit, "")},
	}
	return sequence.Sequence(batch, "pdf")
}

func TestRenderSummary_Halted(t *testing.T) {
	resume := 1
	out := RenderSummary(RunSummary{
		Entries: testEntries(),
		Stats: service.CompletionStats{
			Counts:      model.BatchCounts{Classified: 1, Unclassified: 1, Skipped: 1},
			ResumeIndex: &resume,
			TotalPages:  5,
			OCRCalls:    2,
		},
		Budget:     model.CallBudget{CallsInWindow: 180, PerHourCap: 180},
		ResetsAt:   time.Now().Add(time.Hour),
		ResumeHint: "remitos classify --resume lote.pdf",
	})

	assert.Contains(t, out, "1 of 5 pages classified")
	assert.Contains(t, out, "1 pending OCR")
	assert.Contains(t, out, "Run stopped at page 2")
	assert.Contains(t, out, "remitos classify --resume lote.pdf")
	assert.Contains(t, out, "000001_0001-00000002.pdf")
	assert.Contains(t, out, "SIN_REMITO_2_OCR_PENDIENTE.pdf")
}

func TestRenderSummary_Complete(t *testing.T) {
	out := RenderSummary(RunSummary{
		Stats:       service.CompletionStats{Counts: model.BatchCounts{Classified: 3}, TotalPages: 3},
		ArchivePath: "out/remitos_clasificados.zip",
	})

	assert.Contains(t, out, "All pages processed")
	assert.Contains(t, out, "out/remitos_clasificados.zip")
	assert.NotContains(t, out, "Resume with")
	assert.NotContains(t, out, "OCR failed")
}

func TestRenderSummary_OCRErrors(t *testing.T) {
	out := RenderSummary(RunSummary{
		Stats: service.CompletionStats{
			Counts:     model.BatchCounts{Classified: 1, Unclassified: 2, OCRErrors: 2},
			TotalPages: 3,
			OCRCalls:   2,
		},
	})

	assert.Contains(t, out, "2 OCR errors")
	assert.Contains(t, out, ErrorIcon+" OCR failed on 2 pages")
}

func TestRenderBudget(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)

	out := RenderBudget(model.BudgetWindow{}, 180, now, now)
	assert.Contains(t, out, "180 calls available")

	window := model.BudgetWindow{WindowStart: now.Add(-10 * time.Minute), CallsInWindow: 180}
	out = RenderBudget(window, 180, window.WindowStart.Add(time.Hour), now)
	assert.Contains(t, out, "Calls used: 180/180")
	assert.Contains(t, out, "Hourly cap reached")

	window.CallsInWindow = 30
	out = RenderBudget(window, 180, window.WindowStart.Add(time.Hour), now)
	assert.Contains(t, out, "150 calls available")
}

func TestPageProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPageProgress(&buf, 2)

	p.PageClassified(model.PageResult{Page: model.Page{Index: 0}, Outcome: model.Unclassified(model.ReasonNoMatch, "")})
	p.PageClassified(model.PageResult{Page: model.Page{Index: 1}, Outcome: model.Classified(model.Identifier{Branch: "0001", Number: "00000001"}, model.SourceOCR)})
	p.Finish()

	assert.Equal(t, model.BatchCounts{Classified: 1, Unclassified: 1}, p.counts)
	assert.NotEmpty(t, buf.String())
}
