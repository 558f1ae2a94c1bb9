// Package engine implements the page classification orchestrator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/remitos/internal/budget"
	"github.com/Veraticus/remitos/internal/classification"
	"github.com/Veraticus/remitos/internal/model"
	"github.com/Veraticus/remitos/internal/ocr"
	"github.com/Veraticus/remitos/internal/service"
)

// ErrInvalidStartIndex is returned when a run starts outside the document.
var ErrInvalidStartIndex = errors.New("start index outside document")

// Default call caps.
const (
	DefaultPerRunCap  = 50
	DefaultPerHourCap = 180
	DefaultCallPause  = 1500 * time.Millisecond
)

// Config holds configuration options for the orchestrator.
type Config struct {
	Clock        budget.Clock
	Outcomes     service.OutcomeStore // Optional; enables resumable runs
	Observer     PageObserver         // Optional
	Sleep        func(ctx context.Context, d time.Duration) error
	Language     string
	SplitPattern string
	Window       time.Duration
	CallPause    time.Duration // Pause between consecutive OCR dispatches
	PerRunCap    int
	PerHourCap   int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PerRunCap:    DefaultPerRunCap,
		PerHourCap:   DefaultPerHourCap,
		Window:       budget.DefaultWindow,
		CallPause:    DefaultCallPause,
		SplitPattern: classification.DefaultSplitPattern,
	}
}

// Orchestrator classifies the pages of a document one at a time, escalating
// to OCR when embedded text yields no identifier and the call budget allows it.
type Orchestrator struct {
	extractor ocr.Extractor
	budgets   service.BudgetStore
	outcomes  service.OutcomeStore
	observer  PageObserver
	limiter   *budget.Limiter
	sleep     func(ctx context.Context, d time.Duration) error
	config    Config
}

// New creates an orchestrator with the default configuration.
func New(extractor ocr.Extractor, budgets service.BudgetStore) *Orchestrator {
	return NewWithConfig(extractor, budgets, DefaultConfig())
}

// NewWithConfig creates an orchestrator with a custom configuration.
func NewWithConfig(extractor ocr.Extractor, budgets service.BudgetStore, config Config) *Orchestrator {
	if budgets == nil {
		budgets = budget.NewMemoryStore()
	}
	sleep := config.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Orchestrator{
		extractor: extractor,
		budgets:   budgets,
		outcomes:  config.Outcomes,
		observer:  config.Observer,
		limiter:   budget.NewLimiter(config.Clock, config.Window),
		sleep:     sleep,
		config:    config,
	}
}

// Request describes one classification run over a document.
type Request struct {
	Credentials  ocr.Credentials
	DocumentHash string // Key for stored outcomes; empty disables persistence
	DocumentName string
	Pattern      string
	Pages        []model.Page
	StartIndex   int
	OCREnabled   bool
}

// Result is the outcome of a classification run.
// ResumeIndex is nil when every page has a final outcome.
type Result struct {
	ResumeIndex *int
	Batch       model.ClassifiedBatch
	Budget      model.CallBudget
	Stats       service.CompletionStats
}

// Complete reports whether the run left nothing to resume.
func (r *Result) Complete() bool {
	return r.ResumeIndex == nil
}

// run carries the mutable state of a single Classify call.
type run struct {
	detector      *classification.Detector
	req           *Request
	budget        model.CallBudget
	batch         model.ClassifiedBatch
	resume        *int
	ocrAvailable  bool
	runCapReached bool
	dispatched    bool
}

// Classify processes pages from req.StartIndex onward in index order.
// Per-page failures become unclassified outcomes; only an hourly cap refusal
// or context cancellation halts the run, and both return a resume index.
func (o *Orchestrator) Classify(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	if req.StartIndex < 0 || req.StartIndex > len(req.Pages) {
		return nil, fmt.Errorf("%w: %d of %d pages", ErrInvalidStartIndex, req.StartIndex, len(req.Pages))
	}

	window, err := o.budgets.LoadBudget(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load call budget: %w", err)
	}

	r := &run{
		req: &req,
		detector: classification.NewDetectorWithConfig(classification.Config{
			UserPattern:  req.Pattern,
			SplitPattern: o.config.SplitPattern,
		}),
		budget: model.CallBudget{
			WindowStart:   window.WindowStart,
			CallsInWindow: window.CallsInWindow,
			PerRunCap:     o.config.PerRunCap,
			PerHourCap:    o.config.PerHourCap,
		},
		ocrAvailable: req.OCREnabled && req.Credentials.Present() && o.extractor != nil,
	}

	if req.OCREnabled && !r.ocrAvailable {
		slog.Info("OCR escalation disabled: no credentials configured")
	}

	r.batch = o.priorOutcomes(ctx, &req)

	slog.Info("Starting page classification",
		"document", req.DocumentName,
		"pages", len(req.Pages),
		"start_index", req.StartIndex,
		"ocr", r.ocrAvailable)

	o.saveProgress(ctx, &req, &req.StartIndex)

	for i := req.StartIndex; i < len(req.Pages); i++ {
		if ctx.Err() != nil {
			slog.Warn("Classification interrupted", "page", i+1)
			r.halt(i)
			break
		}

		outcome, step := o.classifyPage(ctx, r, i)
		if step == stepInterrupted {
			slog.Warn("Classification interrupted", "page", i+1)
			r.halt(i)
			break
		}

		o.record(ctx, r, i, outcome)

		if step == stepHalt {
			r.halt(i)
			break
		}
	}

	o.saveProgress(ctx, &req, r.resume)

	result := &Result{
		Batch:       r.batch,
		ResumeIndex: r.resume,
		Budget:      r.budget,
		Stats: service.CompletionStats{
			Counts:      r.batch.Counts(),
			ResumeIndex: r.resume,
			TotalPages:  len(req.Pages),
			OCRCalls:    r.budget.CallsThisRun,
			Duration:    time.Since(started),
		},
	}

	slog.Info("Page classification finished",
		"classified", result.Stats.Counts.Classified,
		"unclassified", result.Stats.Counts.Unclassified,
		"ocr_calls", result.Stats.OCRCalls,
		"complete", result.Complete())

	return result, nil
}

// pageStep tells the run loop what to do after a page.
type pageStep int

const (
	stepContinue    pageStep = iota
	stepHalt                 // record the outcome, then stop
	stepInterrupted          // stop without an outcome for the page
)

// classifyPage produces the outcome of one page.
func (o *Orchestrator) classifyPage(ctx context.Context, r *run, i int) (model.Outcome, pageStep) {
	page := r.req.Pages[i]

	if match, ok := r.detector.Detect(page.Text); ok {
		slog.Debug("Identifier found in embedded text",
			"page", i+1,
			"identifier", match.Identifier.String(),
			"strategy", match.Strategy)
		return model.Classified(match.Identifier, model.SourceEmbedded), stepContinue
	}

	if !r.ocrAvailable {
		if r.runCapReached {
			r.markBudgetSkip(i)
			return model.Unclassified(model.ReasonOCRSkippedBudget, ""), stepContinue
		}
		return model.Unclassified(model.ReasonNoMatch, ""), stepContinue
	}

	o.syncWindow(ctx, r)

	switch decision := o.limiter.Admit(&r.budget); decision {
	case budget.RefusedHourly:
		slog.Warn("OCR hourly cap reached, halting run",
			"page", i+1,
			"calls_in_window", r.budget.CallsInWindow,
			"resets_at", o.limiter.ResetsAt(r.budget))
		return model.Unclassified(model.ReasonOCRSkippedRateLimit, ""), stepHalt
	case budget.RefusedRun:
		slog.Warn("OCR per-run cap reached, continuing without OCR",
			"page", i+1,
			"calls_this_run", r.budget.CallsThisRun)
		r.ocrAvailable = false
		r.runCapReached = true
		r.markBudgetSkip(i)
		return model.Unclassified(model.ReasonOCRSkippedBudget, ""), stepContinue
	case budget.Admitted:
	}

	if r.dispatched && o.config.CallPause > 0 {
		if err := o.sleep(ctx, o.config.CallPause); err != nil {
			return model.Outcome{}, stepInterrupted
		}
	}

	text, err := o.extractor.Extract(ctx, page.Data, r.req.Credentials, o.config.Language)
	r.dispatched = true
	o.recordCall(ctx, r)

	if err != nil {
		if ctx.Err() != nil {
			return model.Outcome{}, stepInterrupted
		}
		slog.Warn("OCR failed for page", "page", i+1, "error", err)
		return model.Unclassified(model.ReasonOCRError, err.Error()), stepContinue
	}

	if match, ok := r.detector.Detect(text); ok {
		slog.Debug("Identifier found via OCR",
			"page", i+1,
			"identifier", match.Identifier.String(),
			"strategy", match.Strategy)
		return model.Classified(match.Identifier, model.SourceOCR), stepContinue
	}
	return model.Unclassified(model.ReasonNoMatch, ""), stepContinue
}

// syncWindow replaces the run's view of the window with the stored one, which
// includes calls made by other runs sharing the store.
func (o *Orchestrator) syncWindow(ctx context.Context, r *run) {
	window, err := o.budgets.LoadBudget(ctx)
	if err != nil {
		slog.Warn("Failed to reload call budget, using last known window", "error", err)
		return
	}
	r.budget.WindowStart = window.WindowStart
	r.budget.CallsInWindow = window.CallsInWindow
}

// recordCall counts a dispatched call. The store increments the shared window
// atomically; if it fails the call is still counted locally.
func (o *Orchestrator) recordCall(ctx context.Context, r *run) {
	window, err := o.budgets.AddCall(context.WithoutCancel(ctx), o.limiter.Now(), o.limiter.Window())
	if err != nil {
		slog.Warn("Failed to record OCR call in budget store", "error", err)
		o.limiter.Record(&r.budget)
		return
	}
	r.budget.WindowStart = window.WindowStart
	r.budget.CallsInWindow = window.CallsInWindow
	r.budget.CallsThisRun++
}

// record appends the outcome to the batch, persists it and notifies the observer.
func (o *Orchestrator) record(ctx context.Context, r *run, i int, outcome model.Outcome) {
	result := model.PageResult{Page: r.req.Pages[i], Outcome: outcome}
	result.Page.Index = i
	r.batch = append(r.batch, result)

	if o.outcomes != nil && r.req.DocumentHash != "" {
		if err := o.outcomes.SaveOutcome(context.WithoutCancel(ctx), r.req.DocumentHash, i, outcome); err != nil {
			slog.Warn("Failed to save page outcome", "page", i+1, "error", err)
		}
	}

	if o.observer != nil {
		o.observer.PageClassified(result)
	}
}

// priorOutcomes rebuilds the results of pages before the start index from
// the outcome store so a resumed run returns the whole document.
func (o *Orchestrator) priorOutcomes(ctx context.Context, req *Request) model.ClassifiedBatch {
	batch := make(model.ClassifiedBatch, 0, len(req.Pages))
	if req.StartIndex == 0 || o.outcomes == nil || req.DocumentHash == "" {
		return batch
	}

	stored, err := o.outcomes.GetOutcomes(ctx, req.DocumentHash)
	if err != nil {
		slog.Warn("Failed to load previous outcomes", "document", req.DocumentName, "error", err)
		return batch
	}

	for i := 0; i < req.StartIndex; i++ {
		outcome, ok := stored[i]
		if !ok {
			continue
		}
		page := req.Pages[i]
		page.Index = i
		batch = append(batch, model.PageResult{Page: page, Outcome: outcome})
	}

	if len(batch) > 0 {
		slog.Info("Resuming from previous run",
			"document", req.DocumentName,
			"previous_pages", len(batch),
			"start_index", req.StartIndex)
	}
	return batch
}

func (o *Orchestrator) saveProgress(ctx context.Context, req *Request, resume *int) {
	if o.outcomes == nil || req.DocumentHash == "" {
		return
	}
	if resume != nil && *resume >= len(req.Pages) {
		resume = nil
	}
	progress := &model.DocumentProgress{
		Hash:        req.DocumentHash,
		Name:        req.DocumentName,
		PageCount:   len(req.Pages),
		ResumeIndex: resume,
		UpdatedAt:   time.Now(),
	}
	// Progress must survive a canceled run context.
	if err := o.outcomes.SaveProgress(context.WithoutCancel(ctx), progress); err != nil {
		slog.Warn("Failed to save progress", "error", err)
	}
}

// halt stops the run at page i. An earlier budget skip keeps the lower index.
func (r *run) halt(i int) {
	if r.resume == nil || i < *r.resume {
		idx := i
		r.resume = &idx
	}
}

// markBudgetSkip records the first page skipped for the per-run cap.
func (r *run) markBudgetSkip(i int) {
	if r.resume == nil {
		idx := i
		r.resume = &idx
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
