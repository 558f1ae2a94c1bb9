package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/remitos/internal/model"
	"github.com/schollz/progressbar/v3"
)

// PageProgress renders a progress bar as pages are classified.
// It satisfies engine.PageObserver.
type PageProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	counts model.BatchCounts
}

// NewPageProgress creates a progress bar over the pages a run will process.
func NewPageProgress(writer io.Writer, total int) *PageProgress {
	p := &PageProgress{writer: writer}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Clasificando páginas...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// PageClassified advances the bar and updates its description.
func (p *PageProgress) PageClassified(result model.PageResult) {
	if result.Outcome.IsClassified() {
		p.counts.Classified++
	} else {
		p.counts.Unclassified++
	}

	p.bar.Describe(fmt.Sprintf("[cyan][bold]Página %d[reset] %d clasificadas, %d sin remito",
		result.Page.Number(), p.counts.Classified, p.counts.Unclassified))
	if err := p.bar.Add(1); err != nil {
		slog.Debug("Failed to advance progress bar", "error", err)
	}
}

// Finish completes the bar even when the run halted early.
func (p *PageProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Debug("Failed to finish progress bar", "error", err)
	}
}
