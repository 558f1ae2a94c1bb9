package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/remitos/internal/model"
	"github.com/Veraticus/remitos/internal/sequence"
	"github.com/Veraticus/remitos/internal/service"
	"github.com/charmbracelet/lipgloss"
)

// RunSummary is everything shown after a classify run.
type RunSummary struct {
	ResumeHint  string
	ArchivePath string
	Entries     []sequence.Entry
	Stats       service.CompletionStats
	Budget      model.CallBudget
	ResetsAt    time.Time
}

// RenderSummary renders the run summary box followed by the entry table.
func RenderSummary(s RunSummary) string {
	counts := s.Stats.Counts

	lines := []string{
		fmt.Sprintf("%s %d of %d pages classified (%d via OCR)",
			ChartIcon, counts.Classified, s.Stats.TotalPages, counts.ViaOCR),
	}
	if counts.Unclassified > 0 {
		lines = append(lines, fmt.Sprintf("%s %d without identifier (%d pending OCR, %d OCR errors)",
			PendingIcon, counts.Unclassified, counts.Skipped, counts.OCRErrors))
	}
	if counts.OCRErrors > 0 {
		lines = append(lines, FormatError(fmt.Sprintf("OCR failed on %d pages", counts.OCRErrors)))
	}
	lines = append(lines, SubtleStyle.Render(fmt.Sprintf("OCR calls this run: %d · window: %d/%d · finished in %s",
		s.Stats.OCRCalls, s.Budget.CallsInWindow, s.Budget.PerHourCap, s.Stats.Duration.Round(time.Millisecond))))

	if s.Stats.ResumeIndex != nil {
		lines = append(lines, FormatWarning(fmt.Sprintf("Run stopped at page %d.", *s.Stats.ResumeIndex+1)))
		if !s.ResetsAt.IsZero() {
			lines = append(lines, FormatInfo("OCR window resets at "+s.ResetsAt.Local().Format("15:04")))
		}
		if s.ResumeHint != "" {
			lines = append(lines, FormatInfo("Resume with: "+s.ResumeHint))
		}
	} else {
		lines = append(lines, FormatSuccess("All pages processed"))
	}

	if s.ArchivePath != "" {
		lines = append(lines, FolderIcon+" "+BoldStyle.Render(s.ArchivePath))
	}

	var b strings.Builder
	b.WriteString(RenderBox("Remitos", strings.Join(lines, "\n")))
	if len(s.Entries) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderEntries(s.Entries))
	}
	return b.String()
}

// RenderEntries renders the sequenced artifacts as a table.
func RenderEntries(entries []sequence.Entry) string {
	rows := make([]string, 0, len(entries)+1)
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
		TableHeaderStyle.Render(TableCellStyle.Render("Página")),
		TableHeaderStyle.Render(TableCellStyle.Render("Archivo")),
	))

	for _, e := range entries {
		name := e.Name
		switch {
		case e.Classified:
			name = SuccessStyle.Render(name)
		case e.Outcome.Reason.IsOCRSkip():
			name = WarningStyle.Render(name)
		case e.Outcome.Reason == model.ReasonOCRError:
			name = ErrorStyle.Render(name)
		default:
			name = SubtleStyle.Render(name)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(8).Render(fmt.Sprintf("%d", e.PageIndex+1)),
			name,
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderBudget renders the OCR call window for the budget command.
func RenderBudget(window model.BudgetWindow, perHourCap int, resetsAt time.Time, now time.Time) string {
	if window.WindowStart.IsZero() || !now.Before(resetsAt) {
		return RenderBox("OCR budget", FormatSuccess(fmt.Sprintf("No open window: %d calls available", perHourCap)))
	}

	remaining := max(perHourCap-window.CallsInWindow, 0)
	lines := []string{
		fmt.Sprintf("Window opened: %s", window.WindowStart.Local().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Calls used: %d/%d", window.CallsInWindow, perHourCap),
		fmt.Sprintf("Resets at: %s", resetsAt.Local().Format("15:04:05")),
	}
	if remaining == 0 {
		lines = append(lines, FormatWarning("Hourly cap reached"))
	} else {
		lines = append(lines, FormatInfo(fmt.Sprintf("%d calls available", remaining)))
	}
	return RenderBox("OCR budget", strings.Join(lines, "\n"))
}
