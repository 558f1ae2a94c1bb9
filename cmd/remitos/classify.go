package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Veraticus/remitos/internal/budget"
	"github.com/Veraticus/remitos/internal/bundle"
	"github.com/Veraticus/remitos/internal/cli"
	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/document"
	"github.com/Veraticus/remitos/internal/engine"
	"github.com/Veraticus/remitos/internal/model"
	"github.com/Veraticus/remitos/internal/ocr"
	"github.com/Veraticus/remitos/internal/sequence"
	"github.com/Veraticus/remitos/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file.pdf>",
		Short: "Classify the pages of a PDF by remito number",
		Long: `Split a PDF into pages, detect each page's remito number and write a ZIP
with the pages ordered by number.

Pages with no usable embedded text are sent to OCR when --ocr is set and an
API key is configured (REMITOS_OCR_API_KEY). When the hourly OCR budget runs
out the run stops and can be continued later with --resume.

Examples:
  remitos classify lote.pdf
  remitos classify --ocr lote.pdf
  remitos classify --pattern 'Nro\.? (\d{4}-\d{8})' lote.pdf
  remitos classify --resume lote.pdf
  remitos classify --start-page 40 --partial lote.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().StringP("pattern", "p", "", "regular expression for the remito number (group 1 is used when present)")
	cmd.Flags().Bool("ocr", false, "send pages without a detectable number to OCR")
	cmd.Flags().String("api-key", "", "OCR provider API key")
	cmd.Flags().StringP("output", "o", "", "directory for the ZIP archive")
	cmd.Flags().BoolP("resume", "r", false, "continue from where the previous run of this file stopped")
	cmd.Flags().Int("start-page", 0, "1-based page to start from")
	cmd.Flags().Bool("partial", false, "write the archive even if the run stopped early")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")

	_ = viper.BindPFlag("detection.pattern", cmd.Flags().Lookup("pattern"))
	_ = viper.BindPFlag("ocr.enabled", cmd.Flags().Lookup("ocr"))
	_ = viper.BindPFlag("ocr.api_key", cmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("output.dir", cmd.Flags().Lookup("output"))

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	resume, _ := cmd.Flags().GetBool("resume")
	startPage, _ := cmd.Flags().GetInt("start-page")
	partial, _ := cmd.Flags().GetBool("partial")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	if resume && startPage > 0 {
		return common.NewUserError("--resume and --start-page cannot be combined", nil)
	}

	settings, err := loadSettings()
	if err != nil {
		return common.NewUserError("Invalid configuration", err)
	}

	doc, err := document.LoadFile(path)
	if err != nil {
		if errors.Is(err, common.ErrInvalidPDF) || errors.Is(err, common.ErrEmptyDocument) {
			return common.NewUserError(fmt.Sprintf("%s is not a readable PDF", path), err)
		}
		return err
	}
	slog.Info("Loaded document", "document", doc.Name, "pages", len(doc.Pages), "hash", doc.Hash[:12])

	db, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer closeWithLog("database", db)

	budgets, budgetCloser, err := openBudgetStore(ctx, settings, db)
	if err != nil {
		return err
	}
	defer closeWithLog("budget store", budgetCloser)

	startIndex, err := resolveStartIndex(cmd, db, doc, resume, startPage)
	if err != nil {
		return err
	}

	resumeHint := "remitos classify --resume " + path
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx = interrupts.HandleInterrupts(ctx, resumeHint)

	engineConfig := settings.EngineConfig()
	engineConfig.Outcomes = db

	var progress *cli.PageProgress
	if !noProgress && startIndex < len(doc.Pages) {
		progress = cli.NewPageProgress(cmd.ErrOrStderr(), len(doc.Pages)-startIndex)
		engineConfig.Observer = progress
	}

	var extractor ocr.Extractor
	if settings.OCR.Enabled {
		extractor = ocr.NewClient(settings.OCRConfig(), slog.Default())
	}

	orchestrator := engine.NewWithConfig(extractor, budgets, engineConfig)
	result, err := orchestrator.Classify(ctx, engine.Request{
		Pages:        doc.Pages,
		StartIndex:   startIndex,
		Pattern:      settings.Detection.Pattern,
		OCREnabled:   settings.OCR.Enabled,
		Credentials:  settings.Credentials(),
		DocumentHash: doc.Hash,
		DocumentName: doc.Name,
	})
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	entries := sequence.Sequence(result.Batch, sequence.DefaultExtension)

	summary := cli.RunSummary{
		Entries: entries,
		Stats:   result.Stats,
		Budget:  result.Budget,
	}
	if !result.Complete() {
		summary.ResumeHint = resumeHint
		summary.ResetsAt = budget.NewLimiter(nil, settings.Budget.Window).ResetsAt(result.Budget)
	}

	if result.Complete() || partial {
		archive := archivePath(settings.OutputDir, doc.Name)
		if err := bundle.WriteFile(archive, doc.Pages, entries); err != nil {
			return fmt.Errorf("failed to write archive: %w", err)
		}
		summary.ArchivePath = archive
		slog.Info("Archive written", "path", archive, "entries", len(entries))
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSummary(summary))
	return nil
}

// resolveStartIndex picks the first page to process from the flags and stored progress.
func resolveStartIndex(cmd *cobra.Command, store service.OutcomeStore, doc *model.Document, resume bool, startPage int) (int, error) {
	if startPage > 0 {
		if startPage > len(doc.Pages) {
			return 0, common.NewUserError(fmt.Sprintf("--start-page %d is past the last page (%d)", startPage, len(doc.Pages)), nil)
		}
		return startPage - 1, nil
	}
	if !resume {
		return 0, nil
	}

	progress, err := store.GetProgress(cmd.Context(), doc.Hash)
	if errors.Is(err, common.ErrNotFound) {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo("No previous run of this document, starting from page 1"))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load progress: %w", err)
	}
	if progress.Complete() {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo("Every page already has an outcome, rebuilding the archive"))
		return len(doc.Pages), nil
	}
	return *progress.ResumeIndex, nil
}

// archivePath names the archive after the source document.
func archivePath(dir, documentName string) string {
	base := strings.TrimSuffix(documentName, filepath.Ext(documentName))
	if base == "" {
		return filepath.Join(dir, bundle.ArchiveName)
	}
	return filepath.Join(dir, base+"_"+bundle.ArchiveName)
}
