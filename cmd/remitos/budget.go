package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/remitos/internal/budget"
	"github.com/Veraticus/remitos/internal/cli"
	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/model"
	"github.com/spf13/cobra"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect or reset the OCR call budget",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current OCR call window",
		RunE:  runBudgetShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the current OCR call window",
		Long: `Forget the stored OCR call window so the next run starts with a full hourly
allowance. Use this only when the provider quota is known to have been reset.`,
		RunE: runBudgetReset,
	})

	return cmd
}

func runBudgetShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	settings, err := loadSettings()
	if err != nil {
		return common.NewUserError("Invalid configuration", err)
	}

	db, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer closeWithLog("database", db)

	budgets, closer, err := openBudgetStore(ctx, settings, db)
	if err != nil {
		return err
	}
	defer closeWithLog("budget store", closer)

	window, err := budgets.LoadBudget(ctx)
	if err != nil {
		return fmt.Errorf("failed to load call budget: %w", err)
	}

	limiter := budget.NewLimiter(nil, settings.Budget.Window)
	resetsAt := limiter.ResetsAt(model.CallBudget{WindowStart: window.WindowStart})
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBudget(window, settings.Budget.PerHourCap, resetsAt, time.Now()))
	return nil
}

func runBudgetReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	settings, err := loadSettings()
	if err != nil {
		return common.NewUserError("Invalid configuration", err)
	}

	db, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer closeWithLog("database", db)

	budgets, closer, err := openBudgetStore(ctx, settings, db)
	if err != nil {
		return err
	}
	defer closeWithLog("budget store", closer)

	if err := budgets.ResetBudget(ctx); err != nil {
		return fmt.Errorf("failed to reset call budget: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("OCR call window reset"))
	return nil
}
