package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/recoveryusb/internal/report"
)

var (
	reportRunID int64
	reportOut   string
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a PDF report of a build",
		Long: `Write a PDF report of a recorded build: the build inputs, its outcome and
the full event table. Without --run the most recent build is reported.`,
		Example: `  recoveryusb report
  recoveryusb report --run 12 --out ./reports`,
		RunE: reportRun,
	}

	cmd.Flags().Int64Var(&reportRunID, "run", 0, "build to report (default: most recent)")
	cmd.Flags().StringVar(&reportOut, "out", ".", "output directory")

	return cmd
}

func reportRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}

	id := reportRunID
	if id == 0 {
		runs, err := globalStore.ListBuildRuns("", 1)
		if err != nil {
			return fmt.Errorf("listing builds: %w", err)
		}
		if len(runs) == 0 {
			return fmt.Errorf("no builds recorded")
		}
		id = runs[0].ID
	}

	run, err := globalStore.GetBuildRun(id)
	if err != nil {
		return err
	}
	events, err := globalStore.ListBuildEvents(id)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	if run.Failures, err = globalStore.CountFailedEvents(id); err != nil {
		return err
	}

	path, err := report.Write(run, events, reportOut)
	if err != nil {
		return err
	}
	logger.Info("wrote build report", "run", id, "path", path)
	fmt.Printf("Report written to %s\n", path)
	return nil
}
