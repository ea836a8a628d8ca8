package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/recoveryusb/internal/engine"
)

var (
	historyLimit     int
	historyRunID     int64
	historyStatus    string
	historyTransfers bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past builds or show the event log of one build",
		Long: `List past builds from the history database, newest first. With --run,
print the full event log of that build instead. With --transfers, list the
image exports, imports and publishes with their archives.`,
		Example: `  recoveryusb history
  recoveryusb history --limit 5 --status fatal
  recoveryusb history --run 12
  recoveryusb history --transfers`,
		RunE: historyRun,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of builds to list (0 = all)")
	cmd.Flags().Int64Var(&historyRunID, "run", 0, "show the events of this build")
	cmd.Flags().StringVar(&historyStatus, "status", "", "only list builds with this status")
	cmd.Flags().BoolVar(&historyTransfers, "transfers", false, "list exports, imports and publishes instead of builds")

	return cmd
}

func historyRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}

	if historyRunID != 0 {
		return printRunEvents(historyRunID)
	}
	if historyTransfers {
		return printTransfers(historyLimit)
	}

	runs, err := globalStore.ListBuildRuns(historyStatus, historyLimit)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No builds recorded.")
		return nil
	}

	fmt.Printf("%-6s %-24s %-10s %8s %-17s %10s\n", "ID", "LABEL", "STATUS", "FAILURES", "STARTED", "DURATION")
	for _, r := range runs {
		duration := "-"
		if !r.EndTime.IsZero() {
			duration = r.EndTime.Sub(r.StartTime).Round(time.Second).String()
		}
		fmt.Printf("%-6d %-24s %-10s %8d %-17s %10s\n",
			r.ID,
			r.Label,
			r.Status,
			r.Failures,
			r.StartTime.Format("2006-01-02 15:04"),
			duration,
		)
	}
	return nil
}

func printRunEvents(id int64) error {
	run, err := globalStore.GetBuildRun(id)
	if err != nil {
		return fmt.Errorf("build %d: %w", id, err)
	}
	events, err := globalStore.ListBuildEvents(id)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	fmt.Printf("Build %d: %s (%s)\n", run.ID, run.Label, run.Status)
	fmt.Printf("  Manifest: %s\n", run.ManifestPath)
	fmt.Printf("  Target:   %s\n", run.TargetDir)
	fmt.Printf("  Started:  %s\n", run.StartTime.Format("2006-01-02 15:04:05"))
	// Counted from the events: an interrupted run never wrote its total.
	failures, err := globalStore.CountFailedEvents(id)
	if err != nil {
		return err
	}
	fmt.Printf("  Failures: %d\n", failures)
	if run.ErrorMessage != "" {
		fmt.Printf("  Error:    %s\n", run.ErrorMessage)
	}
	fmt.Println()
	for _, ev := range events {
		printStoredEvent(os.Stdout, ev.Kind, ev.Subject, ev.Path, ev.Result, ev.Failed)
	}
	return nil
}

func printTransfers(limit int) error {
	transfers, err := globalStore.ListTransfers(limit)
	if err != nil {
		return fmt.Errorf("listing transfers: %w", err)
	}
	if len(transfers) == 0 {
		fmt.Println("No transfers recorded.")
		return nil
	}

	fmt.Printf("%-6s %-8s %-20s %-10s %8s %10s %-17s\n", "ID", "TYPE", "LABEL", "STATUS", "ARCHIVES", "SIZE", "STARTED")
	for _, t := range transfers {
		fmt.Printf("%-6d %-8s %-20s %-10s %8d %10s %-17s\n",
			t.ID,
			t.Direction,
			t.Label,
			t.Status,
			t.ArchiveCount,
			engine.FormatSize(t.TotalSize),
			t.StartTime.Format("2006-01-02 15:04"),
		)
		if t.ErrorMessage != "" {
			fmt.Printf("       error: %s\n", t.ErrorMessage)
		}

		archives, err := globalStore.ListTransferArchives(t.ID)
		if err != nil {
			return fmt.Errorf("listing archives of transfer %d: %w", t.ID, err)
		}
		for _, a := range archives {
			state := "failed"
			if a.Validated {
				state = "validated"
			}
			fmt.Printf("       %-40s %10s %s\n", a.ArchiveName, engine.FormatSize(a.Size), state)
		}
	}
	return nil
}
