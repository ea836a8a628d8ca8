package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/recoveryusb/internal/engine"
)

var (
	importFrom          string
	importTo            string
	importVerifyOnly    bool
	importForce         bool
	importSkipValidated bool
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore an exported recovery image onto a USB target",
		Long: `Restore a previously exported recovery image. Archive checksums are
verified against the export manifest before anything is extracted.

Use --verify-only to check the archives without writing files.
Use --force to extract without verifying checksums.
Use --skip-validated to skip checksum verification of archives that an
earlier import already validated.`,
		Example: `  recoveryusb import --from /srv/images/T480 --to /mnt/usb
  recoveryusb import --from /srv/images/T480 --verify-only
  recoveryusb import --from /media/transfer --to /mnt/usb --skip-validated`,
		RunE: importRun,
	}

	cmd.Flags().StringVar(&importFrom, "from", "", "directory containing an export (required)")
	cmd.Flags().StringVar(&importTo, "to", "", "target directory or mounted USB stick")
	cmd.Flags().BoolVar(&importVerifyOnly, "verify-only", false, "verify archives without writing files")
	cmd.Flags().BoolVar(&importForce, "force", false, "extract without verifying checksums")
	cmd.Flags().BoolVar(&importSkipValidated, "skip-validated", false, "skip archives already validated by an earlier import")

	if err := cmd.MarkFlagRequired("from"); err != nil {
		panic(err)
	}

	return cmd
}

func importRun(cmd *cobra.Command, args []string) error {
	if globalBuilder == nil {
		return fmt.Errorf("builder not initialized")
	}

	fmt.Printf("Importing from %s...\n", importFrom)
	if importVerifyOnly {
		fmt.Println("  Mode: verify only")
	}
	if importForce {
		fmt.Println("  Mode: force (skip checksum verification)")
	}
	fmt.Println()

	report, err := globalBuilder.Import(cmd.Context(), engine.ImportOptions{
		SourceDir:     importFrom,
		TargetDir:     importTo,
		VerifyOnly:    importVerifyOnly,
		Force:         importForce,
		SkipValidated: importSkipValidated,
	})
	if err != nil {
		// Still print partial report if available
		if report != nil {
			printImportReport(report)
		}
		return fmt.Errorf("import failed: %w", err)
	}

	printImportReport(report)
	return nil
}

func printImportReport(report *engine.ImportReport) {
	fmt.Printf("Import results for %s:\n", report.Label)
	fmt.Printf("  Archives validated: %d\n", report.ArchivesValidated)
	fmt.Printf("  Archives skipped: %d\n", report.ArchivesSkipped)
	fmt.Printf("  Archives failed: %d\n", report.ArchivesFailed)
	fmt.Printf("  Files extracted: %d\n", report.FilesExtracted)
	fmt.Printf("  Total size: %s\n", engine.FormatSize(report.TotalSize))
	fmt.Printf("  Duration: %s\n", report.Duration.Round(time.Second))
	if len(report.Errors) > 0 {
		fmt.Println("  Errors:")
		for _, e := range report.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
