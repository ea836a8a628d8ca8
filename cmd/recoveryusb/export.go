package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/recoveryusb/internal/engine"
)

var (
	exportFrom        string
	exportTo          string
	exportLabel       string
	exportSplitSize   string
	exportCompression string
	exportChecksum    string
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a built recovery tree to split archives",
		Long: `Export a built recovery USB tree for transfer or archival. The tree is
packed into tar archives no larger than --split-size, each compressed and
accompanied by a checksum file, plus a JSON manifest and a README.

Defaults for split size, compression and checksum come from the export
section of the config.`,
		Example: `  recoveryusb export --from /mnt/usb --to /srv/images/T480
  recoveryusb export --from /mnt/usb --to /srv/images/T480 --split-size 2GB --compression xz
  recoveryusb export --from /mnt/usb --to /srv/images/T480 --checksum blake3 --label T480-2026`,
		RunE: exportRun,
	}

	cmd.Flags().StringVar(&exportFrom, "from", "", "built recovery tree to export (required)")
	cmd.Flags().StringVar(&exportTo, "to", "", "output directory (default: export.output_dir)")
	cmd.Flags().StringVar(&exportLabel, "label", "", "image label (default: source directory name)")
	cmd.Flags().StringVar(&exportSplitSize, "split-size", "", "maximum archive size, e.g. 4GB or 2GiB")
	cmd.Flags().StringVar(&exportCompression, "compression", "", "compression format (zstd, gzip, xz)")
	cmd.Flags().StringVar(&exportChecksum, "checksum", "", "checksum algorithm (sha256, blake3)")

	if err := cmd.MarkFlagRequired("from"); err != nil {
		panic(err)
	}

	return cmd
}

func exportRun(cmd *cobra.Command, args []string) error {
	if globalBuilder == nil {
		return fmt.Errorf("builder not initialized")
	}

	opts := engine.ExportOptions{
		SourceDir:   exportFrom,
		OutputDir:   firstNonEmpty(exportTo, globalCfg.Export.OutputDir),
		Label:       exportLabel,
		Compression: firstNonEmpty(exportCompression, globalCfg.Export.Compression),
		Checksum:    firstNonEmpty(exportChecksum, globalCfg.Export.Checksum),
	}
	if opts.OutputDir == "" {
		return fmt.Errorf("no output directory: use --to or set export.output_dir")
	}

	sizeStr := firstNonEmpty(exportSplitSize, globalCfg.Export.SplitSize)
	splitSize, err := engine.ParseSize(sizeStr)
	if err != nil {
		return fmt.Errorf("invalid split size %q: %w", sizeStr, err)
	}
	opts.SplitSize = splitSize

	fmt.Printf("Exporting %s to %s...\n", opts.SourceDir, opts.OutputDir)
	fmt.Printf("  Split size: %s\n", engine.FormatSize(splitSize))
	fmt.Printf("  Compression: %s\n", opts.Compression)
	fmt.Printf("  Checksum: %s\n", opts.Checksum)
	fmt.Println()

	report, err := globalBuilder.Export(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Export complete:\n")
	fmt.Printf("  Archives: %d\n", len(report.Archives))
	fmt.Printf("  Files: %d\n", report.TotalFiles)
	fmt.Printf("  Total size: %s\n", engine.FormatSize(report.TotalSize))
	fmt.Printf("  Duration: %s\n", report.Duration.Round(time.Second))
	fmt.Printf("  Manifest: %s\n", report.ManifestPath)

	for _, arch := range report.Archives {
		fmt.Printf("  - %s (%s)\n", arch.Name, engine.FormatSize(arch.Size))
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
