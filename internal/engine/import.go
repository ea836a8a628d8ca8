package engine

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BadgerOps/recoveryusb/internal/safety"
	"github.com/BadgerOps/recoveryusb/internal/store"
)

// ImportOptions configures an import operation.
type ImportOptions struct {
	SourceDir     string // directory holding an export
	TargetDir     string // USB mount or directory to restore into
	VerifyOnly    bool
	Force         bool
	SkipValidated bool
}

// ImportReport summarizes a completed import.
type ImportReport struct {
	Label             string
	ArchivesValidated int
	ArchivesFailed    int
	ArchivesSkipped   int
	FilesExtracted    int
	TotalSize         int64
	Duration          time.Duration
	Errors            []string
}

// ReadImageManifest loads the manifest of an export directory.
func ReadImageManifest(dir string) (*ImageManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ImageManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var manifest ImageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if manifest.Checksum == "" {
		manifest.Checksum = ChecksumSHA256
	}
	if manifest.Compression == "" {
		manifest.Compression = CompressionZstd
	}
	return &manifest, nil
}

// Import validates an exported image and restores it into TargetDir.
func (b *Builder) Import(ctx context.Context, opts ImportOptions) (*ImportReport, error) {
	startTime := time.Now()

	manifest, err := ReadImageManifest(opts.SourceDir)
	if err != nil {
		return nil, err
	}
	if _, err := archiveExtension(manifest.Compression); err != nil {
		return nil, err
	}
	if !opts.VerifyOnly && opts.TargetDir == "" {
		return nil, fmt.Errorf("target directory is required")
	}

	b.logger.Info("import starting",
		"source", opts.SourceDir,
		"label", manifest.Label,
		"archives", manifest.TotalArchives,
		"files", len(manifest.FileInventory),
	)

	// Verify all archive files are present
	for _, arch := range manifest.Archives {
		archPath, err := safety.SafeJoinUnder(opts.SourceDir, arch.Name)
		if err != nil {
			return nil, fmt.Errorf("unsafe archive name %q: %w", arch.Name, err)
		}
		if _, err := os.Stat(archPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("archive not found: %s", arch.Name)
		}
	}

	transfer := &store.Transfer{
		Direction: "import",
		Path:      opts.SourceDir,
		Label:     manifest.Label,
		Status:    "running",
		StartTime: startTime,
	}
	b.recordTransfer(transfer, true)

	report := &ImportReport{Label: manifest.Label}
	skippedArchives := make(map[string]bool)

	for _, arch := range manifest.Archives {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		archPath := filepath.Join(opts.SourceDir, arch.Name)

		if !opts.Force {
			if opts.SkipValidated && b.store != nil {
				alreadyValid, err := b.store.IsArchiveValidated(opts.SourceDir, arch.Name, arch.Checksum)
				if err != nil {
					b.logger.Warn("failed to check archive validation status", "name", arch.Name, "error", err)
				} else if alreadyValid {
					b.logger.Info("archive previously validated, skipping", "name", arch.Name)
					report.ArchivesSkipped++
					skippedArchives[arch.Name] = true
					report.ArchivesValidated++
					continue
				}
			}

			b.logger.Info("validating archive", "name", arch.Name)
			actual, _, err := hashFile(archPath, manifest.Checksum)
			if err != nil {
				report.ArchivesFailed++
				report.Errors = append(report.Errors, fmt.Sprintf("hashing %s: %v", arch.Name, err))
				continue
			}

			if actual != arch.Checksum {
				report.ArchivesFailed++
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s: expected %s %s, got %s", arch.Name, manifest.Checksum, arch.Checksum, actual))
				continue
			}
		}

		report.ArchivesValidated++

		if b.store != nil && transfer.ID != 0 {
			ta := &store.TransferArchive{
				TransferID:  transfer.ID,
				ArchiveName: arch.Name,
				Checksum:    arch.Checksum,
				Size:        arch.Size,
				Validated:   true,
				ValidatedAt: time.Now(),
			}
			if err := b.store.CreateTransferArchive(ta); err != nil {
				b.logger.Warn("failed to record archive validation", "error", err)
			}
		}
	}

	if report.ArchivesFailed > 0 {
		report.Duration = time.Since(startTime)
		transfer.Status = "failed"
		transfer.ErrorMessage = fmt.Sprintf("%d archive(s) failed validation", report.ArchivesFailed)
		transfer.EndTime = time.Now()
		b.recordTransfer(transfer, false)
		return report, fmt.Errorf("%d archive(s) failed validation", report.ArchivesFailed)
	}

	if opts.VerifyOnly {
		report.Duration = time.Since(startTime)
		transfer.Status = "completed"
		transfer.ArchiveCount = report.ArchivesValidated
		transfer.EndTime = time.Now()
		b.recordTransfer(transfer, false)
		b.logger.Info("verify-only complete", "validated", report.ArchivesValidated)
		return report, nil
	}

	if err := os.MkdirAll(opts.TargetDir, 0o755); err != nil {
		return report, fmt.Errorf("creating target directory: %w", err)
	}
	for _, d := range manifest.Directories {
		dir, err := safety.SafeJoinUnder(opts.TargetDir, filepath.FromSlash(d))
		if err != nil {
			return report, fmt.Errorf("unsafe directory in manifest %q: %w", d, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return report, fmt.Errorf("creating directory: %w", err)
		}
	}

	for _, arch := range manifest.Archives {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if skippedArchives[arch.Name] {
			b.logger.Info("skipping extraction for previously validated archive", "name", arch.Name)
			continue
		}

		archPath := filepath.Join(opts.SourceDir, arch.Name)
		b.logger.Info("extracting archive", "name", arch.Name)

		extracted, size, err := extractArchive(archPath, manifest.Compression, opts.TargetDir)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("extracting %s: %v", arch.Name, err))
			report.Duration = time.Since(startTime)
			transfer.Status = "failed"
			transfer.ErrorMessage = err.Error()
			transfer.EndTime = time.Now()
			b.recordTransfer(transfer, false)
			return report, fmt.Errorf("extracting %s: %w", arch.Name, err)
		}

		report.FilesExtracted += extracted
		report.TotalSize += size
	}

	report.Duration = time.Since(startTime)

	transfer.Status = "completed"
	transfer.ArchiveCount = report.ArchivesValidated
	transfer.TotalSize = report.TotalSize
	transfer.EndTime = time.Now()
	b.recordTransfer(transfer, false)

	b.logger.Info("import completed",
		"files_extracted", report.FilesExtracted,
		"total_size", report.TotalSize,
		"duration", report.Duration,
	)

	return report, nil
}

func (b *Builder) recordTransfer(t *store.Transfer, create bool) {
	if b.store == nil {
		return
	}
	if create {
		if err := b.store.CreateTransfer(t); err != nil {
			b.logger.Warn("failed to record transfer", "error", err)
		}
		return
	}
	if t.ID == 0 {
		return
	}
	if err := b.store.UpdateTransfer(t); err != nil {
		b.logger.Warn("failed to update transfer", "error", err)
	}
}

// extractArchive decompresses and untars an archive into targetDir.
// Returns files extracted count and total bytes.
func extractArchive(archivePath, compression, targetDir string) (int, int64, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, 0, fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	dr, err := newDecompressor(compression, f)
	if err != nil {
		return 0, 0, fmt.Errorf("creating %s reader: %w", compression, err)
	}
	defer dr.Close()

	tr := tar.NewReader(dr)

	extracted := 0
	totalSize := int64(0)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return extracted, totalSize, fmt.Errorf("reading tar entry: %w", err)
		}

		destPath, err := safety.SafeJoinUnder(targetDir, header.Name)
		if err != nil {
			return extracted, totalSize, fmt.Errorf("unsafe path in archive %q: %w", header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return extracted, totalSize, fmt.Errorf("creating directory: %w", err)
			}
			continue
		case tar.TypeReg:
		default:
			// Reject symlinks/hardlinks and other non-regular entries.
			return extracted, totalSize, fmt.Errorf("unsupported tar entry type for %s: %c", header.Name, header.Typeflag)
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return extracted, totalSize, fmt.Errorf("creating directory: %w", err)
		}

		mode := os.FileMode(header.Mode).Perm()
		if mode == 0 {
			mode = 0o644
		}
		outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return extracted, totalSize, fmt.Errorf("creating file %s: %w", destPath, err)
		}

		n, err := io.Copy(outFile, tr)
		if closeErr := outFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return extracted, totalSize, fmt.Errorf("extracting %s: %w", header.Name, err)
		}
		if !header.ModTime.IsZero() {
			_ = os.Chtimes(destPath, header.ModTime, header.ModTime)
		}

		extracted++
		totalSize += n
	}

	return extracted, totalSize, nil
}
