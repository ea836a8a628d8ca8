package engine

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BadgerOps/recoveryusb/internal/store"
)

// ExportOptions configures an export operation.
type ExportOptions struct {
	SourceDir   string // a built USB tree
	OutputDir   string
	Label       string
	SplitSize   int64
	Compression string
	Checksum    string
}

// ExportReport summarizes a completed export.
type ExportReport struct {
	Archives     []ArchiveInfo
	TotalFiles   int
	TotalSize    int64
	ManifestPath string
	Duration     time.Duration
}

// ArchiveInfo describes one split archive.
type ArchiveInfo struct {
	Name     string
	Size     int64
	Checksum string
	Files    []string
}

type exportEntry struct {
	relPath string // slash separated, relative to the image root
	absPath string
	size    int64
}

// Export packs a built recovery tree into split compressed tar archives with
// checksum sidecars, a JSON manifest and a README for the receiving side.
func (b *Builder) Export(ctx context.Context, opts ExportOptions) (*ExportReport, error) {
	startTime := time.Now()

	ext, err := archiveExtension(opts.Compression)
	if err != nil {
		return nil, err
	}
	if _, err := newHasher(opts.Checksum); err != nil {
		return nil, err
	}
	if opts.SplitSize <= 0 {
		return nil, fmt.Errorf("split size must be positive")
	}
	if !isDir(opts.SourceDir) {
		return nil, fmt.Errorf("image directory not found: %s", opts.SourceDir)
	}
	if opts.Label == "" {
		opts.Label = filepath.Base(filepath.Clean(opts.SourceDir))
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	files, dirs, err := collectImageTree(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("scanning image directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to export")
	}

	// Create split archives
	archiveNum := 1
	currentSize := int64(0)
	var archives []ArchiveInfo
	var currentFiles []string

	var tarWriter *tar.Writer
	var compressor io.WriteCloser
	var archiveFile *os.File
	var archivePath string

	openArchive := func() error {
		name := fmt.Sprintf("%s%03d%s", archivePrefix, archiveNum, ext)
		archivePath = filepath.Join(opts.OutputDir, name)

		var err error
		archiveFile, err = os.Create(archivePath)
		if err != nil {
			return fmt.Errorf("creating archive %s: %w", name, err)
		}
		compressor, err = newCompressor(opts.Compression, archiveFile)
		if err != nil {
			_ = archiveFile.Close()
			return fmt.Errorf("creating %s writer: %w", opts.Compression, err)
		}
		tarWriter = tar.NewWriter(compressor)
		currentFiles = nil
		currentSize = 0
		return nil
	}

	abortArchive := func() {
		if tarWriter != nil {
			_ = tarWriter.Close()
			_ = compressor.Close()
			_ = archiveFile.Close()
		}
	}

	closeArchive := func() (*ArchiveInfo, error) {
		if tarWriter == nil {
			return nil, nil
		}
		if err := tarWriter.Close(); err != nil {
			return nil, fmt.Errorf("closing tar writer: %w", err)
		}
		if err := compressor.Close(); err != nil {
			return nil, fmt.Errorf("closing %s writer: %w", opts.Compression, err)
		}
		if err := archiveFile.Close(); err != nil {
			return nil, fmt.Errorf("closing archive file: %w", err)
		}

		sum, size, err := hashFile(archivePath, opts.Checksum)
		if err != nil {
			return nil, fmt.Errorf("hashing archive: %w", err)
		}

		name := filepath.Base(archivePath)
		info := &ArchiveInfo{
			Name:     name,
			Size:     size,
			Checksum: sum,
			Files:    currentFiles,
		}

		if err := writeSidecar(archivePath, opts.Checksum, sum); err != nil {
			return nil, err
		}

		tarWriter = nil
		compressor = nil
		archiveFile = nil
		archiveNum++
		return info, nil
	}

	if err := openArchive(); err != nil {
		return nil, err
	}

	// Directories go into the first archive so empty ones survive.
	for _, d := range dirs {
		if err := addDirToTar(tarWriter, filepath.Join(opts.SourceDir, filepath.FromSlash(d)), d); err != nil {
			abortArchive()
			return nil, fmt.Errorf("adding %s to archive: %w", d, err)
		}
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			abortArchive()
			return nil, ctx.Err()
		default:
		}

		// Roll to next archive if this file would exceed split size
		// (unless current archive is empty; a single large file must go somewhere)
		if currentSize > 0 && currentSize+f.size > opts.SplitSize {
			info, err := closeArchive()
			if err != nil {
				return nil, err
			}
			archives = append(archives, *info)
			if err := openArchive(); err != nil {
				return nil, err
			}
		}

		if err := addFileToTar(tarWriter, f.absPath, f.relPath); err != nil {
			abortArchive()
			return nil, fmt.Errorf("adding %s to archive: %w", f.relPath, err)
		}
		currentFiles = append(currentFiles, f.relPath)
		currentSize += f.size
	}

	info, err := closeArchive()
	if err != nil {
		return nil, err
	}
	if info != nil {
		archives = append(archives, *info)
	}

	// Build manifest
	hostname, _ := os.Hostname()
	var fileInventory []ManifestFile
	var totalSize int64
	for _, f := range files {
		sum, _, err := hashFile(f.absPath, opts.Checksum)
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", f.relPath, err)
		}
		fileInventory = append(fileInventory, ManifestFile{
			Path:     f.relPath,
			Size:     f.size,
			Checksum: sum,
		})
		totalSize += f.size
	}

	manifest := &ImageManifest{
		Version:       "1.0",
		Created:       time.Now().UTC(),
		SourceHost:    hostname,
		Label:         opts.Label,
		Compression:   opts.Compression,
		Checksum:      opts.Checksum,
		Archives:      archivesToManifest(archives),
		TotalArchives: len(archives),
		TotalSize:     totalSize,
		Directories:   dirs,
		FileInventory: fileInventory,
	}

	manifestPath := filepath.Join(opts.OutputDir, ImageManifestName)
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, manifestData, 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	manifestHash, _, err := hashFile(manifestPath, opts.Checksum)
	if err != nil {
		return nil, fmt.Errorf("hashing manifest: %w", err)
	}
	if err := writeSidecar(manifestPath, opts.Checksum, manifestHash); err != nil {
		return nil, err
	}

	readmePath := filepath.Join(opts.OutputDir, ImageReadmeName)
	if err := os.WriteFile(readmePath, []byte(generateImageReadme(manifest)), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", ImageReadmeName, err)
	}

	if b.store != nil {
		transfer := &store.Transfer{
			Direction:    "export",
			Path:         opts.OutputDir,
			Label:        opts.Label,
			ArchiveCount: len(archives),
			TotalSize:    totalSize,
			ManifestHash: manifestHash,
			Status:       "completed",
			StartTime:    startTime,
			EndTime:      time.Now(),
		}
		if err := b.store.CreateTransfer(transfer); err != nil {
			b.logger.Warn("failed to record transfer in store", "error", err)
		}
	}

	duration := time.Since(startTime)
	b.logger.Info("export completed",
		"archives", len(archives),
		"files", len(files),
		"total_size", totalSize,
		"duration", duration,
	)

	return &ExportReport{
		Archives:     archives,
		TotalFiles:   len(files),
		TotalSize:    totalSize,
		ManifestPath: manifestPath,
		Duration:     duration,
	}, nil
}

// collectImageTree lists regular files and directories under root in
// lexical order. Symlinks and other special files are rejected.
func collectImageTree(root string) ([]exportEntry, []string, error) {
	var files []exportEntry
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			dirs = append(dirs, rel)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			files = append(files, exportEntry{relPath: rel, absPath: path, size: info.Size()})
		default:
			return fmt.Errorf("unsupported file type: %s", rel)
		}
		return nil
	})
	return files, dirs, err
}

// addFileToTar adds a single file to a tar archive.
func addFileToTar(tw *tar.Writer, srcPath, tarPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     tarPath,
		Size:     stat.Size(),
		Mode:     int64(stat.Mode().Perm()),
		ModTime:  stat.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tw, f); err != nil {
		return err
	}
	return nil
}

func addDirToTar(tw *tar.Writer, srcPath, tarPath string) error {
	stat, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	return tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     tarPath + "/",
		Mode:     int64(stat.Mode().Perm()),
		ModTime:  stat.ModTime(),
	})
}

// writeSidecar writes "<sum>  <name>" next to path, the format sha256sum
// and b3sum both check.
func writeSidecar(path, checksum, sum string) error {
	sidecar := path + sidecarExtension(checksum)
	content := fmt.Sprintf("%s  %s\n", sum, filepath.Base(path))
	if err := os.WriteFile(sidecar, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s sidecar: %w", checksum, err)
	}
	return nil
}

// archivesToManifest converts ArchiveInfo slice to ManifestArchive slice.
func archivesToManifest(archives []ArchiveInfo) []ManifestArchive {
	result := make([]ManifestArchive, len(archives))
	for i, a := range archives {
		result[i] = ManifestArchive(a)
	}
	return result
}

// generateImageReadme creates the human-readable README for the export media.
func generateImageReadme(m *ImageManifest) string {
	var b strings.Builder
	b.WriteString("RECOVERY USB IMAGE\n")
	b.WriteString("==================\n")
	b.WriteString(fmt.Sprintf("Label: %s\n", m.Label))
	b.WriteString(fmt.Sprintf("Created: %s\n", m.Created.Format("2006-01-02 15:04 UTC")))
	b.WriteString(fmt.Sprintf("Source: %s\n", m.SourceHost))
	b.WriteString(fmt.Sprintf("Archives: %d parts (%s, %s checksums)\n", m.TotalArchives, m.Compression, m.Checksum))
	b.WriteString(fmt.Sprintf("Total size: %s\n", FormatSize(m.TotalSize)))
	b.WriteString(fmt.Sprintf("Files: %d\n", len(m.FileInventory)))
	b.WriteString("\nTO RESTORE ONTO A USB STICK:\n")
	b.WriteString("1. Format the stick FAT32 and mount it\n")
	b.WriteString("2. Run: recoveryusb import --from <this directory> --to <usb mount>\n")
	b.WriteString("3. The tool will validate all archives before extracting\n")
	b.WriteString("\nIF AN ARCHIVE IS CORRUPT:\n")
	b.WriteString("- The import tool will tell you which archive(s) failed\n")
	b.WriteString("- Re-copy only the failed archive from the source machine\n")
	b.WriteString("- Re-run the import with --skip-validated\n")
	return b.String()
}
