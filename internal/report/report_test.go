package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BadgerOps/recoveryusb/internal/store"
)

func testRun() *store.BuildRun {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &store.BuildRun{
		ID:           7,
		Label:        "ThinkPad T480 (20L5)",
		ManifestPath: `C:\rmf\T480.rmf`,
		SourceDir:    "/srv/downloads",
		OverlayDir:   "/srv/patch",
		TargetDir:    "/mnt/usb",
		StartTime:    start,
		EndTime:      start.Add(3 * time.Minute),
		Status:       "completed",
		Failures:     1,
	}
}

func TestFileName(t *testing.T) {
	run := testRun()
	got := FileName(run)
	if !strings.HasPrefix(got, "2026-03-14_thinkpad") || !strings.HasSuffix(got, ".pdf") {
		t.Errorf("FileName() = %q", got)
	}
	if strings.ContainsAny(got, ` /\`) {
		t.Errorf("FileName() = %q contains separators or spaces", got)
	}

	run.Label = ""
	if got := FileName(run); got != "2026-03-14_run-7.pdf" {
		t.Errorf("FileName() with empty label = %q", got)
	}
}

func TestWrite(t *testing.T) {
	run := testRun()
	events := []store.BuildEvent{
		{Seq: 1, Kind: "INIT", Subject: "Target Dir", Path: "/mnt/usb", Result: "Created/Verified"},
		{Seq: 2, Kind: "CREATE", Subject: "VALUES.TXT", Result: "Content Verified (Written)"},
		{Seq: 3, Kind: "MISSING", Subject: "gone.imz", Path: "RECOVERY", Result: "Source not found", Failed: true},
	}
	// Enough rows to force a second page.
	for i := 4; i < 80; i++ {
		events = append(events, store.BuildEvent{
			Seq: i, Kind: "COPY", Subject: fmt.Sprintf("driver-%03d-with-a-rather-long-file-name.imz", i),
			Path: "RECOVERY", Result: "Success",
		})
	}

	outDir := filepath.Join(t.TempDir(), "reports")
	path, err := Write(run, events, outDir)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if filepath.Dir(path) != outDir || filepath.Base(path) != FileName(run) {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %q", data[:min(len(data), 16)])
	}
	if !bytes.Contains(data, []byte("/Count 2")) && !bytes.Contains(data, []byte("/Count 3")) {
		t.Error("expected a multi-page report")
	}
}

func TestWriteNilRun(t *testing.T) {
	if _, err := Write(nil, nil, t.TempDir()); err == nil {
		t.Error("Write(nil) succeeded")
	}
}
