package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/BadgerOps/recoveryusb/internal/config"
	"github.com/BadgerOps/recoveryusb/internal/engine"
	"github.com/BadgerOps/recoveryusb/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	_ = w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured stdout: %v", err)
	}
	_ = r.Close()
	return string(data)
}

// setupGlobals installs a default config, an in-memory store and a builder
// in the package globals for the duration of the test.
func setupGlobals(t *testing.T) (*config.Config, *store.Store) {
	t.Helper()

	origCfg, origStore, origBuilder, origLogger := globalCfg, globalStore, globalBuilder, logger
	t.Cleanup(func() {
		globalCfg, globalStore, globalBuilder, logger = origCfg, origStore, origBuilder, origLogger
	})

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Tools.ToolDir = t.TempDir()
	cfg.UI.PollInterval = "5ms"
	st := newTestStore(t)

	globalCfg = cfg
	globalStore = st
	globalBuilder = engine.NewBuilder(cfg, st, logger)
	return cfg, st
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const testManifest = `<?xml version="1.0" encoding="utf-8"?>
<rmf>
  <recovery>
    <manualfiles>
      <file name="VALUES.TXT" copypath="\"><fcontent>0) Name:	Unit Test
1) CD#:	1 of 1</fcontent></file>
    </manualfiles>
    <files>
      <file source="a.bin" copy="1" copypath="RECOVERY"/>
      <file source="drv.7z" copy="0" copypath="RECOVERY\DRV" key="abc"/>
    </files>
  </recovery>
</rmf>`

// buildInputs writes a manifest and source tree and returns a request for them.
func buildInputs(t *testing.T) engine.BuildRequest {
	t.Helper()
	dir := t.TempDir()
	req := engine.BuildRequest{
		ManifestPath: filepath.Join(dir, "T480.rmf"),
		SourceDir:    filepath.Join(dir, "downloads"),
		TargetDir:    filepath.Join(dir, "usb"),
	}
	writeFile(t, req.ManifestPath, testManifest)
	writeFile(t, filepath.Join(req.SourceDir, "a.bin"), "payload-a")
	writeFile(t, filepath.Join(req.SourceDir, "drv.7z"), "archive")
	// No archive tool: the unpack fails the same way everywhere.
	t.Setenv("PATH", "")
	return req
}
