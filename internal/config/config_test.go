package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns sensible defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		getValue func(*Config) string
		want     string
	}{
		{"target dir", func(c *Config) string { return c.Paths.TargetDir }, "USB"},
		{"archiver", func(c *Config) string { return c.Tools.Archiver }, "7z"},
		{"index builder", func(c *Config) string { return c.Tools.IndexBuilder }, "aodbuild.exe"},
		{"db path", func(c *Config) string { return c.Store.DBPath }, ""},
		{"split size", func(c *Config) string { return c.Export.SplitSize }, "4GB"},
		{"compression", func(c *Config) string { return c.Export.Compression }, "zstd"},
		{"checksum", func(c *Config) string { return c.Export.Checksum }, "sha256"},
		{"publish region", func(c *Config) string { return c.Publish.Region }, "us-east-1"},
		{"poll interval", func(c *Config) string { return c.UI.PollInterval }, "50ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.getValue(cfg)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if runtime.GOOS == "windows" {
		if !strings.Contains(cfg.Paths.SourceDir, "Downloads") {
			t.Errorf("Paths.SourceDir = %q, want vendor downloads dir", cfg.Paths.SourceDir)
		}
	} else if cfg.Paths.SourceDir != "" {
		t.Errorf("Paths.SourceDir = %q, want empty", cfg.Paths.SourceDir)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

// TestLoad tests loading a valid config file
func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "recoveryusb.yaml")

	configContent := `
paths:
  manifest: "/media/rmf/backup.rmf"
  source_dir: "/srv/recovery/downloads"
  patch_dir: "/srv/recovery/patch"
  target_dir: "/mnt/usb"
tools:
  archiver: "7za"
  tool_dir: "/opt/recovery/bin"
store:
  db_path: "/var/lib/recoveryusb/history.db"
export:
  split_size: "2GB"
  compression: "xz"
  checksum: "blake3"
  output_dir: "/export"
publish:
  bucket: "images"
  prefix: "recovery"
  endpoint: "http://127.0.0.1:9000"
ui:
  poll_interval: "100ms"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Paths.Manifest != "/media/rmf/backup.rmf" {
		t.Errorf("Paths.Manifest = %q", cfg.Paths.Manifest)
	}
	if cfg.Paths.TargetDir != "/mnt/usb" {
		t.Errorf("Paths.TargetDir = %q, want %q", cfg.Paths.TargetDir, "/mnt/usb")
	}
	if cfg.Tools.Archiver != "7za" {
		t.Errorf("Tools.Archiver = %q, want %q", cfg.Tools.Archiver, "7za")
	}
	// Unset keys keep their defaults
	if cfg.Tools.IndexBuilder != "aodbuild.exe" {
		t.Errorf("Tools.IndexBuilder = %q, want default", cfg.Tools.IndexBuilder)
	}
	if got := cfg.ToolDirectory(); got != "/opt/recovery/bin" {
		t.Errorf("ToolDirectory() = %q, want %q", got, "/opt/recovery/bin")
	}
	if got := cfg.DBPath(); got != "/var/lib/recoveryusb/history.db" {
		t.Errorf("DBPath() = %q", got)
	}
	if cfg.Export.Compression != "xz" || cfg.Export.Checksum != "blake3" {
		t.Errorf("Export = %+v", cfg.Export)
	}
	if cfg.Publish.Bucket != "images" || cfg.Publish.Region != "us-east-1" {
		t.Errorf("Publish = %+v", cfg.Publish)
	}
	if got := cfg.PollInterval(); got != 100*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 100ms", got)
	}
}

// TestLoadInvalidYAML tests that Load returns an error for invalid YAML
func TestLoadInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "invalid.yaml")

	invalidContent := `
paths:
  target_dir: "/mnt/usb"
  invalid: [unclosed bracket
`

	if err := os.WriteFile(configFile, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("Load() succeeded, want error for invalid YAML")
	}
}

// TestLoadInvalidValues tests that Load rejects out-of-range settings
func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"compression", "export:\n  compression: lz4\n", "export.compression"},
		{"checksum", "export:\n  checksum: md5\n", "export.checksum"},
		{"poll interval", "ui:\n  poll_interval: soon\n", "ui.poll_interval"},
		{"empty archiver", "tools:\n  archiver: \"\"\n", "tools.archiver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(t.TempDir(), "recoveryusb.yaml")
			if err := os.WriteFile(configFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			_, err := Load(configFile)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadNonexistentFile tests that Load returns an error for missing files
func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("Load() succeeded, want error for nonexistent file")
	}
}

// TestFindConfigFileFound tests that FindConfigFile returns the found config
func TestFindConfigFileFound(t *testing.T) {
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	tempDir := t.TempDir()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})

	configFile := filepath.Join(tempDir, "recoveryusb.yaml")
	if err := os.WriteFile(configFile, []byte("paths:\n  target_dir: \"/mnt/usb\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	found, err := FindConfigFile()
	if err != nil {
		t.Fatalf("FindConfigFile() failed: %v", err)
	}
	if found != "recoveryusb.yaml" {
		t.Errorf("FindConfigFile() = %q, want recoveryusb.yaml", found)
	}
}

func TestDerivedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UI.PollInterval = "bogus"
	if got := cfg.PollInterval(); got != 50*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 50ms fallback", got)
	}
	if got := cfg.PublishTimeout(); got != 5*time.Minute {
		t.Errorf("PublishTimeout() = %v, want 5m", got)
	}
	if got := cfg.DBPath(); filepath.Base(got) != "history.db" {
		t.Errorf("DBPath() = %q, want history.db under state dir", got)
	}
	if got := cfg.LogFilePath(); filepath.Base(got) != "recoveryusb.log" {
		t.Errorf("LogFilePath() = %q", got)
	}
	if cfg.ToolDirectory() == "" {
		t.Error("ToolDirectory() is empty")
	}
}
