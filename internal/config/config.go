package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Tools   ToolsConfig   `yaml:"tools"`
	Store   StoreConfig   `yaml:"store"`
	Export  ExportConfig  `yaml:"export"`
	Publish PublishConfig `yaml:"publish"`
	UI      UIConfig      `yaml:"ui"`
}

// PathsConfig holds the default build inputs. Flags and the TUI form
// override them per build.
type PathsConfig struct {
	Manifest  string `yaml:"manifest"`
	SourceDir string `yaml:"source_dir"`
	PatchDir  string `yaml:"patch_dir"`
	TargetDir string `yaml:"target_dir"`
}

// ToolsConfig names the external tools the pipeline invokes
type ToolsConfig struct {
	// Archiver is looked up on PATH.
	Archiver string `yaml:"archiver"`
	// IndexBuilder is looked up in ToolDir only.
	IndexBuilder string `yaml:"index_builder"`
	// ToolDir defaults to the directory of the running executable.
	ToolDir string `yaml:"tool_dir"`
}

// StoreConfig holds build history settings
type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

// ExportConfig holds image export settings
type ExportConfig struct {
	SplitSize   string `yaml:"split_size"`
	Compression string `yaml:"compression"`
	Checksum    string `yaml:"checksum"`
	OutputDir   string `yaml:"output_dir"`
}

// PublishConfig holds object storage settings for publishing exported images
type PublishConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Timeout         string `yaml:"timeout"`
}

// UIConfig holds interactive front end settings
type UIConfig struct {
	PollInterval string `yaml:"poll_interval"`
	LogFile      string `yaml:"log_file"`
}

var (
	validCompressions = map[string]bool{"zstd": true, "gzip": true, "xz": true}
	validChecksums    = map[string]bool{"sha256": true, "blake3": true}
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Paths: PathsConfig{
			TargetDir: "USB",
		},
		Tools: ToolsConfig{
			Archiver:     "7z",
			IndexBuilder: "aodbuild.exe",
		},
		Export: ExportConfig{
			SplitSize:   "4GB",
			Compression: "zstd",
			Checksum:    "sha256",
		},
		Publish: PublishConfig{
			Region:  "us-east-1",
			Timeout: "5m",
		},
		UI: UIConfig{
			PollInterval: "50ms",
		},
	}

	// The vendor's recovery creator keeps its downloads and patches here.
	if runtime.GOOS == "windows" {
		cfg.Paths.SourceDir = `c:\ProgramData\Lenovo\USBRecoveryCreator\Downloads`
		cfg.Paths.PatchDir = `c:\ProgramData\Lenovo\USBRecoveryCreator\Patch`
	}

	return cfg
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// Validate checks enumerated and duration settings
func (c *Config) Validate() error {
	if c.Tools.Archiver == "" {
		return fmt.Errorf("tools.archiver must not be empty")
	}
	if c.Tools.IndexBuilder == "" {
		return fmt.Errorf("tools.index_builder must not be empty")
	}
	if !validCompressions[c.Export.Compression] {
		return fmt.Errorf("export.compression %q is not one of zstd, gzip, xz", c.Export.Compression)
	}
	if !validChecksums[c.Export.Checksum] {
		return fmt.Errorf("export.checksum %q is not one of sha256, blake3", c.Export.Checksum)
	}
	if _, err := time.ParseDuration(c.UI.PollInterval); err != nil {
		return fmt.Errorf("ui.poll_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Publish.Timeout); err != nil {
		return fmt.Errorf("publish.timeout: %w", err)
	}
	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"recoveryusb.yaml",
		"/etc/recoveryusb/recoveryusb.yaml",
	}

	// Add user config path
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "recoveryusb", "recoveryusb.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// ToolDirectory returns where the index builder is looked up.
func (c *Config) ToolDirectory() string {
	if c.Tools.ToolDir != "" {
		return c.Tools.ToolDir
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// StateDir is where the history database and TUI log live by default.
func (c *Config) StateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "recoveryusb")
	}
	return filepath.Join(os.TempDir(), "recoveryusb")
}

// DBPath returns the history database path
func (c *Config) DBPath() string {
	if c.Store.DBPath != "" {
		return c.Store.DBPath
	}
	return filepath.Join(c.StateDir(), "history.db")
}

// LogFilePath returns where logs go while the TUI owns the terminal
func (c *Config) LogFilePath() string {
	if c.UI.LogFile != "" {
		return c.UI.LogFile
	}
	return filepath.Join(c.StateDir(), "recoveryusb.log")
}

// PollInterval returns the UI queue drain interval
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.UI.PollInterval)
	if err != nil || d <= 0 {
		return 50 * time.Millisecond
	}
	return d
}

// PublishTimeout returns the per-request timeout for object storage
func (c *Config) PublishTimeout() time.Duration {
	d, err := time.ParseDuration(c.Publish.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}
