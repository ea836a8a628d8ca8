package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BadgerOps/recoveryusb/internal/config"
	"github.com/BadgerOps/recoveryusb/internal/engine"
	"github.com/BadgerOps/recoveryusb/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath   string
	dbPath    string
	logLevel  string
	logFormat string
	quiet     bool
	globalCfg *config.Config
	logger    *slog.Logger

	// Global components
	globalStore   *store.Store
	globalBuilder *engine.Builder
)

// initializeComponents opens the history store and creates the builder
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	path := globalCfg.DBPath()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	st, err := store.New(path, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	globalStore = st

	globalBuilder = engine.NewBuilder(globalCfg, globalStore, logger)

	logger.Debug("components initialized", "db", path)
	return nil
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
		"config":  true,
		"show":    true,
		"init":    true,
		"inspect": true,
	}
	return skipInitCmds[cmdName]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
		globalStore = nil
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recoveryusb",
		Short: "Build bootable recovery USB images from recovery manifests",
		Long: `recoveryusb builds a bootable recovery USB tree from a recovery manifest
(.rmf), the downloaded recovery files it references and an optional patch
directory. Built images can be exported to split archives, imported onto
another stick and published to S3-compatible storage. Every build is kept
in a local history database.`,
		Example: `  recoveryusb build --manifest T480.rmf --source ./downloads --target /mnt/usb
  recoveryusb build --no-tui --yes --manifest T480.rmf --target /mnt/usb
  recoveryusb inspect --manifest T480.rmf
  recoveryusb history --limit 5
  recoveryusb export --from /mnt/usb --to /srv/images/T480
  recoveryusb publish --from /srv/images/T480`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logging
			setupLogging(os.Stderr)

			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			// Load config
			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Override with command-line flags if provided
			if dbPath != "" {
				globalCfg.Store.DBPath = dbPath
			}

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath, "db", globalCfg.DBPath())
			}

			if !shouldSkipComponentInit(cmd.Name()) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "override build history database path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	cmd.AddCommand(
		newBuildCmd(),
		newInspectCmd(),
		newHistoryCmd(),
		newReportCmd(),
		newExportCmd(),
		newImportCmd(),
		newPublishCmd(),
		newConfigCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags, writing to w
func setupLogging(w io.Writer) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if quiet && level < slog.LevelError {
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// redirectLogging sends all further log output to the file at path. The
// terminal belongs to the TUI while it runs.
func redirectLogging(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	setupLogging(f)
	return func() {
		setupLogging(os.Stderr)
		_ = f.Close()
	}, nil
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":    true,
		"version": true,
	}
	return skipConfigCmds[cmdName]
}
