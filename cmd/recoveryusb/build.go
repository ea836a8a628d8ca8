package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BadgerOps/recoveryusb/internal/engine"
	"github.com/BadgerOps/recoveryusb/internal/rmf"
	"github.com/BadgerOps/recoveryusb/internal/tui"
)

var (
	buildManifest string
	buildSource   string
	buildPatch    string
	buildTarget   string
	buildLabel    string
	buildYes      bool
	buildNoTUI    bool
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a recovery USB tree from a manifest",
		Long: `Build a recovery USB tree. The manifest's embedded files are written, its
referenced files copied or unpacked from the source directory, and the
result post-processed with the patch directory.

On a terminal the interactive UI opens with the paths prefilled from the
flags and config. With --no-tui, or when stdin is not a terminal, the build
runs in the console and asks for confirmation of the target system on stdin
unless --yes is given.`,
		Example: `  recoveryusb build
  recoveryusb build --manifest T480.rmf --source ./downloads --patch ./patch --target /mnt/usb
  recoveryusb build --no-tui --yes --manifest T480.rmf --target /mnt/usb`,
		RunE: buildRun,
	}

	cmd.Flags().StringVar(&buildManifest, "manifest", "", "recovery manifest (.rmf) file")
	cmd.Flags().StringVar(&buildSource, "source", "", "directory holding the downloaded recovery files")
	cmd.Flags().StringVar(&buildPatch, "patch", "", "optional patch directory (EFI overlay, recipes)")
	cmd.Flags().StringVar(&buildTarget, "target", "", "target directory or mounted USB stick")
	cmd.Flags().StringVar(&buildLabel, "label", "", "history label (defaults to the manifest name)")
	cmd.Flags().BoolVarP(&buildYes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&buildNoTUI, "no-tui", false, "run in the console without the interactive UI")

	return cmd
}

func buildRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil || globalBuilder == nil {
		return fmt.Errorf("builder not initialized")
	}

	// Flags override the configured defaults
	if buildManifest != "" {
		globalCfg.Paths.Manifest = buildManifest
	}
	if buildSource != "" {
		globalCfg.Paths.SourceDir = buildSource
	}
	if buildPatch != "" {
		globalCfg.Paths.PatchDir = buildPatch
	}
	if buildTarget != "" {
		globalCfg.Paths.TargetDir = buildTarget
	}

	if !buildNoTUI && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		return buildInteractive(cmd.Context())
	}

	req := engine.BuildRequest{
		ManifestPath: globalCfg.Paths.Manifest,
		SourceDir:    globalCfg.Paths.SourceDir,
		OverlayDir:   globalCfg.Paths.PatchDir,
		TargetDir:    globalCfg.Paths.TargetDir,
		Label:        buildLabel,
	}
	return buildPlain(cmd.Context(), req, os.Stdin, os.Stdout, buildYes)
}

func buildInteractive(ctx context.Context) error {
	restore, err := redirectLogging(globalCfg.LogFilePath())
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer restore()

	// The builder logs through the file logger while the UI owns the screen.
	globalBuilder = engine.NewBuilder(globalCfg, globalStore, logger)
	app := tui.New(globalCfg, globalBuilder, logger)
	return app.Run(ctx)
}

// buildPlain runs one build in the console: confirm, start, and print events
// as they arrive until DONE.
func buildPlain(ctx context.Context, req engine.BuildRequest, in io.Reader, out io.Writer, yes bool) error {
	if err := globalBuilder.Validate(req); err != nil {
		return err
	}
	m, err := rmf.Load(req.ManifestPath)
	if err != nil {
		return err
	}

	if text, ok := rmf.ConfirmationText(m); ok && !yes {
		fmt.Fprintln(out, "Target system:")
		fmt.Fprintln(out, text)
		fmt.Fprintln(out)
		if !askForConfirmation(in, out, "Build recovery media for this system?") {
			fmt.Fprintln(out, "Build cancelled.")
			return nil
		}
	}

	q, err := globalBuilder.Start(ctx, m, req)
	if err != nil {
		return err
	}

	actions := len(m.Creates) + len(m.Transfers)
	bar := progressbar.NewOptions(actions,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("actions"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	done := 0
	interval := globalCfg.PollInterval()
	for !q.Done() {
		wait := q.Wait()
		for _, ev := range q.Drain() {
			_ = bar.Clear()
			printEvent(out, ev)
			if isActionEvent(ev) && done < actions {
				done++
				_ = bar.Add(1)
			}
		}
		select {
		case <-wait:
		case <-time.After(interval):
		}
	}
	_ = bar.Finish()
	globalBuilder.Wait()

	run := globalBuilder.LastRun()
	if run == nil {
		return nil
	}
	switch run.Status {
	case engine.StatusFatal:
		return fmt.Errorf("build failed: %s", run.ErrorMessage)
	case engine.StatusCancelled:
		fmt.Fprintln(out, "Build cancelled.")
		return nil
	}
	if run.Failures > 0 {
		fmt.Fprintf(out, "Build finished with %d failed step(s). See: recoveryusb history --run %d\n", run.Failures, run.ID)
	}
	return nil
}

// isActionEvent reports whether ev is the outcome of one manifest action.
func isActionEvent(ev engine.Event) bool {
	switch ev.Kind {
	case engine.KindCreate, engine.KindCopy, engine.KindUnpack, engine.KindMissing, engine.KindSkip:
		return true
	}
	return false
}
