package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BadgerOps/recoveryusb/internal/recipe"
	"github.com/BadgerOps/recoveryusb/internal/safety"
)

// Well-known names inside a recovery image.
const (
	RecoveryDirName      = "RECOVERY"
	PrimaryIndexName     = "AOD.DAT"
	BackupIndexName      = "AOD.ORG"
	RebuiltIndexName     = "aodstat.dat"
	DefaultIndexBuilder  = "aodbuild.exe"
	manufacturingDirName = "MFG"
	efiDirName           = "EFI"
	maxRecipeSize        = 1 << 20
)

// PostProcessContext carries the state of one post-processing pass.
type PostProcessContext struct {
	TargetRoot  string
	OverlayRoot string // may be empty
	ToolDir     string

	RecoveryDir  string
	PrimaryIndex string
	BackupIndex  string
	RebuiltIndex string

	// AdoptedRecipe is set by the recipe substitution step.
	AdoptedRecipe string
}

// NewPostProcessContext fills in the well-known names under targetRoot.
func NewPostProcessContext(targetRoot, overlayRoot, toolDir string) *PostProcessContext {
	return &PostProcessContext{
		TargetRoot:   targetRoot,
		OverlayRoot:  overlayRoot,
		ToolDir:      toolDir,
		RecoveryDir:  filepath.Join(targetRoot, RecoveryDirName),
		PrimaryIndex: PrimaryIndexName,
		BackupIndex:  BackupIndexName,
		RebuiltIndex: RebuiltIndexName,
	}
}

func (pc *PostProcessContext) hasOverlay() bool {
	return pc.OverlayRoot != "" && isDir(pc.OverlayRoot)
}

// PostProcessor fixes up a populated target tree.
type PostProcessor struct {
	indexBuilder string
	logger       *slog.Logger
}

// NewPostProcessor creates a PostProcessor that rebuilds the index with the
// named tool, looked up in the context's ToolDir.
func NewPostProcessor(indexBuilder string, logger *slog.Logger) *PostProcessor {
	if indexBuilder == "" {
		indexBuilder = DefaultIndexBuilder
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostProcessor{indexBuilder: indexBuilder, logger: logger}
}

type postStep func(pc *PostProcessContext, yield func(Event) bool) bool

// Run returns the post-processing pass as a lazy event sequence. Each step
// is best effort: a failure is reported and the next step still runs. The
// last event is a completion STATUS unless ctx is cancelled between steps.
func (p *PostProcessor) Run(ctx context.Context, pc *PostProcessContext) iter.Seq[Event] {
	steps := []postStep{
		p.renameManufacturing,
		p.overlayEFI,
		p.substituteRecipe,
		p.rebuildIndex,
	}
	return func(yield func(Event) bool) {
		for _, step := range steps {
			if ctx.Err() != nil {
				yield(cancelledEvent())
				return
			}
			if !step(pc, yield) {
				return
			}
		}
		yield(newEvent(KindStatus, "", "", "Post-processing complete."))
	}
}

func (p *PostProcessor) fail(step string, err error) error {
	err = &PostProcessError{Step: step, Err: err}
	p.logger.Warn("post-process step failed", "error", err)
	return err
}

func (p *PostProcessor) renameManufacturing(pc *PostProcessContext, yield func(Event) bool) bool {
	name, ok := findEntry(pc.TargetRoot, manufacturingDirName, false)
	if !ok || !isDir(filepath.Join(pc.TargetRoot, name)) {
		return true
	}
	from := filepath.Join(pc.TargetRoot, manufacturingDirName)
	to := filepath.Join(pc.TargetRoot, strings.ToLower(manufacturingDirName))
	if err := os.Rename(from, to); err != nil {
		return yield(failedEvent(KindModify, "Folder MFG", "", errorResult(p.fail("rename", err))))
	}
	return yield(newEvent(KindModify, "Folder MFG", "root", "Renamed to 'mfg'"))
}

func (p *PostProcessor) overlayEFI(pc *PostProcessContext, yield func(Event) bool) bool {
	if !pc.hasOverlay() {
		return true
	}
	src := filepath.Join(pc.OverlayRoot, efiDirName)
	if !isDir(src) {
		return true
	}
	dst := filepath.Join(pc.TargetRoot, efiDirName)
	if err := os.RemoveAll(dst); err != nil {
		return yield(failedEvent(KindCopy, "EFI Folder", "", errorResult(p.fail("efi", err))))
	}
	if err := copyDir(src, dst); err != nil {
		return yield(failedEvent(KindCopy, "EFI Folder", "", errorResult(p.fail("efi", err))))
	}
	return yield(newEvent(KindCopy, "EFI Folder", "root", "Overwritten from Patch"))
}

func (p *PostProcessor) substituteRecipe(pc *PostProcessContext, yield func(Event) bool) bool {
	if !pc.hasOverlay() {
		return true
	}
	entries, err := os.ReadDir(pc.OverlayRoot)
	if err != nil {
		return yield(failedEvent(KindCopy, "CRI/IMZ", "", errorResult(p.fail("recipe", err))))
	}

	// os.ReadDir sorts by name, which fixes the adoption order.
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	for _, name := range names {
		if !recipe.IsRecipeFile(name) {
			continue
		}
		text, err := readRecipe(filepath.Join(pc.OverlayRoot, name))
		if err != nil {
			if !yield(failedEvent(KindSkip, name, "", errorResult(p.fail("recipe", err)))) {
				return false
			}
			continue
		}
		if recipe.LooksLikeForeignArchitecture(text) {
			p.logger.Info("skipping recipe for foreign architecture", "recipe", name)
			if !yield(newEvent(KindSkip, name, "", "ARM Architecture detected")) {
				return false
			}
			continue
		}
		payload, ok := recipe.FindPayload(name, names)
		if !ok {
			p.logger.Debug("recipe has no payload in overlay", "recipe", name)
			continue
		}

		if err := p.adopt(pc, name, payload); err != nil {
			return yield(failedEvent(KindCopy, "CRI/IMZ", "", errorResult(p.fail("recipe", err))))
		}
		pc.AdoptedRecipe = name
		p.logger.Info("adopted recipe from overlay", "recipe", name, "payload", payload,
			"module", recipe.Parse(text).Title())
		return yield(newEvent(KindCopy, name+" & .IMZ", RecoveryDirName, "Copied from Patch"))
	}
	return true
}

func (p *PostProcessor) adopt(pc *PostProcessContext, recipeName, payload string) error {
	if err := os.MkdirAll(pc.RecoveryDir, 0o755); err != nil {
		return err
	}
	for _, name := range []string{recipeName, payload} {
		if err := copyFile(filepath.Join(pc.OverlayRoot, name), filepath.Join(pc.RecoveryDir, name)); err != nil {
			return fmt.Errorf("copying %s: %w", name, err)
		}
	}
	return nil
}

func readRecipe(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := safety.ReadAllWithLimit(f, maxRecipeSize)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// rebuildIndex regenerates the primary index from the adopted recipe and
// splices the old header back in. The tool is located before AOD.DAT is
// renamed so a missing tool leaves the index in place, and a tool that
// cannot be started puts the original back.
func (p *PostProcessor) rebuildIndex(pc *PostProcessContext, yield func(Event) bool) bool {
	if pc.AdoptedRecipe == "" {
		return true
	}
	primary := filepath.Join(pc.RecoveryDir, pc.PrimaryIndex)
	if _, err := os.Stat(primary); err != nil {
		return true
	}

	tool, err := locateTool(pc.ToolDir, p.indexBuilder)
	if err != nil {
		p.fail("index", err)
		return yield(failedEvent(KindError, p.indexBuilder, "", "Tool missing in program directory"))
	}

	backup := filepath.Join(pc.RecoveryDir, pc.BackupIndex)
	if err := os.Rename(primary, backup); err != nil {
		return yield(failedEvent(KindError, pc.PrimaryIndex, RecoveryDirName, errorResult(p.fail("index", err))))
	}

	p.logger.Info("rebuilding index", "tool", tool, "recipe", pc.AdoptedRecipe)
	if err := runTool(pc.RecoveryDir, tool, "/F:"+pc.AdoptedRecipe, "/P:"+pc.BackupIndex); err != nil {
		p.fail("index", err)
		if errors.Is(err, ErrToolNotFound) {
			if rerr := os.Rename(backup, primary); rerr != nil {
				p.logger.Warn("restoring index failed", "error", rerr)
			}
			return yield(failedEvent(KindError, p.indexBuilder, "", "Tool missing in program directory"))
		}
		if !yield(failedEvent(KindExec, p.indexBuilder, RecoveryDirName, "Fail: "+diagnostic(err))) {
			return false
		}
		return yield(failedEvent(KindError, pc.PrimaryIndex, RecoveryDirName, "Header splice skipped: rebuild failed"))
	}
	if !yield(newEvent(KindExec, p.indexBuilder, RecoveryDirName, "Success")) {
		return false
	}

	rebuilt, ok := findEntry(pc.RecoveryDir, pc.RebuiltIndex, true)
	if !ok {
		p.fail("index", errors.New(pc.RebuiltIndex+" not produced"))
		return yield(failedEvent(KindError, pc.RebuiltIndex, "", "Not generated by aodbuild"))
	}
	if err := os.Rename(filepath.Join(pc.RecoveryDir, rebuilt), primary); err != nil {
		return yield(failedEvent(KindError, pc.RebuiltIndex, RecoveryDirName, errorResult(p.fail("index", err))))
	}
	if err := SpliceHeader(backup, primary); err != nil {
		return yield(failedEvent(KindModify, pc.PrimaryIndex, RecoveryDirName, errorResult(p.fail("splice", err))))
	}
	return yield(newEvent(KindModify, pc.PrimaryIndex, RecoveryDirName, "Header updated & Cleaned"))
}
