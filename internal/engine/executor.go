package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BadgerOps/recoveryusb/internal/passkey"
	"github.com/BadgerOps/recoveryusb/internal/rmf"
	"github.com/BadgerOps/recoveryusb/internal/safety"
)

// DefaultArchiver is the archive tool looked up on PATH.
const DefaultArchiver = "7z"

// Executor applies a manifest's actions to a target directory.
type Executor struct {
	archiver string
	logger   *slog.Logger
}

// NewExecutor creates an Executor that unpacks with the named archive tool.
func NewExecutor(archiver string, logger *slog.Logger) *Executor {
	if archiver == "" {
		archiver = DefaultArchiver
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{archiver: archiver, logger: logger}
}

// Execute returns the build as a lazy event sequence. Nothing touches the
// filesystem until the sequence is ranged over, and ranging it again runs
// every action again. Creates run before transfers, each in manifest order.
//
// ctx is checked before every action; once it is done the sequence yields a
// cancellation STATUS and ends.
func (x *Executor) Execute(ctx context.Context, m *rmf.Manifest, sourceRoot, targetRoot string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if err := os.MkdirAll(targetRoot, 0o755); err != nil {
			x.logger.Error("cannot create target root", "target", targetRoot, "error", err)
			yield(failedEvent(KindFatal, "Target Dir", targetRoot, errorResult(err)))
			return
		}
		if !yield(newEvent(KindInit, "Target Dir", targetRoot, "Created/Verified")) {
			return
		}

		for _, c := range m.Creates {
			if ctx.Err() != nil {
				yield(cancelledEvent())
				return
			}
			if !yield(x.create(targetRoot, c)) {
				return
			}
		}

		for _, t := range m.Transfers {
			if ctx.Err() != nil {
				yield(cancelledEvent())
				return
			}
			if !yield(x.transfer(sourceRoot, targetRoot, t)) {
				return
			}
		}
	}
}

func (x *Executor) create(targetRoot string, c rmf.CreateAction) Event {
	if err := writeCreate(targetRoot, c); err != nil {
		x.logger.Warn("create failed", "error", err)
		return failedEvent(KindCreate, c.Name, c.CopyPath, errorResult(err))
	}

	result := "Success"
	if c.IsValuesFile() {
		result = "Content Verified (Written)"
	}
	x.logger.Debug("created file", "name", c.Name, "copypath", c.CopyPath)
	return newEvent(KindCreate, c.Name, c.CopyPath, result)
}

func writeCreate(targetRoot string, c rmf.CreateAction) error {
	dest, err := safety.JoinUnder(targetRoot, c.CopyPath, c.Name)
	if err != nil {
		return &ActionError{Kind: KindCreate, Subject: c.Name, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &ActionError{Kind: KindCreate, Subject: c.Name, Err: err}
	}
	if err := os.WriteFile(dest, []byte(c.Content), 0o644); err != nil {
		return &ActionError{Kind: KindCreate, Subject: c.Name, Err: err}
	}
	return nil
}

func (x *Executor) transfer(sourceRoot, targetRoot string, t rmf.TransferAction) Event {
	kind := KindCopy
	if t.Mode == rmf.ModeUnpack {
		kind = KindUnpack
	}

	src, err := safety.JoinUnder(sourceRoot, t.Source)
	if err != nil {
		return failedEvent(kind, t.Source, t.CopyPath, errorResult(err))
	}
	if info, err := os.Stat(src); err != nil || info.IsDir() {
		x.logger.Warn("transfer source not found", "source", src)
		return failedEvent(KindMissing, t.Source, t.CopyPath, "Source not found")
	}

	if t.Mode == rmf.ModeUnknown {
		x.logger.Warn("unknown copy mode", "source", t.Source, "copy", t.RawMode)
		return failedEvent(KindSkip, t.Source, t.CopyPath, fmt.Sprintf("Unknown copy mode %q", t.RawMode))
	}

	destDir, err := safety.JoinUnder(targetRoot, t.CopyPath)
	if err != nil {
		return failedEvent(kind, t.Source, t.CopyPath, errorResult(err))
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return failedEvent(kind, t.Source, t.CopyPath, errorResult(err))
	}

	if t.Mode == rmf.ModeCopy {
		return x.copy(src, targetRoot, t)
	}
	return x.unpack(src, destDir, t)
}

func (x *Executor) copy(src, targetRoot string, t rmf.TransferAction) Event {
	dest, err := safety.JoinUnder(targetRoot, t.CopyPath, t.TargetName())
	if err == nil {
		err = copyFile(src, dest)
	}
	if err != nil {
		err = &ActionError{Kind: KindCopy, Subject: t.Source, Err: err}
		x.logger.Warn("copy failed", "error", err)
		return failedEvent(KindCopy, t.Source, t.CopyPath, errorResult(err))
	}
	x.logger.Debug("copied file", "source", src, "dest", dest)
	return newEvent(KindCopy, t.Source, t.CopyPath, "Success")
}

func (x *Executor) unpack(src, destDir string, t rmf.TransferAction) Event {
	password, err := passkey.Transform(t.Key)
	if err != nil {
		x.logger.Warn("password transform failed", "source", t.Source, "error", err)
		return failedEvent(KindUnpack, t.Source, t.CopyPath, "Password error: "+err.Error())
	}

	tool, err := lookTool(x.archiver)
	if err != nil {
		x.logger.Warn("archive tool not found", "tool", x.archiver)
		return failedEvent(KindUnpack, t.Source, t.CopyPath, "Tool not found: "+x.archiver)
	}

	args := []string{"x", src, "-o" + destDir, "-y"}
	if password != "" {
		args = append(args, "-p"+password)
	}

	x.logger.Info("unpacking archive", "source", src, "dest", destDir, "encrypted", password != "")
	if err := runTool(destDir, tool, args...); err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return failedEvent(KindUnpack, t.Source, t.CopyPath, "Tool not found: "+x.archiver)
		}
		x.logger.Warn("unpack failed", "source", src, "error", err)
		return failedEvent(KindUnpack, t.Source, t.CopyPath, fmt.Sprintf("Fail (%s)", diagnostic(err)))
	}
	return newEvent(KindUnpack, t.Source, t.CopyPath, "Success")
}
