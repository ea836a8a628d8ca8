package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BadgerOps/recoveryusb/internal/config"
	"github.com/BadgerOps/recoveryusb/internal/rmf"
	"github.com/BadgerOps/recoveryusb/internal/store"
)

// Build run statuses as stored in history.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFatal     = "fatal"
)

// BuildRequest names the inputs of one build.
type BuildRequest struct {
	ManifestPath string
	SourceDir    string
	OverlayDir   string // optional
	TargetDir    string
	Label        string // defaults to the manifest base name
}

func (r BuildRequest) label() string {
	if r.Label != "" {
		return r.Label
	}
	base := filepath.Base(r.ManifestPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Builder runs recovery builds on a worker goroutine, one at a time, and
// exports built images.
type Builder struct {
	config *config.Config
	store  *store.Store
	logger *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	lastRun *store.BuildRun
}

// NewBuilder creates a Builder. st may be nil, in which case builds are not
// recorded.
func NewBuilder(cfg *config.Config, st *store.Store, logger *slog.Logger) *Builder {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		config: cfg,
		store:  st,
		logger: logger,
	}
}

// Validate checks a request's paths before anything is loaded or written.
// An overlay directory that does not exist is treated as absent.
func (b *Builder) Validate(req BuildRequest) error {
	if strings.TrimSpace(req.ManifestPath) == "" {
		return &ValidationError{Field: "manifest", Reason: "is required"}
	}
	if info, err := os.Stat(req.ManifestPath); err != nil || info.IsDir() {
		return &ValidationError{Field: "manifest", Value: req.ManifestPath, Reason: "file not found"}
	}
	if strings.TrimSpace(req.SourceDir) == "" {
		return &ValidationError{Field: "source", Reason: "is required"}
	}
	if !isDir(req.SourceDir) {
		return &ValidationError{Field: "source", Value: req.SourceDir, Reason: "directory not found"}
	}
	if strings.TrimSpace(req.TargetDir) == "" {
		return &ValidationError{Field: "target", Reason: "is required"}
	}
	if req.OverlayDir != "" && !isDir(req.OverlayDir) {
		b.logger.Warn("patch directory not found, continuing without it", "patch", req.OverlayDir)
	}
	return nil
}

// Running reports whether a build is in flight.
func (b *Builder) Running() bool {
	return b.running.Load()
}

// Wait blocks until the current worker, if any, has exited.
func (b *Builder) Wait() {
	b.wg.Wait()
}

// LastRun returns the history record of the most recent build started by
// this Builder, or nil.
func (b *Builder) LastRun() *store.BuildRun {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastRun == nil {
		return nil
	}
	run := *b.lastRun
	return &run
}

// Start launches a build of m on a new worker and returns the queue its
// events arrive on. The queue always ends with a DONE event. Cancelling ctx
// stops the build at the next action or step boundary.
func (b *Builder) Start(ctx context.Context, m *rmf.Manifest, req BuildRequest) (*Queue, error) {
	if m == nil {
		return nil, fmt.Errorf("no manifest loaded")
	}
	if !b.running.CompareAndSwap(false, true) {
		return nil, ErrBuildInProgress
	}

	run := &store.BuildRun{
		Label:        req.label(),
		ManifestPath: req.ManifestPath,
		SourceDir:    req.SourceDir,
		OverlayDir:   req.OverlayDir,
		TargetDir:    req.TargetDir,
		StartTime:    time.Now(),
		Status:       StatusRunning,
	}
	if b.store != nil {
		if err := b.store.CreateBuildRun(run); err != nil {
			b.logger.Warn("failed to record build run, continuing without history", "error", err)
			run.ID = 0
		}
	}
	snapshot := *run
	b.mu.Lock()
	b.lastRun = &snapshot
	b.mu.Unlock()

	queue := NewQueue()
	b.wg.Add(1)
	go b.work(ctx, m, req, run, queue)
	return queue, nil
}

func (b *Builder) work(ctx context.Context, m *rmf.Manifest, req BuildRequest, run *store.BuildRun, queue *Queue) {
	rec := &recorder{store: b.store, run: run, logger: b.logger}
	publish := func(ev Event) {
		queue.Publish(ev)
		rec.add(ev)
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("build worker panicked", "panic", r)
			publish(failedEvent(KindFatal, "Main Loop", "", fmt.Sprint(r)))
			run.Status = StatusFatal
			run.ErrorMessage = fmt.Sprint(r)
		}
		rec.add(newEvent(KindDone, "", "", "Finished"))
		b.finish(run, rec.failures)
		b.running.Store(false)
		queue.Close()
		b.wg.Done()
	}()

	b.logger.Info("build started", "label", run.Label, "target", req.TargetDir)

	executor := NewExecutor(b.config.Tools.Archiver, b.logger)
	status := StatusCompleted
	for ev := range executor.Execute(ctx, m, req.SourceDir, req.TargetDir) {
		publish(ev)
		switch {
		case ev.Kind == KindFatal:
			status = StatusFatal
			run.ErrorMessage = ev.Result
		case ev == cancelledEvent():
			status = StatusCancelled
		}
	}

	if status == StatusCompleted {
		pp := NewPostProcessor(b.config.Tools.IndexBuilder, b.logger)
		pc := NewPostProcessContext(req.TargetDir, req.OverlayDir, b.config.ToolDirectory())
		for ev := range pp.Run(ctx, pc) {
			publish(ev)
			if ev == cancelledEvent() {
				status = StatusCancelled
			}
		}
	}

	if status == StatusCompleted {
		publish(newEvent(KindStatus, "", "", "Recovery Creation Completed!"))
	}
	run.Status = status
}

func (b *Builder) finish(run *store.BuildRun, failures int) {
	run.EndTime = time.Now()
	run.Failures = failures
	if run.Status == StatusRunning {
		run.Status = StatusCompleted
	}

	b.logger.Info("build finished",
		"label", run.Label,
		"status", run.Status,
		"failures", failures,
		"duration", run.EndTime.Sub(run.StartTime).Truncate(time.Millisecond),
	)

	if b.store != nil && run.ID != 0 {
		if err := b.store.UpdateBuildRun(run); err != nil {
			b.logger.Warn("failed to finalize build run", "run", run.ID, "error", err)
		}
	}

	final := *run
	b.mu.Lock()
	b.lastRun = &final
	b.mu.Unlock()
}

// recorder appends a build's events to history in emission order.
type recorder struct {
	store    *store.Store
	run      *store.BuildRun
	logger   *slog.Logger
	seq      int
	failures int
}

func (r *recorder) add(ev Event) {
	if ev.Failed {
		r.failures++
	}
	r.seq++
	if r.store == nil || r.run.ID == 0 {
		return
	}
	be := &store.BuildEvent{
		RunID:   r.run.ID,
		Seq:     r.seq,
		Kind:    ev.Kind.String(),
		Subject: ev.Subject,
		Path:    ev.Path,
		Result:  ev.Result,
		Failed:  ev.Failed,
	}
	if err := r.store.AddBuildEvent(be); err != nil {
		r.logger.Warn("failed to record build event", "run", r.run.ID, "seq", r.seq, "error", err)
	}
}
