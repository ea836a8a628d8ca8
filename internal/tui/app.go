// Package tui is the interactive front end: a form for the build inputs, a
// confirmation modal and a scrolling event log fed from the build queue.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/BadgerOps/recoveryusb/internal/config"
	"github.com/BadgerOps/recoveryusb/internal/engine"
	"github.com/BadgerOps/recoveryusb/internal/rmf"
)

const (
	pageMain    = "main"
	pageConfirm = "confirm"

	fieldManifest = "Manifest (.rmf)"
	fieldSource   = "Source dir"
	fieldPatch    = "Patch dir"
	fieldTarget   = "Target dir"
)

// App owns the tview application and the build it starts. All fields are
// touched on the UI goroutine only.
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	form    *tview.Form
	logView *tview.TextView
	footer  *tview.TextView

	builder  *engine.Builder
	logger   *slog.Logger
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  *engine.Queue
}

// New builds the UI. The form starts out with the configured default paths.
func New(cfg *config.Config, builder *engine.Builder, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		app:      tview.NewApplication(),
		builder:  builder,
		logger:   logger,
		interval: cfg.PollInterval(),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.form = tview.NewForm().
		AddInputField(fieldManifest, cfg.Paths.Manifest, 0, nil, nil).
		AddInputField(fieldSource, cfg.Paths.SourceDir, 0, nil, nil).
		AddInputField(fieldPatch, cfg.Paths.PatchDir, 0, nil, nil).
		AddInputField(fieldTarget, cfg.Paths.TargetDir, 0, nil, nil).
		AddButton("Start", a.start).
		AddButton("Quit", a.quit)
	a.form.SetBorder(true).SetTitle(" Recovery USB ")

	a.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	a.logView.SetBorder(true).SetTitle(" Build log ")

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.setFooter("Ready")

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.form, 13, 0, true).
		AddItem(a.logView, 0, 1, false).
		AddItem(a.footer, 1, 0, false)

	a.pages = tview.NewPages().AddPage(pageMain, layout, true, true)
	a.app.SetRoot(a.pages, true).SetInputCapture(a.handleKey)
	return a
}

// Run shows the UI until the operator quits or ctx is done. Quitting cancels
// the build context without waiting for the worker.
func (a *App) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		a.cancel()
		a.app.Stop()
	})
	defer stop()
	defer a.cancel()

	go a.poll()
	return a.app.Run()
}

// poll drains the build queue onto the UI goroutine at the configured
// interval.
func (a *App) poll() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.drain)
		}
	}
}

func (a *App) drain() {
	if a.queue == nil {
		return
	}
	for _, ev := range a.queue.Drain() {
		a.appendLine(formatEvent(ev))
	}
	if a.queue.Done() {
		a.queue = nil
		a.setFooter("Ready")
	}
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEsc, tcell.KeyCtrlC:
		a.quit()
		return nil
	case tcell.KeyRune:
		if event.Rune() != 'q' {
			return event
		}
		// 'q' is text while an input field has focus.
		if _, typing := a.app.GetFocus().(*tview.InputField); typing {
			return event
		}
		a.quit()
		return nil
	}
	return event
}

func (a *App) quit() {
	a.cancel()
	a.app.Stop()
}

func (a *App) request() engine.BuildRequest {
	text := func(label string) string {
		item := a.form.GetFormItemByLabel(label)
		if field, ok := item.(*tview.InputField); ok {
			return field.GetText()
		}
		return ""
	}
	return engine.BuildRequest{
		ManifestPath: text(fieldManifest),
		SourceDir:    text(fieldSource),
		OverlayDir:   text(fieldPatch),
		TargetDir:    text(fieldTarget),
	}
}

// start validates the form, loads the manifest and either asks for
// confirmation or launches the build.
func (a *App) start() {
	if a.builder.Running() || a.queue != nil {
		a.appendLine(formatEvent(engine.Event{
			Kind: engine.KindError, Subject: "Build", Result: "A build is already running", Failed: true,
		}))
		return
	}

	req := a.request()
	if err := a.builder.Validate(req); err != nil {
		a.reportError("Input", err)
		return
	}
	m, err := rmf.Load(req.ManifestPath)
	if err != nil {
		a.reportError("Manifest", err)
		return
	}

	text, ok := rmf.ConfirmationText(m)
	if !ok {
		a.launch(m, req)
		return
	}
	a.confirm(text, func(yes bool) {
		if yes {
			a.launch(m, req)
			return
		}
		a.appendLine(formatEvent(engine.Event{Kind: engine.KindStatus, Subject: "Build", Result: "Declined by operator"}))
	})
}

func (a *App) confirm(text string, done func(yes bool)) {
	modal := tview.NewModal().
		SetText("Confirm the target system\n\n" + text).
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(_ int, label string) {
			a.pages.RemovePage(pageConfirm)
			a.app.SetFocus(a.form)
			done(label == "Yes")
		})
	a.pages.AddPage(pageConfirm, modal, true, true)
	a.app.SetFocus(modal)
}

func (a *App) launch(m *rmf.Manifest, req engine.BuildRequest) {
	q, err := a.builder.Start(a.ctx, m, req)
	if err != nil {
		a.reportError("Build", err)
		return
	}
	a.queue = q
	a.logger.Info("build launched from UI", "manifest", req.ManifestPath, "target", req.TargetDir)
	a.setFooter("Building " + req.TargetDir)
}

func (a *App) reportError(subject string, err error) {
	a.logger.Warn("cannot start build", "error", err)
	a.appendLine(formatEvent(engine.Event{Kind: engine.KindError, Subject: subject, Result: err.Error(), Failed: true}))
}

func (a *App) appendLine(line string) {
	fmt.Fprintln(a.logView, line)
	a.logView.ScrollToEnd()
}

func (a *App) setFooter(status string) {
	a.footer.SetText(fmt.Sprintf("[yellow]%s[-]  |  Tab: next field  Enter: press  q/Esc: quit", tview.Escape(status)))
}
