package tui

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/BadgerOps/recoveryusb/internal/engine"
)

var kindColors = map[engine.Kind]string{
	engine.KindInit:    "blue",
	engine.KindCreate:  "white",
	engine.KindCopy:    "white",
	engine.KindUnpack:  "aqua",
	engine.KindModify:  "fuchsia",
	engine.KindSkip:    "yellow",
	engine.KindMissing: "red",
	engine.KindError:   "red",
	engine.KindExec:    "aqua",
	engine.KindStatus:  "green",
	engine.KindFatal:   "red",
	engine.KindDone:    "green",
}

// formatEvent renders ev as one log line with tview color tags.
func formatEvent(ev engine.Event) string {
	color, ok := kindColors[ev.Kind]
	if !ok {
		color = "white"
	}
	resultColor := "-"
	if ev.Failed {
		resultColor = "red"
	}
	tag := fmt.Sprintf("%-9s", "["+ev.Kind.String()+"]")
	line := fmt.Sprintf("[%s]%s[-] %s", color, tview.Escape(tag), tview.Escape(ev.Subject))
	if ev.Path != "" {
		line += " [gray]" + tview.Escape(ev.Path) + "[-]"
	}
	if ev.Result != "" {
		line += fmt.Sprintf(" [%s]%s[-]", resultColor, tview.Escape(ev.Result))
	}
	return line
}
