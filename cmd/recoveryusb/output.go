package main

import (
	"fmt"
	"io"

	"github.com/gookit/color"

	"github.com/BadgerOps/recoveryusb/internal/engine"
)

// kindColor is the console color of an event kind.
func kindColor(k engine.Kind) color.Color {
	switch k {
	case engine.KindInit:
		return color.Blue
	case engine.KindUnpack, engine.KindExec:
		return color.Cyan
	case engine.KindModify:
		return color.Magenta
	case engine.KindSkip:
		return color.Yellow
	case engine.KindMissing, engine.KindError, engine.KindFatal:
		return color.Red
	case engine.KindStatus, engine.KindDone:
		return color.Green
	default:
		return color.Normal
	}
}

// printEvent writes one colored log line for ev.
func printEvent(w io.Writer, ev engine.Event) {
	tag := fmt.Sprintf("%-9s", "["+ev.Kind.String()+"]")
	line := kindColor(ev.Kind).Sprint(tag) + " " + ev.Subject
	if ev.Path != "" {
		line += " " + color.Gray.Sprint(ev.Path)
	}
	if ev.Result != "" {
		if ev.Failed {
			line += " " + color.Red.Sprint(ev.Result)
		} else {
			line += " " + ev.Result
		}
	}
	fmt.Fprintln(w, line)
}

// printStoredEvent prints a history event the way printEvent prints a live one.
func printStoredEvent(w io.Writer, kind, subject, path, result string, failed bool) {
	k, ok := engine.ParseKind(kind)
	if !ok {
		fmt.Fprintf(w, "[%s] %s %s %s\n", kind, subject, path, result)
		return
	}
	printEvent(w, engine.Event{Kind: k, Subject: subject, Path: path, Result: result, Failed: failed})
}
