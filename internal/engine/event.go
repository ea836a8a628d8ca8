package engine

import (
	"fmt"
	"strings"
)

// Kind classifies a progress event. The set is closed; front ends switch on
// it exhaustively.
type Kind int

const (
	KindInit Kind = iota
	KindCreate
	KindCopy
	KindUnpack
	KindModify
	KindSkip
	KindMissing
	KindError
	KindExec
	KindStatus
	KindFatal
	KindDone
)

var kindNames = [...]string{
	KindInit:    "INIT",
	KindCreate:  "CREATE",
	KindCopy:    "COPY",
	KindUnpack:  "UNPACK",
	KindModify:  "MODIFY",
	KindSkip:    "SKIP",
	KindMissing: "MISSING",
	KindError:   "ERROR",
	KindExec:    "EXEC",
	KindStatus:  "STATUS",
	KindFatal:   "FATAL",
	KindDone:    "DONE",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String, used when reading stored history.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), true
		}
	}
	return 0, false
}

// Event is one entry in the build log. Kind, Subject, Path and Result are
// what operators read; Failed marks events that report a caught failure.
type Event struct {
	Kind    Kind
	Subject string
	Path    string
	Result  string
	Failed  bool
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s %s %s", e.Kind, e.Subject, e.Path, e.Result)
}

func newEvent(kind Kind, subject, path, result string) Event {
	return Event{Kind: kind, Subject: subject, Path: path, Result: result}
}

func failedEvent(kind Kind, subject, path, result string) Event {
	return Event{Kind: kind, Subject: subject, Path: path, Result: result, Failed: true}
}

func cancelledEvent() Event {
	return newEvent(KindStatus, "Build", "", "Cancelled by operator")
}
