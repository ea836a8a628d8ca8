// Package rmf reads recovery manifest (RMF) documents: the XML recipe that
// lists the files a recovery USB is built from.
package rmf

import (
	"path"
	"strings"
)

// ValuesFileName is the create-action whose content is shown to the
// operator for confirmation before a build starts.
const ValuesFileName = "VALUES.TXT"

// TransferMode selects how a transfer action materializes its source.
type TransferMode string

const (
	ModeCopy    TransferMode = "copy"
	ModeUnpack  TransferMode = "unpack"
	ModeUnknown TransferMode = "unknown"
)

// Manifest is a parsed recovery manifest. Action order is execution order.
type Manifest struct {
	Path      string
	Creates   []CreateAction
	Transfers []TransferAction
}

// CreateAction writes embedded text content to a file in the target tree.
type CreateAction struct {
	Name     string
	CopyPath string
	Content  string
}

// IsValuesFile reports whether this action is the confirmation file.
func (c CreateAction) IsValuesFile() bool {
	return strings.EqualFold(c.Name, ValuesFileName)
}

// TransferAction copies or unpacks a file from the recovery source tree.
type TransferAction struct {
	Source   string
	Name     string
	CopyPath string
	Mode     TransferMode
	// RawMode is the copy attribute as written, kept for diagnostics.
	RawMode string
	// Key is the unpack password seed; ignored for copies.
	Key string
}

// TargetName is the file name a copy is written under.
func (t TransferAction) TargetName() string {
	if t.Name != "" {
		return t.Name
	}
	return path.Base(strings.ReplaceAll(t.Source, `\`, "/"))
}

func parseMode(v string) TransferMode {
	switch strings.TrimSpace(v) {
	case "1":
		return ModeCopy
	case "0":
		return ModeUnpack
	default:
		return ModeUnknown
	}
}
