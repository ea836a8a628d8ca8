package engine

import (
	"fmt"
	"os"
	"strings"
)

// indexHeaderLines is how many leading lines of an index carry its header.
const indexHeaderLines = 4

// SpliceHeader rewrites primaryPath so that its first four lines are the
// first four lines of backupPath, then drops every blank line. Line
// terminators are kept as found.
func SpliceHeader(backupPath, primaryPath string) error {
	backup, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("reading backup index: %w", err)
	}
	header := splitLines(string(backup))
	if len(header) < indexHeaderLines {
		return fmt.Errorf("backup index %s has %d lines, need %d", backupPath, len(header), indexHeaderLines)
	}
	header = header[:indexHeaderLines]

	primary, err := os.ReadFile(primaryPath)
	if err != nil {
		return fmt.Errorf("reading rebuilt index: %w", err)
	}
	body := splitLines(string(primary))
	if len(body) > indexHeaderLines {
		body = body[indexHeaderLines:]
	} else {
		body = nil
	}

	var kept []string
	for _, line := range append(header, body...) {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}

	var b strings.Builder
	for i, line := range kept {
		b.WriteString(line)
		if i < len(kept)-1 && !strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
	}

	if err := os.WriteFile(primaryPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing spliced index: %w", err)
	}
	return nil
}

// splitLines splits s after each newline. A trailing fragment without a
// newline is its own line; an empty string has no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
