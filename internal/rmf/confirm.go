package rmf

import (
	"fmt"
	"strings"
	"unicode"
)

// ConfirmationText returns the VALUES.TXT content reformatted for display,
// or false when the manifest has no such file.
func ConfirmationText(m *Manifest) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, c := range m.Creates {
		if c.IsValuesFile() {
			return formatValues(c.Content), true
		}
	}
	return "", false
}

// formatValues pads each "label: value" line to an 8 character label.
// Lines without a colon are kept as they are.
func formatValues(content string) string {
	content = strings.ReplaceAll(trimContent(content), "\t", " ")

	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			out = append(out, line)
			continue
		}
		out = append(out, fmt.Sprintf("%-8s:\t%s", strings.TrimSpace(label), strings.TrimSpace(value)))
	}
	return strings.Join(out, "\n")
}

func trimContent(s string) string {
	return strings.TrimFunc(s, unicode.IsSpace)
}
