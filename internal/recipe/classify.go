package recipe

import "strings"

// LooksLikeForeignArchitecture is a text heuristic for recipes built for ARM
// machines: the upper-cased text mentions ARM together with an OS or
// PLATFORM marker. It matches substrings, so it can misfire on unrelated
// words (e.g. "WARM"), and it never inspects the payload.
func LooksLikeForeignArchitecture(text string) bool {
	upper := strings.ToUpper(text)
	if !strings.Contains(upper, "ARM") {
		return false
	}
	return strings.Contains(upper, "OS") || strings.Contains(upper, "PLATFORM")
}
