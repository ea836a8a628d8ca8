// Package recipe reads recovery recipe files (.CRI): small key=value text
// descriptors that each accompany one payload archive.
package recipe

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Extension is the recipe file extension, matched case-insensitively.
const Extension = ".cri"

// PayloadExtensions are tried, in order, for a recipe's payload archive.
var PayloadExtensions = []string{".imz"}

// Recipe holds the fields of a recipe file the build cares about.
type Recipe struct {
	ModuleName  string
	ModuleThis  string
	Description string
	ImageFile   string
	Values      map[string]string
}

// Title is the best available human readable name for the module.
func (r Recipe) Title() string {
	switch {
	case r.ModuleThis != "":
		return r.ModuleThis
	case r.ModuleName != "":
		return r.ModuleName
	default:
		return r.Description
	}
}

var kvPattern = regexp.MustCompile(`(?m)^\s*([A-Za-z0-9_]+)\s*=\s*(.*?)\s*$`)

// Parse extracts key=value pairs. Later duplicates win. Lines that are not
// key=value (section headers, comments) are ignored.
func Parse(text string) Recipe {
	values := make(map[string]string)
	for _, m := range kvPattern.FindAllStringSubmatch(text, -1) {
		values[m[1]] = strings.TrimSpace(m[2])
	}

	image := firstNonEmpty(values, "ImageFile", "IMZ", "Target", "FileName", "Payload")
	image = strings.Trim(strings.TrimSpace(image), `"'`)

	return Recipe{
		ModuleName:  values["ModuleName"],
		ModuleThis:  values["ModuleThis"],
		Description: values["Description"],
		ImageFile:   image,
		Values:      values,
	}
}

func firstNonEmpty(values map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := values[k]; v != "" {
			return v
		}
	}
	return ""
}

// IsRecipeFile reports whether name has the recipe extension.
func IsRecipeFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Extension)
}

// FindPayload returns the entry in names that shares recipeName's base name
// and has a payload extension, comparing case-insensitively.
func FindPayload(recipeName string, names []string) (string, bool) {
	base := strings.TrimSuffix(recipeName, filepath.Ext(recipeName))
	for _, ext := range PayloadExtensions {
		want := base + ext
		for _, n := range names {
			if strings.EqualFold(n, want) {
				return n, true
			}
		}
	}
	return "", false
}
