package recipe

import "testing"

func TestParse(t *testing.T) {
	text := `[Module]
ModuleName = WIN11_DRV
ModuleThis=Intel Thunderbolt Driver
Description =  Thunderbolt controller driver  
ImageFile = "TBT_DRV.IMZ"
; comment line
Size=12345
`
	r := Parse(text)

	if r.ModuleName != "WIN11_DRV" {
		t.Errorf("ModuleName = %q", r.ModuleName)
	}
	if r.ModuleThis != "Intel Thunderbolt Driver" {
		t.Errorf("ModuleThis = %q", r.ModuleThis)
	}
	if r.Description != "Thunderbolt controller driver" {
		t.Errorf("Description = %q", r.Description)
	}
	if r.ImageFile != "TBT_DRV.IMZ" {
		t.Errorf("ImageFile = %q", r.ImageFile)
	}
	if r.Values["Size"] != "12345" {
		t.Errorf("Values[Size] = %q", r.Values["Size"])
	}
	if r.Title() != "Intel Thunderbolt Driver" {
		t.Errorf("Title() = %q", r.Title())
	}
}

func TestParseImageFileFallbackKeys(t *testing.T) {
	r := Parse("IMZ=a.imz\nTarget=b.imz\n")
	if r.ImageFile != "a.imz" {
		t.Errorf("ImageFile = %q, want a.imz", r.ImageFile)
	}
	r = Parse("Payload='c.7z'\n")
	if r.ImageFile != "c.7z" {
		t.Errorf("ImageFile = %q, want c.7z", r.ImageFile)
	}
}

func TestTitleFallback(t *testing.T) {
	if got := (Recipe{ModuleName: "M"}).Title(); got != "M" {
		t.Errorf("Title() = %q, want M", got)
	}
	if got := (Recipe{Description: "D"}).Title(); got != "D" {
		t.Errorf("Title() = %q, want D", got)
	}
}

func TestIsRecipeFile(t *testing.T) {
	tests := map[string]bool{
		"DRV.CRI":  true,
		"drv.cri":  true,
		"drv.Cri":  true,
		"drv.imz":  false,
		"cri":      false,
		"DRV.CRIX": false,
	}
	for name, want := range tests {
		if got := IsRecipeFile(name); got != want {
			t.Errorf("IsRecipeFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFindPayload(t *testing.T) {
	names := []string{"A.CRI", "A.IMZ", "b.cri", "B.imz", "C.CRI", "C.7z"}

	tests := []struct {
		recipe string
		want   string
		found  bool
	}{
		{"A.CRI", "A.IMZ", true},
		{"b.cri", "B.imz", true},
		{"C.CRI", "", false},
		{"D.CRI", "", false},
	}
	for _, tt := range tests {
		got, ok := FindPayload(tt.recipe, names)
		if ok != tt.found || got != tt.want {
			t.Errorf("FindPayload(%q) = (%q, %v), want (%q, %v)", tt.recipe, got, ok, tt.want, tt.found)
		}
	}
}

func TestLooksLikeForeignArchitecture(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"arm with os", "Architecture=ARM64\nOS=Win11", true},
		{"arm with platform", "platform = arm64", true},
		{"lowercase arm and os", "arm build for windows os", true},
		{"arm alone", "ARM", false},
		{"x64 with os", "Architecture=x64\nOS=Win11", false},
		{"empty", "", false},
		// Substring heuristic: WARM + HOST counts.
		{"substring false positive", "WARM HOST", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeForeignArchitecture(tt.text); got != tt.want {
				t.Errorf("LooksLikeForeignArchitecture(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
