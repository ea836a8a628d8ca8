package rmf

import "testing"

func TestConfirmationText(t *testing.T) {
	m := &Manifest{Creates: []CreateAction{
		{Name: "OTHER.TXT", Content: "x: y"},
		{Name: "VALUES.TXT", Content: "0) Name:\tUnit Test\n1) CD#:\t1 of 1"},
	}}

	got, ok := ConfirmationText(m)
	if !ok {
		t.Fatal("expected confirmation text")
	}
	want := "0) Name :\tUnit Test\n1) CD#  :\t1 of 1"
	if got != want {
		t.Errorf("ConfirmationText() = %q, want %q", got, want)
	}
}

func TestConfirmationTextAbsent(t *testing.T) {
	if _, ok := ConfirmationText(&Manifest{Creates: []CreateAction{{Name: "README.TXT", Content: "a"}}}); ok {
		t.Error("expected no confirmation text")
	}
	if _, ok := ConfirmationText(nil); ok {
		t.Error("expected no confirmation text for nil manifest")
	}
}

func TestConfirmationTextCaseInsensitiveName(t *testing.T) {
	m := &Manifest{Creates: []CreateAction{{Name: "values.txt", Content: "Model: X1"}}}
	got, ok := ConfirmationText(m)
	if !ok {
		t.Fatal("expected confirmation text")
	}
	if got != "Model   :\tX1" {
		t.Errorf("ConfirmationText() = %q", got)
	}
}

func TestFormatValues(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no colon kept", "  plain line  ", "plain line"},
		{"blank lines dropped", "a: 1\n\n   \nb: 2", "a       :\t1\nb       :\t2"},
		{"split at first colon", "Time: 12:30", "Time    :\t12:30"},
		{"long label not truncated", "Description: text", "Description:\ttext"},
		{"crlf line endings", "A: 1\r\nB: 2\r\n", "A       :\t1\nB       :\t2"},
		{"mixed", "Header\nKey:\tValue", "Header\nKey     :\tValue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValues(tt.in); got != tt.want {
				t.Errorf("formatValues(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
