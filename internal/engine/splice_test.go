package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSpliceHeader(t *testing.T) {
	tests := []struct {
		name    string
		backup  string
		primary string
		want    string
	}{
		{
			name:    "replaces header and drops blanks",
			backup:  "H1\nH2\nH3\nH4\nold\n",
			primary: "n1\nn2\nn3\nn4\na\n\n \nb\n",
			want:    "H1\nH2\nH3\nH4\na\nb\n",
		},
		{
			name:    "blank header line dropped",
			backup:  "H1\n\nH3\nH4\n",
			primary: "n1\nn2\nn3\nn4\na\n",
			want:    "H1\nH3\nH4\na\n",
		},
		{
			name:    "short primary keeps header only",
			backup:  "H1\nH2\nH3\nH4\n",
			primary: "n1\n",
			want:    "H1\nH2\nH3\nH4\n",
		},
		{
			name:    "crlf kept",
			backup:  "H1\r\nH2\r\nH3\r\nH4\r\n",
			primary: "n1\r\nn2\r\nn3\r\nn4\r\na\r\n\r\n",
			want:    "H1\r\nH2\r\nH3\r\nH4\r\na\r\n",
		},
		{
			name:    "unterminated last line",
			backup:  "H1\nH2\nH3\nH4",
			primary: "n1\nn2\nn3\nn4\na",
			want:    "H1\nH2\nH3\nH4\na",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			backup := filepath.Join(dir, BackupIndexName)
			primary := filepath.Join(dir, PrimaryIndexName)
			writeFile(t, backup, tt.backup)
			writeFile(t, primary, tt.primary)

			if err := SpliceHeader(backup, primary); err != nil {
				t.Fatalf("SpliceHeader() failed: %v", err)
			}
			got, err := os.ReadFile(primary)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpliceHeaderShortBackup(t *testing.T) {
	dir := t.TempDir()
	backup := filepath.Join(dir, BackupIndexName)
	primary := filepath.Join(dir, PrimaryIndexName)
	writeFile(t, backup, "H1\nH2\n")
	writeFile(t, primary, "n1\nn2\nn3\nn4\na\n")

	if err := SpliceHeader(backup, primary); err == nil {
		t.Fatal("SpliceHeader() succeeded with a two-line backup")
	}
	got, _ := os.ReadFile(primary)
	if string(got) != "n1\nn2\nn3\nn4\na\n" {
		t.Errorf("primary modified on error: %q", got)
	}
}

func TestSpliceHeaderMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := SpliceHeader(filepath.Join(dir, "nope"), filepath.Join(dir, "nada")); err == nil {
		t.Error("SpliceHeader() succeeded without files")
	}
}
