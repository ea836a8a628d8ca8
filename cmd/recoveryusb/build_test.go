package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAskForConfirmation(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"\n", true},
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"no\n", false},
		{"maybe\nn\n", false},
		{"maybe\ny\n", true},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := askForConfirmation(strings.NewReader(tt.input), &out, "Continue?")
		if got != tt.want {
			t.Errorf("askForConfirmation(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Continue? [Y/n]: ") {
			t.Errorf("prompt missing for %q: %q", tt.input, out.String())
		}
	}
}

func TestBuildPlainConfirmed(t *testing.T) {
	_, st := setupGlobals(t)
	req := buildInputs(t)

	var out bytes.Buffer
	if err := buildPlain(context.Background(), req, strings.NewReader("y\n"), &out, false); err != nil {
		t.Fatalf("buildPlain() failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Target system:",
		"Unit Test",
		"[CREATE]",
		"[COPY]",
		"Tool not found: 7z",
		"Recovery Creation Completed!",
		"[DONE]",
		"failed step(s)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	data, err := os.ReadFile(filepath.Join(req.TargetDir, "RECOVERY", "a.bin"))
	if err != nil || string(data) != "payload-a" {
		t.Errorf("a.bin = %q, %v", data, err)
	}

	runs, err := st.ListBuildRuns("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Label != "T480" || runs[0].Failures != 1 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestBuildPlainDeclined(t *testing.T) {
	_, st := setupGlobals(t)
	req := buildInputs(t)

	var out bytes.Buffer
	if err := buildPlain(context.Background(), req, strings.NewReader("n\n"), &out, false); err != nil {
		t.Fatalf("buildPlain() failed: %v", err)
	}
	if !strings.Contains(out.String(), "Build cancelled.") {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(req.TargetDir); !os.IsNotExist(err) {
		t.Error("target created after declining")
	}
	if runs, _ := st.ListBuildRuns("", 0); len(runs) != 0 {
		t.Errorf("declined build recorded: %+v", runs)
	}
}

func TestBuildPlainYesSkipsPrompt(t *testing.T) {
	setupGlobals(t)
	req := buildInputs(t)

	var out bytes.Buffer
	if err := buildPlain(context.Background(), req, strings.NewReader(""), &out, true); err != nil {
		t.Fatalf("buildPlain() failed: %v", err)
	}
	if strings.Contains(out.String(), "[Y/n]") {
		t.Error("prompted despite --yes")
	}
	if !strings.Contains(out.String(), "[DONE]") {
		t.Errorf("build did not finish:\n%s", out.String())
	}
}

func TestBuildPlainInvalidRequest(t *testing.T) {
	setupGlobals(t)
	req := buildInputs(t)
	req.SourceDir = filepath.Join(t.TempDir(), "missing")

	var out bytes.Buffer
	err := buildPlain(context.Background(), req, strings.NewReader(""), &out, true)
	if err == nil || !strings.Contains(err.Error(), "source") {
		t.Errorf("buildPlain() = %v, want source validation error", err)
	}
}

func TestBuildPlainFatal(t *testing.T) {
	setupGlobals(t)
	req := buildInputs(t)
	blocker := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocker, "x")
	req.TargetDir = filepath.Join(blocker, "usb")

	var out bytes.Buffer
	err := buildPlain(context.Background(), req, strings.NewReader(""), &out, true)
	if err == nil || !strings.Contains(err.Error(), "build failed") {
		t.Errorf("buildPlain() = %v, want build failed", err)
	}
	if !strings.Contains(out.String(), "[FATAL]") {
		t.Errorf("output missing FATAL:\n%s", out.String())
	}
}
