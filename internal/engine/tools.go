package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// lookTool resolves name on PATH. A name containing a separator is used as
// is. The result is absolute because runTool changes the working directory.
func lookTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &ToolError{Tool: name, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrToolNotFound, err)}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &ToolError{Tool: name, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrToolNotFound, err)}
	}
	return abs, nil
}

// locateTool resolves name inside dir only, returning an absolute path.
func locateTool(dir, name string) (string, error) {
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", &ToolError{Tool: name, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrToolNotFound, err)}
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &ToolError{Tool: name, ExitCode: -1, Err: fmt.Errorf("%w in %s", ErrToolNotFound, dir)}
	}
	return path, nil
}

// runTool runs a resolved tool to completion in dir. Runs are not bound to
// a context; cancellation takes effect between steps only.
func runTool(dir, path string, args ...string) error {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	name := filepath.Base(path)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{
			Tool:       name,
			ExitCode:   exitErr.ExitCode(),
			Diagnostic: lastDiagnosticLine(stderr.String(), stdout.String()),
			Err:        err,
		}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &ToolError{Tool: name, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrToolNotFound, err)}
	}
	return &ToolError{Tool: name, ExitCode: -1, Err: err}
}

// lastDiagnosticLine returns the last non-blank line of stderr, falling back
// to stdout when stderr is empty.
func lastDiagnosticLine(stderr, stdout string) string {
	out := strings.TrimSpace(stderr)
	if out == "" {
		out = strings.TrimSpace(stdout)
	}
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// diagnostic is the operator-facing failure text for a tool error.
func diagnostic(err error) string {
	var te *ToolError
	if errors.As(err, &te) {
		if te.Diagnostic != "" {
			return te.Diagnostic
		}
		return fmt.Sprintf("exit status %d", te.ExitCode)
	}
	return err.Error()
}
