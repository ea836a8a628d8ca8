package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBuildInProgress is returned by Builder.Start while a build runs.
	ErrBuildInProgress = errors.New("a build is already in progress")

	// ErrToolNotFound marks a ToolError whose binary could not be located.
	ErrToolNotFound = errors.New("tool not found")
)

// ValidationError reports a missing or unusable build input.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// ActionError is a failed create, copy or unpack step.
type ActionError struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Subject, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ToolError is a failed external tool invocation.
type ToolError struct {
	Tool       string
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *ToolError) Error() string {
	if errors.Is(e.Err, ErrToolNotFound) {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	if e.Diagnostic != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, e.Diagnostic)
	}
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
}

func (e *ToolError) Unwrap() error { return e.Err }

// PostProcessError is a failed post-processing step.
type PostProcessError struct {
	Step string
	Err  error
}

func (e *PostProcessError) Error() string {
	return fmt.Sprintf("post-process %s: %v", e.Step, e.Err)
}

func (e *PostProcessError) Unwrap() error { return e.Err }

// errorResult renders err as the Result text of a failed event.
func errorResult(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		err = ae.Err
	}
	var pe *PostProcessError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return "Error: " + strings.TrimSpace(err.Error())
}
