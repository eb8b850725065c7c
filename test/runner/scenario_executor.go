// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"text/template"

	"github.com/google/go-cmp/cmp"

	"github.com/google/patchstack/internal/cmd"
	"github.com/google/patchstack/internal/stack"
)

// ScenarioExecutor runs shell-style scenario scripts against a throwaway
// git repository, dispatching `patchstack ...` steps to the CLI in-process
// and everything else to /bin/bash.
type ScenarioExecutor struct {
	tempDir    string
	execDir    string
	t          *testing.T
	lastOutput string
}

// NewScenarioExecutor creates a new scenario executor rooted at a fresh
// temp directory.
func NewScenarioExecutor(t *testing.T) (*ScenarioExecutor, error) {
	tempDir, err := os.MkdirTemp("", "patchstack-scenario-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &ScenarioExecutor{
		tempDir: tempDir,
		execDir: tempDir,
		t:       t,
	}, nil
}

// Cleanup removes the executor's temp directory.
func (e *ScenarioExecutor) Cleanup() {
	if e.tempDir != "" {
		os.RemoveAll(e.tempDir)
	}
}

// RunTest executes a complete scenario test.
func (e *ScenarioExecutor) RunTest(test *ScenarioTest) error {
	if !e.isCommandAvailable("git") {
		e.t.Skip("git command not available")
		return nil
	}
	if err := e.setupFiles(test.Setup); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	for i, step := range test.Script {
		if !step.IsCommand {
			e.t.Logf("# %s", step.Content)
			continue
		}
		e.t.Logf("$ %s", step.Content)
		e.lastOutput = ""
		fields := strings.Fields(step.Content)
		var cmdErr error
		switch {
		case len(fields) == 0:
		case fields[0] == "patchstack":
			cmdErr = e.executePatchstackCommand(step.Content)
		case fields[0] == "cd":
			e.execDir = filepath.Join(e.execDir, fields[1])
		default:
			cmdErr = e.executeShellCommand(step.Content)
		}
		if cmdErr != nil {
			return fmt.Errorf("command execution failed for step %d: %w", i+1, cmdErr)
		}

		if err := e.verifyOutput(step.ExpectedOutput); err != nil {
			return fmt.Errorf("output verification failed for step %d (`%s`):\n%w", i+1, step.Content, err)
		}
	}

	return nil
}

func (e *ScenarioExecutor) isCommandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (e *ScenarioExecutor) setupFiles(setup map[string]string) error {
	for filePath, content := range setup {
		fullPath := filepath.Join(e.tempDir, filePath)
		dir := filepath.Dir(fullPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", fullPath, err)
		}
	}
	return nil
}

// executePatchstackCommand runs a `patchstack ...` step against internal/cmd
// in-process, so scenario tests exercise the real CLI wiring without
// needing a built binary on PATH.
func (e *ScenarioExecutor) executePatchstackCommand(command string) error {
	var output bytes.Buffer
	defer func() { e.lastOutput = output.String() }()

	// Expand the step's arguments through bash first, so $(...)
	// substitutions and quoting in scenario scripts behave as they would
	// for a real binary invoked from the shell.
	rest := strings.TrimPrefix(strings.TrimSpace(command), "patchstack")
	expand := exec.Command("/bin/bash", "-c", "for a in "+rest+`; do printf '%s\0' "$a"; done`)
	expand.Dir = e.execDir
	expanded, err := expand.Output()
	if err != nil {
		return fmt.Errorf("expanding arguments of %q: %w", command, err)
	}
	var args []string
	if s := strings.TrimSuffix(string(expanded), "\x00"); s != "" {
		args = strings.Split(s, "\x00")
	}
	hasRepoFlag := false
	for _, a := range args {
		if a == "--repo" || strings.HasPrefix(a, "--repo=") {
			hasRepoFlag = true
			break
		}
	}
	if !hasRepoFlag {
		args = append([]string{"--repo", e.execDir}, args...)
	}

	root := cmd.Root()
	root.SetOut(&output)
	root.SetErr(&output)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		// Root silences cobra's own error printing (internal/cmd.Root), so
		// mirror cmd.Execute's reportError formatting here to surface
		// failures the same way the real binary would.
		var serr *stack.Error
		if errors.As(err, &serr) {
			fmt.Fprintf(&output, "%s: %v\n", serr.Kind, err)
		} else {
			fmt.Fprintf(&output, "usage: %v\n", err)
		}
	}
	return nil
}

// executeShellCommand runs an external shell command (typically `git`) used
// to build up the fixture repository's commit graph.
func (e *ScenarioExecutor) executeShellCommand(command string) error {
	var output bytes.Buffer
	defer func() { e.lastOutput = output.String() }()

	c := exec.Command("/bin/bash", "-c", command)
	c.Dir = e.execDir
	c.Stdout = &output
	c.Stderr = &output
	c.Run() // scenarios may expect non-zero exit; error is surfaced via output
	return nil
}

// verifyOutput treats expectedOutput as a Go template and compares its
// rendered output with the last command's actual output.
func (e *ScenarioExecutor) verifyOutput(expectedTemplate string) error {
	tmpl, err := template.New("output").Parse(expectedTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse output template: %w", err)
	}

	templateData := struct{ TempDir string }{TempDir: e.tempDir}

	var expectedBuf bytes.Buffer
	if err := tmpl.Execute(&expectedBuf, templateData); err != nil {
		return fmt.Errorf("failed to execute output template: %w", err)
	}

	expected := strings.TrimSpace(expectedBuf.String())
	actual := strings.TrimSpace(e.lastOutput)

	if actual != expected {
		diff := cmp.Diff(expected, actual)
		return fmt.Errorf("output mismatch (-expected, +actual):\n%s", diff)
	}

	return nil
}
