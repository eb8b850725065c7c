// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package cmd implements the patchstack CLI surface (spec.md §6): one
// cobra subcommand per StackState transition, plus branch delete and
// reflog-backed undo/redo (SPEC_FULL.md §4.9–4.10).
package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// IO bundles the writers a command's RunE should use, letting tests
// substitute buffers instead of the process's real stdout/stderr.
type IO struct {
	Out io.Writer
	Err io.Writer
}

func defaultIO() IO {
	return IO{Out: os.Stdout, Err: os.Stderr}
}

// Root builds the top-level patchstack command tree.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:           "patchstack",
		Short:         "Stacked-patch management on top of a git commit graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("branch", "", "branch to operate on (defaults to the current branch)")
	root.PersistentFlags().String("repo", ".", "path to the repository working tree")

	root.AddCommand(
		newCommand(),
		pushCommand(),
		popCommand(),
		advanceCommand(),
		renameCommand(),
		refreshCommand(),
		hideCommand(),
		unhideCommand(),
		deleteCommand(),
		reorderCommand(),
		branchCommand(),
		undoCommand(),
		redoCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code described in
// spec.md §6 (0 success, 1 generic failure, 2 usage error, 3
// protected/not-permitted).
func Execute() int {
	root := Root()
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	return reportError(defaultIO(), err)
}
