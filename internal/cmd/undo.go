// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// undo/redo implement SPEC_FULL.md §4.10: refs/stacks/<branch>'s reflog is
// the undo history. Each undo/redo jumps directly to its target in a
// single reference update, appending exactly one reflog entry ("undo" /
// "redo") regardless of --count, so that the command itself never leaves
// behind intermediate entries a later invocation would have to see
// through. redo only proceeds when the most recent count reflog entries
// are a contiguous run of "undo" entries it can reverse.
package cmd

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/stack"
)

const undoMessage = "undo"
const redoMessage = "redo"

func undoCommand() *cobra.Command {
	var count int
	c := &cobra.Command{
		Use:   "undo",
		Short: "Move the stack ref back to a previous state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			if count < 1 {
				return stack.Errorf(stack.KindMetadataMalformed, "undo", "--count must be at least 1, got %d", count)
			}
			ref := refNameFor(s)
			who, err := repo.DefaultSignature()
			if err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "undo", err, "resolving committer identity")
			}
			log, err := repo.Reflog(ref)
			if err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "undo", err, "reading reflog for %s", ref)
			}
			if count > len(log) {
				return stack.Errorf(stack.KindMetadataNotFound, "undo", "only %d step(s) of history available, cannot undo %d", len(log), count)
			}
			target := log[len(log)-count]
			if err := repo.UpdateRef(ref, target.Old, who, undoMessage); err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "undo", err, "updating %s", ref)
			}
			fmt.Fprintf(cio(cmd).Out, "undid %d step(s)\n", count)
			return nil
		},
	}
	c.Flags().IntVar(&count, "count", 1, "number of steps to undo")
	return c
}

func redoCommand() *cobra.Command {
	var count int
	c := &cobra.Command{
		Use:   "redo",
		Short: "Reverse a previous undo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			if count < 1 {
				return stack.Errorf(stack.KindMetadataMalformed, "redo", "--count must be at least 1, got %d", count)
			}
			ref := refNameFor(s)
			who, err := repo.DefaultSignature()
			if err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "redo", err, "resolving committer identity")
			}
			log, err := repo.Reflog(ref)
			if err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "redo", err, "reading reflog for %s", ref)
			}
			if count > len(log) {
				return stack.Errorf(stack.KindMetadataNotFound, "redo", "nothing to redo")
			}
			for i := 0; i < count; i++ {
				if log[len(log)-1-i].Message != undoMessage {
					return stack.Errorf(stack.KindMetadataNotFound, "redo", "nothing to redo")
				}
			}
			target := log[len(log)-count]
			if err := repo.UpdateRef(ref, target.Old, who, redoMessage); err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "redo", err, "updating %s", ref)
			}
			fmt.Fprintf(cio(cmd).Out, "redid %d step(s)\n", count)
			return nil
		},
	}
	c.Flags().IntVar(&count, "count", 1, "number of steps to redo")
	return c
}

func refNameFor(s *stack.Stack) plumbing.ReferenceName {
	return plumbing.ReferenceName("refs/stacks/" + s.Branch())
}
