// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// branch delete implements SPEC_FULL.md §4.9, grounded on
// original_source/src/cmd/branch/delete.rs: refuse to delete the current
// branch, refuse if protected, refuse if patches remain unless --force,
// deinitialize the stack, then delete the branch ref itself. This is CLI
// glue wired entirely through the Stack façade; it adds no core invariant.
package cmd

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/stack"
)

func branchCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "branch",
		Short: "Branch-scoped stack operations",
	}
	c.AddCommand(branchDeleteCommand())
	return c
}

func branchDeleteCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <branch>",
		Short: "Delete a branch and its stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			branch := args[0]
			repoPath, err := cc.Flags().GetString("repo")
			if err != nil {
				return err
			}
			repo, err := gitrepoOpen(repoPath)
			if err != nil {
				return err
			}

			current, err := repo.CurrentBranch()
			if err == nil && current == branch {
				return stack.Errorf(stack.KindProtected, "branch-delete", "refusing to delete the current branch %q", branch)
			}

			s, err := stack.FromBranch(repo, branch, stack.AllowUninitialized)
			if err != nil {
				return err
			}
			protected, err := s.IsProtected()
			if err != nil {
				return err
			}
			if protected {
				return stack.Errorf(stack.KindProtected, "branch-delete", "branch %q is protected", branch)
			}
			if !force {
				hasPatches := s.State().AllPatches().Count() > 0
				if hasPatches {
					return stack.Errorf(stack.KindNonEmpty, "branch-delete", "branch %q still has patches; use --force", branch)
				}
			}

			if err := s.Deinitialize(); err != nil {
				return err
			}
			if err := repo.DeleteRef(plumbing.NewBranchReferenceName(branch)); err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "branch-delete", err, "deleting branch %q", branch)
			}
			fmt.Fprintf(cio(cc).Out, "deleted branch %s\n", branch)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete even if patches remain")
	return cmd
}
