// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/patchname"
	"github.com/google/patchstack/internal/stack"
)

func pushCommand() *cobra.Command {
	var rebaseParent bool
	c := &cobra.Command{
		Use:   "push <name> <commit>",
		Short: "Add a new applied patch realized by an existing commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, s, err := openStack(cmd, stack.AutoInitialize)
			if err != nil {
				return err
			}
			name, err := patchname.Parse(args[0])
			if err != nil {
				return err
			}
			if !plumbing.IsHash(args[1]) {
				return stack.Errorf(stack.KindMetadataMalformed, "push", "not a commit id: %q", args[1])
			}
			commit := plumbing.NewHash(args[1])
			c, err := repo.ReadCommit(commit)
			if err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "push", err, "reading commit %s", commit)
			}
			if c.NumParents() == 0 {
				return stack.Errorf(stack.KindParentMismatch, "push", "commit %s has no parent", commit)
			}

			err = s.Transact(fmt.Sprintf("push %s", name), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Push(name, commit, c.ParentHashes[0], rebaseParent)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "pushed %s\n", name)
			return nil
		},
	}
	c.Flags().BoolVar(&rebaseParent, "rebased", false, "skip the parent-matches-top check (commit was freshly rebased onto top)")
	return c
}
