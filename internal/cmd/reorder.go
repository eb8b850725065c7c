// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/patchname"
	"github.com/google/patchstack/internal/stack"
)

// reorderCommand takes name[=commit] positional args: bare names reuse
// their current commit, name=commit pairs supply a rewritten commit for
// patches whose position required a rebase onto a new parent. Producing
// those rebased commits is rebase machinery outside this core's scope
// (spec.md §1); the command only ever rewires descriptors.
func reorderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <name[=commit]>...",
		Short: "Replace the applied sequence wholesale",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			newOrder := make([]patchname.Name, len(args))
			newCommits := map[patchname.Name]plumbing.Hash{}
			for i, arg := range args {
				nameStr, commitStr, hasCommit := strings.Cut(arg, "=")
				name, err := patchname.Parse(nameStr)
				if err != nil {
					return err
				}
				newOrder[i] = name
				if hasCommit {
					if !plumbing.IsHash(commitStr) {
						return stack.Errorf(stack.KindMetadataMalformed, "reorder", "not a commit id: %q", commitStr)
					}
					newCommits[name] = plumbing.NewHash(commitStr)
				}
			}
			err = s.Transact("reorder", func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Reorder(newOrder, newCommits)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cio(cmd).Out, "reordered")
			return nil
		},
	}
}
