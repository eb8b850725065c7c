// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/stack"
)

// advanceCommand wires StackState.AdvanceHead (spec.md §4.1) into the CLI:
// the underlying base branch moved, so head is replaced while every patch
// sequence is left untouched.
func advanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <commit>",
		Short: "Advance the stack's head to follow the base branch tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			if !plumbing.IsHash(args[0]) {
				return stack.Errorf(stack.KindMetadataMalformed, "advance", "not a commit id: %q", args[0])
			}
			newHead := plumbing.NewHash(args[0])
			prevLogCommit := s.LogCommit()
			err = s.Transact(fmt.Sprintf("advance head to %s", newHead), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.AdvanceHead(newHead, prevLogCommit), nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "advanced head to %s\n", newHead)
			return nil
		},
	}
}
