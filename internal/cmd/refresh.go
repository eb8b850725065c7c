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

func refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <name> <commit>",
		Short: "Replace the commit realizing an already-applied patch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			name, err := patchname.Parse(args[0])
			if err != nil {
				return err
			}
			if !plumbing.IsHash(args[1]) {
				return stack.Errorf(stack.KindMetadataMalformed, "refresh", "not a commit id: %q", args[1])
			}
			commit := plumbing.NewHash(args[1])
			err = s.Transact(fmt.Sprintf("refresh %s", name), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Refresh(name, commit)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "refreshed %s\n", name)
			return nil
		},
	}
}
