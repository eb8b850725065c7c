// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/patchname"
	"github.com/google/patchstack/internal/stack"
)

func hideCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hide <name>",
		Short: "Hide an unapplied patch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			name, err := patchname.Parse(args[0])
			if err != nil {
				return err
			}
			err = s.Transact(fmt.Sprintf("hide %s", name), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Hide(name)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "hid %s\n", name)
			return nil
		},
	}
}

func unhideCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unhide <name>",
		Short: "Move a hidden patch back to unapplied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			name, err := patchname.Parse(args[0])
			if err != nil {
				return err
			}
			err = s.Transact(fmt.Sprintf("unhide %s", name), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Unhide(name)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "unhid %s\n", name)
			return nil
		},
	}
}
