// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/patchname"
	"github.com/google/patchstack/internal/stack"
)

func renameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <from> <to>",
		Short: "Rename a patch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			from, err := patchname.Parse(args[0])
			if err != nil {
				return err
			}
			to, err := patchname.Parse(args[1])
			if err != nil {
				return err
			}
			err = s.Transact(fmt.Sprintf("rename %s to %s", from, to), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Rename(from, to)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "renamed %s to %s\n", from, to)
			return nil
		},
	}
}
