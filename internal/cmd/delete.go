// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/patchname"
	"github.com/google/patchstack/internal/stack"
)

func deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a patch (its commit remains in the object database until unreachable)",
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
			err = s.Transact(fmt.Sprintf("delete %s", name), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Delete(name)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "deleted %s\n", name)
			return nil
		},
	}
}
