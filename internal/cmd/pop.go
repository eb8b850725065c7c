// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/stack"
)

func popCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pop",
		Short: "Move the top applied patch to the head of unapplied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStack(cmd, stack.RequireInitialized)
			if err != nil {
				return err
			}
			var popped string
			err = s.Transact("pop", func(cur *stack.StackState) (*stack.StackState, error) {
				next, name, err := cur.Pop()
				if err != nil {
					return nil, err
				}
				popped = name.String()
				return next, nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "popped %s\n", popped)
			return nil
		},
	}
}
