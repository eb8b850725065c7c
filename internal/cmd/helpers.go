// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/gitrepo"
	"github.com/google/patchstack/internal/stack"
)

// exitUsage/exitGeneric/exitProtected are the non-zero codes from spec.md
// §6: 1 generic failure, 2 usage error, 3 protected/not-permitted.
const (
	exitSuccess   = 0
	exitGeneric   = 1
	exitUsage     = 2
	exitProtected = 3
)

// reportError prints err's kind and message (no stack trace, per spec.md
// §7) and returns the exit code its kind maps to. Errors that never passed
// through the stack package — cobra's own arg-count and flag-parsing
// failures, chiefly — are usage errors (exit 2): the core never had a
// chance to classify them, and the only thing wrong is how the command was
// invoked.
func reportError(cio IO, err error) int {
	var serr *stack.Error
	if !errors.As(err, &serr) {
		fmt.Fprintf(cio.Err, "usage: %v\n", err)
		return exitUsage
	}
	fmt.Fprintf(cio.Err, "%s: %v\n", serr.Kind, err)
	if serr.Kind == stack.KindProtected {
		return exitProtected
	}
	return exitGeneric
}

// openStack resolves --repo/--branch against cmd's flags and loads the
// bound Stack with the given initialization policy.
func openStack(cmd *cobra.Command, policy stack.InitializationPolicy) (*gitrepo.Repository, *stack.Stack, error) {
	repoPath, err := cmd.Flags().GetString("repo")
	if err != nil {
		return nil, nil, err
	}
	branch, err := cmd.Flags().GetString("branch")
	if err != nil {
		return nil, nil, err
	}

	repo, err := gitrepoOpen(repoPath)
	if err != nil {
		return nil, nil, err
	}
	if branch == "" {
		branch, err = repo.CurrentBranch()
		if err != nil {
			return nil, nil, stack.Wrap(stack.KindObjectDbFailure, "open", err, "resolving current branch")
		}
	}

	s, err := stack.FromBranch(repo, branch, policy)
	if err != nil {
		return nil, nil, err
	}
	return repo, s, nil
}

func cio(cmd *cobra.Command) IO {
	return IO{Out: cmd.OutOrStdout(), Err: cmd.OutOrStderr()}
}

func gitrepoOpen(path string) (*gitrepo.Repository, error) {
	repo, err := gitrepo.Open(path)
	if err != nil {
		return nil, stack.Wrap(stack.KindObjectDbFailure, "open", err, "opening repository at %s", path)
	}
	return repo, nil
}
