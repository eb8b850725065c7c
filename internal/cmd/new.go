// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// new implements SPEC_FULL.md §4.7: create a new, initially empty patch on
// top of the stack through the same edit-buffer flow original_source/src/
// cmd/new.rs drives — install a TemporaryIndex, render the description,
// hand it to the configured editor, append any requested trailers, then
// commit (reusing the current top's tree) and push the result.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"

	"github.com/google/patchstack/internal/editor"
	"github.com/google/patchstack/internal/gitrepo"
	"github.com/google/patchstack/internal/patchedit"
	"github.com/google/patchstack/internal/patchname"
	"github.com/google/patchstack/internal/stack"
	"github.com/google/patchstack/internal/tempindex"
	"github.com/google/patchstack/internal/trailers"
)

func newCommand() *cobra.Command {
	var signoff bool
	c := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new, initially empty patch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, s, err := openStack(cmd, stack.AutoInitialize)
			if err != nil {
				return err
			}
			name, err := patchname.Parse(args[0])
			if err != nil {
				return err
			}
			if _, ok := s.State().Descriptor(name); ok {
				return stack.Errorf(stack.KindNameConflict, "new", "patch %q already exists", name)
			}

			parent := s.State().Top()
			parentCommit, err := repo.ReadCommit(parent)
			if err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "new", err, "reading parent commit %s", parent)
			}

			who, err := repo.DefaultSignature()
			if err != nil {
				return stack.Wrap(stack.KindObjectDbFailure, "new", err, "resolving author identity")
			}

			desc := patchedit.Description{
				Patch:  name.String(),
				Author: who.Name + " <" + who.Email + ">",
				Date:   who.When,
			}

			var commit plumbing.Hash
			err = tempindex.WithTempIndex(repo, func(*index.Index) error {
				edited, err := editDescription(repo, desc)
				if err != nil {
					return err
				}
				if strings.TrimSpace(edited.Message) == "" {
					return stack.Errorf(stack.KindMetadataMalformed, "new", "aborting %s: empty patch message", name)
				}

				message, err := trailers.GitFormatter{}.AppendTrailers(cmd.Context(), edited.Message, signoffTrailers(signoff, who))
				if err != nil {
					return stack.Wrap(stack.KindEditorFailed, "new", err, "appending trailers")
				}

				newCommit, err := repo.WriteCommit(gitrepo.CommitSpec{
					Tree:      parentCommit.TreeHash,
					Parents:   []plumbing.Hash{parent},
					Author:    who,
					Committer: who,
					Message:   message,
				})
				if err != nil {
					return stack.Wrap(stack.KindObjectDbFailure, "new", err, "writing commit")
				}
				commit = newCommit
				return nil
			})
			if err != nil {
				return err
			}

			err = s.Transact(fmt.Sprintf("new %s", name), func(cur *stack.StackState) (*stack.StackState, error) {
				return cur.Push(name, commit, parent, false)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cio(cmd).Out, "new %s\n", name)
			return nil
		},
	}
	c.Flags().BoolVar(&signoff, "signoff", false, "append a Signed-off-by trailer to the patch message")
	return c
}

// editDescription writes d's rendered buffer to a file under the git dir,
// spawns the configured editor over it, and parses the result back, all
// while repo's index has been swapped out by the caller's TemporaryIndex
// scope so the editor sees a clean, patch-scoped staging area.
func editDescription(repo *gitrepo.Repository, d patchedit.Description) (patchedit.Description, error) {
	path := filepath.Join(repo.GitDir(), "patchstack-edit-"+d.Patch)
	if err := os.WriteFile(path, []byte(patchedit.Render(d)), 0o644); err != nil {
		return patchedit.Description{}, errors.WrapIff(err, "writing edit buffer %s", path)
	}
	edited, err := (editor.Shell{}).Edit(path, repo)
	if err != nil {
		return patchedit.Description{}, err
	}
	return patchedit.Parse(string(edited), d)
}

func signoffTrailers(signoff bool, who object.Signature) []trailers.Trailer {
	if !signoff {
		return nil
	}
	return []trailers.Trailer{{Token: "Signed-off-by", Value: who.Name + " <" + who.Email + ">"}}
}
