// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package tempindex implements the TemporaryIndex capability (spec.md
// §4.5): a scoped swap of the CAVCS's process-global index for the
// duration of a closure, always restoring the original index afterward —
// grounded on original_source/src/index.rs's with_temp_index /
// with_temp_index_file.
package tempindex

import (
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/index"

	"github.com/google/patchstack/internal/stack"
)

// Repository is the subset of gitrepo.Repository this package needs.
type Repository interface {
	Raw() *gogit.Repository
}

// WithTempIndex installs a fresh in-memory index for the duration of f,
// then restores the repository's original index regardless of whether f
// succeeds. Nested calls stack LIFO, since each call only ever touches the
// index it itself installed and the one its caller already had in place.
func WithTempIndex(repo Repository, f func(*index.Index) error) (err error) {
	raw := repo.Raw()
	orig, err := raw.Storer.Index()
	if err != nil {
		return stack.Wrap(stack.KindObjectDbFailure, "temp-index", err, "reading current index")
	}

	temp := &index.Index{Version: 2}
	if err := raw.Storer.SetIndex(temp); err != nil {
		return stack.Wrap(stack.KindObjectDbFailure, "temp-index", err, "installing temporary index")
	}

	defer func() {
		if restoreErr := raw.Storer.SetIndex(orig); restoreErr != nil && err == nil {
			err = stack.Wrap(stack.KindObjectDbFailure, "temp-index", restoreErr, "restoring original index")
		}
	}()

	return f(temp)
}

// WithTempIndexFile is the file-backed variant: the temporary index is
// also written to a real file under the git dir, and f receives that
// file's path (for example to pass to a `git` subprocess as
// GIT_INDEX_FILE; this function sets no environment itself). The file is
// always removed afterward, even if f fails.
func WithTempIndexFile(repo Repository, gitDir string, f func(path string) error) (err error) {
	raw := repo.Raw()
	orig, err := raw.Storer.Index()
	if err != nil {
		return stack.Wrap(stack.KindObjectDbFailure, "temp-index-file", err, "reading current index")
	}

	path := filepath.Join(gitDir, "index-temp-patchstack")
	temp := &index.Index{Version: 2}
	if err := writeIndexFile(path, temp); err != nil {
		return stack.Wrap(stack.KindObjectDbFailure, "temp-index-file", err, "writing temporary index file")
	}
	if err := raw.Storer.SetIndex(temp); err != nil {
		os.Remove(path)
		return stack.Wrap(stack.KindObjectDbFailure, "temp-index-file", err, "installing temporary index")
	}

	defer func() {
		if restoreErr := raw.Storer.SetIndex(orig); restoreErr != nil && err == nil {
			err = stack.Wrap(stack.KindObjectDbFailure, "temp-index-file", restoreErr, "restoring original index")
		}
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = stack.Wrap(stack.KindObjectDbFailure, "temp-index-file", rmErr, "removing temporary index file")
		}
	}()

	return f(path)
}

func writeIndexFile(path string, idx *index.Index) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := index.NewEncoder(f)
	return enc.Encode(idx)
}
