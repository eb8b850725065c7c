// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tempindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/format/index"

	"github.com/google/patchstack/internal/gitrepo"
)

func testRepo(t *testing.T) *gitrepo.Repository {
	t.Helper()
	repo, err := gitrepo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("gitrepo.Init: %v", err)
	}
	return repo
}

func seedIndex(t *testing.T, repo *gitrepo.Repository) {
	t.Helper()
	idx, err := repo.Raw().Storer.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	idx.Entries = append(idx.Entries, &index.Entry{Name: "sentinel"})
	if err := repo.Raw().Storer.SetIndex(idx); err != nil {
		t.Fatalf("SetIndex(seed): %v", err)
	}
}

func assertSentinelRestored(t *testing.T, repo *gitrepo.Repository) {
	t.Helper()
	restored, err := repo.Raw().Storer.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(restored.Entries) != 1 || restored.Entries[0].Name != "sentinel" {
		t.Errorf("index not restored: entries = %+v", restored.Entries)
	}
}

// TestWithTempIndexRestoresOnError proves the original index comes back
// when f fails, per spec.md §4.5.
func TestWithTempIndexRestoresOnError(t *testing.T) {
	repo := testRepo(t)
	seedIndex(t, repo)

	sentinel := errors.New("boom")
	err := WithTempIndex(repo, func(idx *index.Index) error {
		if len(idx.Entries) != 0 {
			t.Errorf("temp index not empty inside f: %+v", idx.Entries)
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("WithTempIndex error = %v, want %v", err, sentinel)
	}
	assertSentinelRestored(t, repo)
}

// TestWithTempIndexRestoresOnPanic proves the original index comes back
// even when f panics instead of returning an error, matching the
// RAII/scopeguard guarantee original_source/src/index.rs relies on.
func TestWithTempIndexRestoresOnPanic(t *testing.T) {
	repo := testRepo(t)
	seedIndex(t, repo)

	func() {
		defer func() { _ = recover() }()
		_ = WithTempIndex(repo, func(*index.Index) error {
			panic("boom")
		})
	}()

	assertSentinelRestored(t, repo)
}

// TestWithTempIndexFileRestoresOnError proves both the original index and
// the absence of the temp file are restored when f fails.
func TestWithTempIndexFileRestoresOnError(t *testing.T) {
	repo := testRepo(t)
	seedIndex(t, repo)
	gitDir := repo.GitDir()

	sentinel := errors.New("boom")
	err := WithTempIndexFile(repo, gitDir, func(path string) error {
		if _, statErr := os.Stat(path); statErr != nil {
			t.Errorf("temp index file missing inside f: %v", statErr)
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("WithTempIndexFile error = %v, want %v", err, sentinel)
	}
	assertSentinelRestored(t, repo)

	if _, statErr := os.Stat(filepath.Join(gitDir, "index-temp-patchstack")); !os.IsNotExist(statErr) {
		t.Errorf("temp index file still present after failure: err = %v", statErr)
	}
}

// TestWithTempIndexFileRestoresOnPanic is the panic-safety counterpart: the
// temp file removal and index restoration must happen during unwind, not
// only on the straight-line success path.
func TestWithTempIndexFileRestoresOnPanic(t *testing.T) {
	repo := testRepo(t)
	seedIndex(t, repo)
	gitDir := repo.GitDir()

	func() {
		defer func() { _ = recover() }()
		_ = WithTempIndexFile(repo, gitDir, func(path string) error {
			panic("boom")
		})
	}()

	assertSentinelRestored(t, repo)
	if _, statErr := os.Stat(filepath.Join(gitDir, "index-temp-patchstack")); !os.IsNotExist(statErr) {
		t.Errorf("temp index file still present after panic: err = %v", statErr)
	}
}
