// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/google/patchstack/internal/gitrepo"
	"github.com/google/patchstack/internal/patchname"
)

func testRepo(t *testing.T) *gitrepo.Repository {
	t.Helper()
	repo, err := gitrepo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("gitrepo.Init: %v", err)
	}
	return repo
}

func testCommit(t *testing.T, repo *gitrepo.Repository, parents []plumbing.Hash, message string) plumbing.Hash {
	t.Helper()
	tree, err := repo.WriteTree(nil)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	who := object.Signature{Name: "test", Email: "test@example.com"}
	h, err := repo.WriteCommit(gitrepo.CommitSpec{Tree: tree, Parents: parents, Author: who, Committer: who, Message: message})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	return h
}

// TestTreeBuilderRoundTrip is P2: serialize(state) -> deserialize = state.
func TestTreeBuilderRoundTrip(t *testing.T) {
	repo := testRepo(t)
	c0 := testCommit(t, repo, nil, "root")
	c1 := testCommit(t, repo, []plumbing.Hash{c0}, "[PATCH] p1")

	s := New(c0)
	s, err := s.Push(patchname.MustParse("p1"), c1, c0, false)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	tb := NewTreeBuilder(repo)
	tree, err := tb.Build(s, nil, plumbing.ZeroHash)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := ReadState(repo, tree)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if got.Head() != s.Head() {
		t.Errorf("Head() = %v, want %v", got.Head(), s.Head())
	}
	if len(got.Applied()) != 1 || got.Applied()[0].String() != "p1" {
		t.Errorf("Applied() = %v, want [p1]", got.Applied())
	}
	d, ok := got.Descriptor(patchname.MustParse("p1"))
	if !ok || d.Commit != c1 {
		t.Errorf("Descriptor(p1) = %v, ok=%v, want commit %v", d, ok, c1)
	}
}

// TestTreeBuilderIncrementalReuse is P6: unchanged patches keep the same
// patches/<name> blob id across a second Build call.
func TestTreeBuilderIncrementalReuse(t *testing.T) {
	repo := testRepo(t)
	c0 := testCommit(t, repo, nil, "root")
	c1 := testCommit(t, repo, []plumbing.Hash{c0}, "[PATCH] p1")
	c2 := testCommit(t, repo, []plumbing.Hash{c1}, "[PATCH] p2")

	s1 := New(c0)
	s1, _ = s1.Push(patchname.MustParse("p1"), c1, c0, false)

	tb := NewTreeBuilder(repo)
	tree1, err := tb.Build(s1, nil, plumbing.ZeroHash)
	if err != nil {
		t.Fatalf("Build (1): %v", err)
	}

	s2, err := s1.Push(patchname.MustParse("p2"), c2, c1, false)
	if err != nil {
		t.Fatalf("Push p2: %v", err)
	}
	tree2, err := tb.Build(s2, s1, tree1)
	if err != nil {
		t.Fatalf("Build (2): %v", err)
	}

	t1, err := repo.ReadTree(tree1)
	if err != nil {
		t.Fatalf("ReadTree(tree1): %v", err)
	}
	t2, err := repo.ReadTree(tree2)
	if err != nil {
		t.Fatalf("ReadTree(tree2): %v", err)
	}
	patches1 := findTreeEntry(mustSubtree(t, repo, t1, "patches"), "p1")
	patches2 := findTreeEntry(mustSubtree(t, repo, t2, "patches"), "p1")
	if patches1 == nil || patches2 == nil {
		t.Fatalf("missing patches/p1 entry in one of the trees")
	}
	if patches1.Hash != patches2.Hash {
		t.Errorf("patches/p1 blob changed across rebuild: %v != %v", patches1.Hash, patches2.Hash)
	}
}

func mustSubtree(t *testing.T, repo *gitrepo.Repository, tree *object.Tree, name string) *object.Tree {
	t.Helper()
	entry := findTreeEntry(tree, name)
	if entry == nil {
		t.Fatalf("tree has no %q entry", name)
	}
	sub, err := repo.ReadTree(entry.Hash)
	if err != nil {
		t.Fatalf("ReadTree(%s): %v", name, err)
	}
	return sub
}
