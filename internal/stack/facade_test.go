// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/google/patchstack/internal/patchname"
)

// TestFromBranchSeed is end-to-end scenario 1 (spec.md §8): AutoInitialize
// on a branch with no stack ref seeds an empty StackState pointed at the
// branch tip, and persists it under refs/stacks/<branch>.
func TestFromBranchSeed(t *testing.T) {
	repo := testRepo(t)
	c0 := testCommit(t, repo, nil, "root")
	who := testSignature()
	if err := repo.UpdateRef(plumbing.NewBranchReferenceName("main"), c0, who, "init"); err != nil {
		t.Fatalf("UpdateRef(main): %v", err)
	}

	s, err := FromBranch(repo, "main", AutoInitialize)
	if err != nil {
		t.Fatalf("FromBranch: %v", err)
	}
	if s.State().Head() != c0 {
		t.Errorf("Head() = %v, want %v", s.State().Head(), c0)
	}
	if s.State().AllPatches().Count() != 0 {
		t.Errorf("seeded state has patches, want none")
	}

	logHash, ok, err := repo.ResolveRef(plumbing.ReferenceName("refs/stacks/main"))
	if err != nil || !ok {
		t.Fatalf("refs/stacks/main not written: ok=%v err=%v", ok, err)
	}
	tree, err := logTree(repo, logHash)
	if err != nil {
		t.Fatalf("logTree: %v", err)
	}
	reloaded, err := ReadState(repo, tree)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if reloaded.Head() != c0 {
		t.Errorf("reloaded Head() = %v, want %v", reloaded.Head(), c0)
	}
	if _, hasPrev := reloaded.Prev(); hasPrev {
		t.Errorf("seed state has a prev log commit, want none")
	}
}

// TestFromBranchRequireInitialized is the negative half of scenario 1: a
// policy that forbids absence must fail, not seed.
func TestFromBranchRequireInitialized(t *testing.T) {
	repo := testRepo(t)
	c0 := testCommit(t, repo, nil, "root")
	who := testSignature()
	if err := repo.UpdateRef(plumbing.NewBranchReferenceName("main"), c0, who, "init"); err != nil {
		t.Fatalf("UpdateRef(main): %v", err)
	}

	if _, err := FromBranch(repo, "main", RequireInitialized); KindOf(err) != KindNotInitialized {
		t.Errorf("FromBranch(RequireInitialized) on absent stack: got %v, want NotInitialized", err)
	}
}

// TestTransactStampsPrev is end-to-end scenario 2 (spec.md §8): pushing a
// patch must record the *previous* log commit in the new state's prev
// field, not leave it stale at whatever prev the prior state carried.
func TestTransactStampsPrev(t *testing.T) {
	repo := testRepo(t)
	c0 := testCommit(t, repo, nil, "root")
	who := testSignature()
	if err := repo.UpdateRef(plumbing.NewBranchReferenceName("main"), c0, who, "init"); err != nil {
		t.Fatalf("UpdateRef(main): %v", err)
	}
	c1 := testCommit(t, repo, []plumbing.Hash{c0}, "patch1")

	s, err := FromBranch(repo, "main", AutoInitialize)
	if err != nil {
		t.Fatalf("FromBranch: %v", err)
	}
	seedLogHash := s.logHash

	if err := s.Transact("push p1", func(cur *StackState) (*StackState, error) {
		return cur.Push(patchname.MustParse("p1"), c1, c0, false)
	}); err != nil {
		t.Fatalf("Transact(push): %v", err)
	}

	tree, err := logTree(repo, s.logHash)
	if err != nil {
		t.Fatalf("logTree: %v", err)
	}
	reloaded, err := ReadState(repo, tree)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	prev, ok := reloaded.Prev()
	if !ok || prev != seedLogHash {
		t.Errorf("reloaded Prev() = (%v, %v), want (%v, true)", prev, ok, seedLogHash)
	}
}

// TestDeinitializeProtected is end-to-end scenario 4 (spec.md §8): marking a
// branch protected and attempting deinitialize fails with Protected and
// leaves the reference unchanged.
func TestDeinitializeProtected(t *testing.T) {
	repo := testRepo(t)
	c0 := testCommit(t, repo, nil, "root")
	who := testSignature()
	if err := repo.UpdateRef(plumbing.NewBranchReferenceName("main"), c0, who, "init"); err != nil {
		t.Fatalf("UpdateRef(main): %v", err)
	}
	s, err := FromBranch(repo, "main", AutoInitialize)
	if err != nil {
		t.Fatalf("FromBranch: %v", err)
	}
	if err := repo.SetProtected("main", true); err != nil {
		t.Fatalf("SetProtected: %v", err)
	}

	before, _, err := repo.ResolveRef(plumbing.ReferenceName("refs/stacks/main"))
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}

	if err := s.Deinitialize(); KindOf(err) != KindProtected {
		t.Fatalf("Deinitialize on protected branch: got %v, want Protected", err)
	}

	after, ok, err := repo.ResolveRef(plumbing.ReferenceName("refs/stacks/main"))
	if err != nil || !ok {
		t.Fatalf("refs/stacks/main disappeared: ok=%v err=%v", ok, err)
	}
	if before != after {
		t.Errorf("reference changed after refused deinitialize: %v != %v", before, after)
	}
}
