// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"fmt"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/google/patchstack/internal/gitrepo"
	"github.com/google/patchstack/internal/patchname"
)

func reachableFrom(t *testing.T, repo *gitrepo.Repository, start plumbing.Hash) map[plumbing.Hash]bool {
	t.Helper()
	seen := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		c, err := repo.ReadCommit(h)
		if err != nil {
			t.Fatalf("ReadCommit(%s): %v", h, err)
		}
		queue = append(queue, c.ParentHashes...)
	}
	return seen
}

func testSignature() object.Signature {
	return object.Signature{Name: "test", Email: "test@example.com"}
}

// TestLogCommitReachability is P4: every commit id referenced by the
// embedded StackState is reachable from the log commit.
func TestLogCommitReachability(t *testing.T) {
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

	lb := NewLogCommitBuilder(repo)
	log, err := lb.Build(s, nil, tree, plumbing.ZeroHash, testSignature(), "seed", "")
	if err != nil {
		t.Fatalf("Build log commit: %v", err)
	}

	reachable := reachableFrom(t, repo, log)
	for _, want := range []plumbing.Hash{c0, c1} {
		if !reachable[want] {
			t.Errorf("commit %s not reachable from log commit %s", want, log)
		}
	}
}

// TestLogCommitFanInBound is P5: every commit the builder emits has at most
// MaxParents parents, including after reducing a 40-patch pinning set
// (end-to-end scenario 5, spec.md §8).
func TestLogCommitFanInBound(t *testing.T) {
	repo := testRepo(t)
	c0 := testCommit(t, repo, nil, "root")

	s := New(c0)
	var patches []plumbing.Hash
	for i := 0; i < 40; i++ {
		// Each patch branches directly off c0; unapplied patches need not
		// chain onto one another (only I3's applied-sequence chain does).
		c := testCommit(t, repo, []plumbing.Hash{c0}, fmt.Sprintf("[PATCH] p%d", i))
		name := patchname.MustParse(fmt.Sprintf("p%d", i))
		var err error
		s, err = s.Push(name, c, c0, false)
		if err != nil {
			t.Fatalf("Push p%d: %v", i, err)
		}
		s, _, err = s.Pop()
		if err != nil {
			t.Fatalf("Pop p%d: %v", i, err)
		}
		patches = append(patches, c)
	}

	tb := NewTreeBuilder(repo)
	tree, err := tb.Build(s, nil, plumbing.ZeroHash)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lb := NewLogCommitBuilder(repo)
	log, err := lb.Build(s, nil, tree, plumbing.ZeroHash, testSignature(), "40 unapplied patches", "")
	if err != nil {
		t.Fatalf("Build log commit: %v", err)
	}

	seen := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{log}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		c, err := repo.ReadCommit(h)
		if err != nil {
			t.Fatalf("ReadCommit(%s): %v", h, err)
		}
		if len(c.ParentHashes) > MaxParents {
			t.Errorf("commit %s has %d parents, want <= %d", h, len(c.ParentHashes), MaxParents)
		}
		queue = append(queue, c.ParentHashes...)
	}

	reachable := reachableFrom(t, repo, log)
	for i, p := range patches {
		if !reachable[p] {
			t.Errorf("patch commit p%d (%s) not reachable from log commit", i, p)
		}
	}
}
