// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/google/patchstack/internal/patchname"
)

func hash(b byte) plumbing.Hash {
	var h plumbing.Hash
	h[0] = b
	return h
}

// noopParent is a CheckInvariants parentOf stand-in for tests that only
// exercise the three sequences, not the applied parent chain (I3).
func noopParent(plumbing.Hash) (plumbing.Hash, int, error) {
	return plumbing.ZeroHash, 1, nil
}

func TestPushPopRoundTrip(t *testing.T) {
	s := New(hash(0xc0))
	s, err := s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xc0), false)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got := s.Top(); got != hash(0xc1) {
		t.Errorf("Top() = %v, want %v", got, hash(0xc1))
	}

	s, popped, err := s.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if popped.String() != "p1" {
		t.Errorf("Pop() name = %q, want %q", popped, "p1")
	}
	if len(s.Applied()) != 0 {
		t.Errorf("Applied() = %v, want empty", s.Applied())
	}
	if got := s.Unapplied(); len(got) != 1 || got[0].String() != "p1" {
		t.Errorf("Unapplied() = %v, want [p1]", got)
	}
	if got := s.Top(); got != hash(0xc0) {
		t.Errorf("Top() after pop = %v, want head %v", got, hash(0xc0))
	}
}

func TestPushParentMismatch(t *testing.T) {
	s := New(hash(0xc0))
	if _, err := s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xff), false); KindOf(err) != KindParentMismatch {
		t.Errorf("Push with mismatched parent: got %v, want ParentMismatch", err)
	}
}

func TestPushDuplicateName(t *testing.T) {
	s := New(hash(0xc0))
	s, _ = s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xc0), false)
	if _, err := s.Push(patchname.MustParse("p1"), hash(0xc2), hash(0xc1), false); KindOf(err) != KindNameConflict {
		t.Errorf("Push duplicate name: got %v, want NameConflict", err)
	}
}

// TestRenameConflict is end-to-end scenario 6 (spec.md §8): applied=["a"],
// unapplied=["b"]; renaming a->b must fail and leave state untouched.
func TestRenameConflict(t *testing.T) {
	s := New(hash(0xc0))
	s, _ = s.Push(patchname.MustParse("b"), hash(0xc2), hash(0xc0), false)
	s, _, _ = s.Pop()
	s, _ = s.Push(patchname.MustParse("a"), hash(0xc1), hash(0xc0), false)

	before := s
	_, err := s.Rename(patchname.MustParse("a"), patchname.MustParse("b"))
	if KindOf(err) != KindNameConflict {
		t.Fatalf("Rename a->b: got %v, want NameConflict", err)
	}
	if before != s {
		t.Errorf("state pointer changed after failed rename")
	}
}

func TestHideRequiresNotApplied(t *testing.T) {
	s := New(hash(0xc0))
	s, _ = s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xc0), false)
	if _, err := s.Hide(patchname.MustParse("p1")); KindOf(err) != KindParentMismatch {
		t.Errorf("Hide applied patch: got %v, want ParentMismatch", err)
	}
}

func TestHideUnhideRoundTrip(t *testing.T) {
	s := New(hash(0xc0))
	s, _ = s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xc0), false)
	s, _, _ = s.Pop()
	s, err := s.Hide(patchname.MustParse("p1"))
	if err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if got := s.Hidden(); len(got) != 1 || got[0].String() != "p1" {
		t.Errorf("Hidden() = %v, want [p1]", got)
	}
	s, err = s.Unhide(patchname.MustParse("p1"))
	if err != nil {
		t.Fatalf("Unhide: %v", err)
	}
	if got := s.Unapplied(); len(got) != 1 || got[0].String() != "p1" {
		t.Errorf("Unapplied() after unhide = %v, want [p1]", got)
	}
}

func TestDeleteAppliedMustBeAtTop(t *testing.T) {
	s := New(hash(0xc0))
	s, _ = s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xc0), false)
	s, _ = s.Push(patchname.MustParse("p2"), hash(0xc2), hash(0xc1), false)
	if _, err := s.Delete(patchname.MustParse("p1")); KindOf(err) != KindParentMismatch {
		t.Errorf("Delete non-top applied patch: got %v, want ParentMismatch", err)
	}
	s2, err := s.Delete(patchname.MustParse("p2"))
	if err != nil {
		t.Fatalf("Delete top patch: %v", err)
	}
	if got := s2.Applied(); len(got) != 1 || got[0].String() != "p1" {
		t.Errorf("Applied() after delete = %v, want [p1]", got)
	}
}

// TestCheckInvariants exercises P1: every StackState reachable from New via
// valid transitions satisfies I1-I5.
func TestCheckInvariants(t *testing.T) {
	s := New(hash(0xc0))
	s, _ = s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xc0), false)
	s, _ = s.Push(patchname.MustParse("p2"), hash(0xc2), hash(0xc1), false)
	s, _, _ = s.Pop()
	s, _ = s.Hide(patchname.MustParse("p2"))
	s, _ = s.Unhide(patchname.MustParse("p2"))

	parentOf := func(c plumbing.Hash) (plumbing.Hash, int, error) {
		switch c {
		case hash(0xc1):
			return hash(0xc0), 1, nil
		case hash(0xc2):
			return hash(0xc1), 1, nil
		}
		return plumbing.ZeroHash, 0, nil
	}
	if err := s.CheckInvariants(parentOf); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestReorderRequiresPermutation(t *testing.T) {
	s := New(hash(0xc0))
	s, _ = s.Push(patchname.MustParse("p1"), hash(0xc1), hash(0xc0), false)
	s, _ = s.Push(patchname.MustParse("p2"), hash(0xc2), hash(0xc1), false)

	if _, err := s.Reorder([]patchname.Name{patchname.MustParse("p1")}, nil); KindOf(err) != KindParentMismatch {
		t.Errorf("Reorder with wrong length: got %v, want ParentMismatch", err)
	}

	s2, err := s.Reorder([]patchname.Name{patchname.MustParse("p2"), patchname.MustParse("p1")}, nil)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if got := s2.Applied(); got[0].String() != "p2" || got[1].String() != "p1" {
		t.Errorf("Applied() after reorder = %v, want [p2 p1]", got)
	}
}
