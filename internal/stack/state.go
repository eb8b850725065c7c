// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package stack implements the stack-state model and its persistence as a
// commit graph inside a git repository: StackState (spec.md §3–4.1),
// TreeBuilder (§4.2), LogCommitBuilder (§4.3), the Stack façade (§4.4), and
// the error taxonomy (§7).
package stack

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/google/patchstack/internal/patchname"
)

// PatchDescriptor pairs a patch name with the commit that realizes it.
// Cloning a StackState deep-copies the descriptor handle, never the commit
// object itself (spec.md §3).
type PatchDescriptor struct {
	Commit plumbing.Hash
}

// StackState is an immutable value object: every exported method that
// changes state returns a new StackState rather than mutating the
// receiver (spec.md §4.1).
type StackState struct {
	head      plumbing.Hash
	prev      plumbing.Hash // zero hash means "no previous log commit"
	applied   []patchname.Name
	unapplied []patchname.Name
	hidden    []patchname.Name
	patches   map[patchname.Name]PatchDescriptor
}

// New returns the seed StackState for a branch whose tip is head: empty
// sequences, no previous log commit.
func New(head plumbing.Hash) *StackState {
	return &StackState{
		head:    head,
		patches: map[patchname.Name]PatchDescriptor{},
	}
}

// Head returns the commit the stack is built upon.
func (s *StackState) Head() plumbing.Hash { return s.head }

// Prev returns the previous log commit, and whether one exists.
func (s *StackState) Prev() (plumbing.Hash, bool) {
	return s.prev, !s.prev.IsZero()
}

// Applied, Unapplied, and Hidden return copies of the three patch
// sequences. Callers must not rely on mutating the slices returned here
// to affect the StackState: they are defensive copies.
func (s *StackState) Applied() []patchname.Name   { return cloneNames(s.applied) }
func (s *StackState) Unapplied() []patchname.Name { return cloneNames(s.unapplied) }
func (s *StackState) Hidden() []patchname.Name    { return cloneNames(s.hidden) }

func cloneNames(names []patchname.Name) []patchname.Name {
	out := make([]patchname.Name, len(names))
	copy(out, names)
	return out
}

// Descriptor looks up the commit realizing name.
func (s *StackState) Descriptor(name patchname.Name) (PatchDescriptor, bool) {
	d, ok := s.patches[name]
	return d, ok
}

// Top returns head if applied is empty, else the commit of the last
// applied patch (spec.md I4). It allocates nothing.
func (s *StackState) Top() plumbing.Hash {
	if len(s.applied) == 0 {
		return s.head
	}
	return s.patches[s.applied[len(s.applied)-1]].Commit
}

// AllPatches returns a lazy, finite, non-restartable iterator over
// applied ++ unapplied ++ hidden (spec.md §4.1).
func (s *StackState) AllPatches() *PatchIter {
	return newPatchIter(s.applied, s.unapplied, s.hidden)
}

// AdvanceHead returns a new StackState with head replaced and prev set to
// prevLogCommit; patch sets are untouched (spec.md §4.1).
func (s *StackState) AdvanceHead(newHead, prevLogCommit plumbing.Hash) *StackState {
	next := s.shallowCopy()
	next.head = newHead
	next.prev = prevLogCommit
	return next
}

// withPrev returns a copy of s with prev set to prevLogCommit, leaving
// head and the patch sets untouched. Used by Stack.persist to stamp every
// newly persisted state with the log commit it supersedes (spec.md §3,
// scenario 2), independent of AdvanceHead which also moves head.
func (s *StackState) withPrev(prevLogCommit plumbing.Hash) *StackState {
	next := s.shallowCopy()
	next.prev = prevLogCommit
	return next
}

// shallowCopy copies every field of s; slices and the map get fresh
// backing storage so that transitions never alias the receiver's state.
func (s *StackState) shallowCopy() *StackState {
	next := &StackState{
		head:      s.head,
		prev:      s.prev,
		applied:   cloneNames(s.applied),
		unapplied: cloneNames(s.unapplied),
		hidden:    cloneNames(s.hidden),
		patches:   make(map[patchname.Name]PatchDescriptor, len(s.patches)),
	}
	for k, v := range s.patches {
		next.patches[k] = v
	}
	return next
}

// locate reports which of the three sequences contains name, or "" if none
// does.
func (s *StackState) locate(name patchname.Name) string {
	for _, n := range s.applied {
		if n == name {
			return "applied"
		}
	}
	for _, n := range s.unapplied {
		if n == name {
			return "unapplied"
		}
	}
	for _, n := range s.hidden {
		if n == name {
			return "hidden"
		}
	}
	return ""
}

func removeName(names []patchname.Name, target patchname.Name) []patchname.Name {
	out := make([]patchname.Name, 0, len(names))
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// Push appends a new patch named name, realized by commit, to the top of
// applied. If rebaseParent is false, Push fails with ParentMismatch unless
// commitParent (the patch's stored first parent) equals the current Top();
// if true, the caller is asserting the commit was freshly rebased onto Top
// and the check is skipped (spec.md §4.1).
func (s *StackState) Push(name patchname.Name, commit, commitParent plumbing.Hash, rebaseParent bool) (*StackState, error) {
	if s.locate(name) != "" {
		return nil, Errorf(KindNameConflict, "push", "patch %q already exists", name)
	}
	if !rebaseParent && commitParent != s.Top() {
		return nil, Errorf(KindParentMismatch, "push", "patch %q parent %s does not match top %s", name, commitParent, s.Top())
	}
	next := s.shallowCopy()
	next.applied = append(next.applied, name)
	next.patches[name] = PatchDescriptor{Commit: commit}
	return next, nil
}

// Pop moves the top applied patch to the head of unapplied (LIFO; spec.md
// §4.1 — implementations MUST NOT silently reorder).
func (s *StackState) Pop() (*StackState, patchname.Name, error) {
	if len(s.applied) == 0 {
		return nil, patchname.Name{}, Errorf(KindParentMismatch, "pop", "no applied patches to pop")
	}
	top := s.applied[len(s.applied)-1]
	next := s.shallowCopy()
	next.applied = next.applied[:len(next.applied)-1]
	next.unapplied = append([]patchname.Name{top}, next.unapplied...)
	return next, top, nil
}

// Rename renames from to to, failing with NameConflict if to already names
// a patch in any of the three sequences (spec.md §4.1).
func (s *StackState) Rename(from, to patchname.Name) (*StackState, error) {
	where := s.locate(from)
	if where == "" {
		return nil, Errorf(KindNameConflict, "rename", "no such patch %q", from)
	}
	if from != to && s.locate(to) != "" {
		return nil, Errorf(KindNameConflict, "rename", "patch %q already exists", to)
	}
	next := s.shallowCopy()
	replace := func(names []patchname.Name) []patchname.Name {
		out := make([]patchname.Name, len(names))
		for i, n := range names {
			if n == from {
				out[i] = to
			} else {
				out[i] = n
			}
		}
		return out
	}
	next.applied = replace(next.applied)
	next.unapplied = replace(next.unapplied)
	next.hidden = replace(next.hidden)
	next.patches[to] = next.patches[from]
	delete(next.patches, from)
	return next, nil
}

// Refresh replaces the commit realizing an already-applied patch, keeping
// its position; the new commit's parent must be the predecessor's commit
// (spec.md I3) — callers are responsible for constructing it that way.
// Refresh does not rewrite the patches applied above name.
func (s *StackState) Refresh(name patchname.Name, newCommit plumbing.Hash) (*StackState, error) {
	if s.locate(name) != "applied" {
		return nil, Errorf(KindNameConflict, "refresh", "patch %q is not applied", name)
	}
	next := s.shallowCopy()
	next.patches[name] = PatchDescriptor{Commit: newCommit}
	return next, nil
}

// Hide moves name into hidden from whichever sequence currently holds it,
// except applied (a patch must be popped before it can be hidden, since
// hiding it would break the parent chain of everything above it).
func (s *StackState) Hide(name patchname.Name) (*StackState, error) {
	where := s.locate(name)
	switch where {
	case "":
		return nil, Errorf(KindNameConflict, "hide", "no such patch %q", name)
	case "applied":
		return nil, Errorf(KindParentMismatch, "hide", "patch %q is applied; pop it first", name)
	case "hidden":
		return s, nil
	}
	next := s.shallowCopy()
	next.unapplied = removeName(next.unapplied, name)
	next.hidden = append(next.hidden, name)
	return next, nil
}

// Unhide moves name from hidden to the head of unapplied.
func (s *StackState) Unhide(name patchname.Name) (*StackState, error) {
	if s.locate(name) != "hidden" {
		return nil, Errorf(KindNameConflict, "unhide", "patch %q is not hidden", name)
	}
	next := s.shallowCopy()
	next.hidden = removeName(next.hidden, name)
	next.unapplied = append([]patchname.Name{name}, next.unapplied...)
	return next, nil
}

// Delete removes name from whichever sequence contains it and from the
// patch map. The underlying commit is not deleted from the CAVCS; it
// becomes unreachable only once no log commit references it (spec.md
// §4.1). An applied patch can be deleted only while it is the top one;
// deleting any other applied patch fails with ParentMismatch.
func (s *StackState) Delete(name patchname.Name) (*StackState, error) {
	where := s.locate(name)
	if where == "" {
		return nil, Errorf(KindNameConflict, "delete", "no such patch %q", name)
	}
	if where == "applied" && name != s.applied[len(s.applied)-1] {
		return nil, Errorf(KindParentMismatch, "delete", "patch %q is applied but not at the top; pop down to it first", name)
	}
	next := s.shallowCopy()
	next.applied = removeName(next.applied, name)
	next.unapplied = removeName(next.unapplied, name)
	next.hidden = removeName(next.hidden, name)
	delete(next.patches, name)
	return next, nil
}

// Reorder replaces the applied sequence wholesale with newOrder, which
// must be a permutation of the current applied set; the caller is
// responsible for having produced commits whose parent chain satisfies I3
// for the new order and for passing them in newCommits; Reorder itself
// rewrites no commits.
func (s *StackState) Reorder(newOrder []patchname.Name, newCommits map[patchname.Name]plumbing.Hash) (*StackState, error) {
	if len(newOrder) != len(s.applied) {
		return nil, Errorf(KindParentMismatch, "reorder", "new order has %d patches, applied has %d", len(newOrder), len(s.applied))
	}
	seen := make(map[patchname.Name]bool, len(newOrder))
	for _, n := range newOrder {
		if s.locate(n) != "applied" {
			return nil, Errorf(KindNameConflict, "reorder", "patch %q is not applied", n)
		}
		if seen[n] {
			return nil, Errorf(KindNameConflict, "reorder", "patch %q listed twice", n)
		}
		seen[n] = true
	}
	next := s.shallowCopy()
	next.applied = cloneNames(newOrder)
	for name, commit := range newCommits {
		next.patches[name] = PatchDescriptor{Commit: commit}
	}
	return next, nil
}

// CheckInvariants verifies I1–I5 against an external parent/commit lookup
// (needed for I3, which inspects parent hashes outside the StackState
// itself). It is used by tests (P1) and may be called defensively after
// any transition sequence.
func (s *StackState) CheckInvariants(parentOf func(commit plumbing.Hash) (plumbing.Hash, int, error)) error {
	seen := map[patchname.Name]string{}
	mark := func(list []patchname.Name, where string) error {
		for _, n := range list {
			if prev, ok := seen[n]; ok {
				return Errorf(KindNameConflict, "check", "patch %q present in both %s and %s", n, prev, where)
			}
			seen[n] = where
		}
		return nil
	}
	if err := mark(s.applied, "applied"); err != nil {
		return err
	}
	if err := mark(s.unapplied, "unapplied"); err != nil {
		return err
	}
	if err := mark(s.hidden, "hidden"); err != nil {
		return err
	}
	if len(seen) != len(s.patches) {
		return Errorf(KindMetadataMalformed, "check", "patches map has %d entries, sequences name %d", len(s.patches), len(seen))
	}
	for n := range seen {
		if _, ok := s.patches[n]; !ok {
			return Errorf(KindMetadataMalformed, "check", "patch %q missing from patches map", n)
		}
	}
	prevCommit := s.head
	for i, n := range s.applied {
		parent, numParents, err := parentOf(s.patches[n].Commit)
		if err != nil {
			return Wrap(KindObjectDbFailure, "check", err, "reading parent of %q", n)
		}
		if numParents != 1 {
			return Errorf(KindMetadataMalformed, "check", "applied patch %q at position %d has %d parents, want 1", n, i, numParents)
		}
		if parent != prevCommit {
			return Errorf(KindMetadataMalformed, "check", "applied patch %q at position %d has parent %s, want %s", n, i, parent, prevCommit)
		}
		prevCommit = s.patches[n].Commit
	}
	return nil
}
