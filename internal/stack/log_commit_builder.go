// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/google/patchstack/internal/gitrepo"
)

// MaxParents is the fan-in bound enforced on every commit the builder
// emits (spec.md §4.3 step 3, P5).
const MaxParents = 16

// LogCommitBuilder produces the log commit whose parent closure pins every
// object a StackState depends on (spec.md §4.3).
type LogCommitBuilder struct {
	repo *gitrepo.Repository
}

// NewLogCommitBuilder returns a LogCommitBuilder backed by repo.
func NewLogCommitBuilder(repo *gitrepo.Repository) *LogCommitBuilder {
	return &LogCommitBuilder{repo: repo}
}

// Build constructs and stores the log commit for state (whose serialized
// tree is already at `tree`), optionally updating refname with force
// semantics. prevState/prevLogCommit are the previous state and its log
// commit, or nil/zero for the very first state ever written for a branch.
func (b *LogCommitBuilder) Build(
	state, prevState *StackState,
	tree plumbing.Hash,
	prevLogCommit plumbing.Hash,
	who object.Signature,
	message string,
	refname plumbing.ReferenceName,
) (plumbing.Hash, error) {
	simplifiedParents, err := b.simplifiedParents(prevLogCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	simplifiedID, err := b.repo.WriteCommit(gitrepo.CommitSpec{
		Tree: tree, Parents: simplifiedParents, Author: who, Committer: who, Message: message,
	})
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "log-commit", err, "writing simplified parent commit")
	}

	pins, err := b.pinningParents(state, prevState, prevLogCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	pins, err = b.reduceFanIn(pins, tree, who)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	finalParents := append([]plumbing.Hash{simplifiedID}, pins...)
	logCommit, err := b.repo.WriteCommit(gitrepo.CommitSpec{
		Tree: tree, Parents: finalParents, Author: who, Committer: who, Message: message,
	})
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "log-commit", err, "writing log commit")
	}

	if refname != "" {
		if err := b.repo.UpdateRef(refname, logCommit, who, message); err != nil {
			return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "log-commit", err, "updating %s", refname)
		}
	}
	return logCommit, nil
}

func (b *LogCommitBuilder) simplifiedParents(prevLogCommit plumbing.Hash) ([]plumbing.Hash, error) {
	if prevLogCommit.IsZero() {
		return nil, nil
	}
	prev, err := b.repo.ReadCommit(prevLogCommit)
	if err != nil {
		return nil, Wrap(KindObjectDbFailure, "log-commit", err, "reading previous log commit %s", prevLogCommit)
	}
	if prev.NumParents() == 0 {
		return nil, Errorf(KindMetadataMalformed, "log-commit", "previous log commit %s has no parents", prevLogCommit)
	}
	return []plumbing.Hash{prev.ParentHashes[0]}, nil
}

// pinningParents builds Π as described in spec.md §4.3 step 2.
func (b *LogCommitBuilder) pinningParents(state, prevState *StackState, prevLogCommit plumbing.Hash) ([]plumbing.Hash, error) {
	set := newOrderedHashSet()
	set.insert(state.Head())
	set.insert(state.Top())
	for _, n := range state.Unapplied() {
		d, _ := state.Descriptor(n)
		set.insert(d.Commit)
	}
	for _, n := range state.Hidden() {
		d, _ := state.Descriptor(n)
		set.insert(d.Commit)
	}
	if !prevLogCommit.IsZero() {
		set.insert(prevLogCommit)
		if prevState == nil {
			return nil, Errorf(KindObjectDbFailure, "log-commit", "previous log commit given without its decoded state")
		}
		it := prevState.AllPatches()
		for {
			name, ok := it.Next()
			if !ok {
				break
			}
			d, _ := prevState.Descriptor(name)
			set.remove(d.Commit)
		}
	}
	return set.items(), nil
}

// reduceFanIn implements spec.md §4.3 step 3: repeatedly fold the tail of
// pins into grouping commits until what remains leaves room for the
// simplified-parent commit S in the final parent list.
func (b *LogCommitBuilder) reduceFanIn(pins []plumbing.Hash, tree plumbing.Hash, who object.Signature) ([]plumbing.Hash, error) {
	for len(pins) > MaxParents-1 {
		cut := len(pins) - MaxParents
		group := append([]plumbing.Hash(nil), pins[cut:]...)
		pins = pins[:cut]
		groupID, err := b.repo.WriteCommit(gitrepo.CommitSpec{
			Tree: tree, Parents: group, Author: who, Committer: who, Message: "parent grouping",
		})
		if err != nil {
			return nil, Wrap(KindObjectDbFailure, "log-commit", err, "writing parent-grouping commit")
		}
		pins = append(pins, groupID)
	}
	return pins, nil
}

// orderedHashSet is an insertion-ordered set of hashes, mirroring the
// indexmap::IndexSet used for determinism in the original Rust source
// (_examples/original_source/src/stack/state.rs).
type orderedHashSet struct {
	order []plumbing.Hash
	index map[plumbing.Hash]int
}

func newOrderedHashSet() *orderedHashSet {
	return &orderedHashSet{index: map[plumbing.Hash]int{}}
}

func (s *orderedHashSet) insert(h plumbing.Hash) {
	if _, ok := s.index[h]; ok {
		return
	}
	s.index[h] = len(s.order)
	s.order = append(s.order, h)
}

func (s *orderedHashSet) remove(h plumbing.Hash) {
	i, ok := s.index[h]
	if !ok {
		return
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.index, h)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
}

func (s *orderedHashSet) items() []plumbing.Hash {
	out := make([]plumbing.Hash, len(s.order))
	copy(out, s.order)
	return out
}
