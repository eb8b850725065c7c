// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/google/patchstack/internal/gitrepo"
)

// InitializationPolicy governs what FromBranch does when refs/stacks/<branch> is
// absent (spec.md §4.4).
type InitializationPolicy int

const (
	// RequireInitialized fails with KindNotInitialized if the ref is absent.
	RequireInitialized InitializationPolicy = iota
	// AllowUninitialized returns an empty, unpersisted StackState seeded
	// from the branch tip if the ref is absent.
	AllowUninitialized
	// AutoInitialize writes a seed log commit referencing the branch tip if
	// the ref is absent, then returns that state.
	AutoInitialize
)

func refName(branch string) plumbing.ReferenceName {
	return plumbing.ReferenceName("refs/stacks/" + branch)
}

// Stack binds a branch name to its persisted StackState (spec.md §4.4). It
// holds no lock across calls: every mutating method is its own atomic
// transaction against refs/stacks/<branch>.
type Stack struct {
	repo    *gitrepo.Repository
	branch  string
	ref     plumbing.ReferenceName
	state   *StackState
	logHash plumbing.Hash // zero until this Stack has written or loaded a log commit

	trees *TreeBuilder
	logs  *LogCommitBuilder
}

// FromBranch loads (or seeds, per policy) the stack bound to branch.
func FromBranch(repo *gitrepo.Repository, branch string, policy InitializationPolicy) (*Stack, error) {
	ref := refName(branch)
	s := &Stack{
		repo:   repo,
		branch: branch,
		ref:    ref,
		trees:  NewTreeBuilder(repo),
		logs:   NewLogCommitBuilder(repo),
	}

	logHash, ok, err := repo.ResolveRef(ref)
	if err != nil {
		return nil, Wrap(KindObjectDbFailure, "from-branch", err, "resolving %s", ref)
	}
	if ok {
		tree, err := logTree(repo, logHash)
		if err != nil {
			return nil, err
		}
		state, err := ReadState(repo, tree)
		if err != nil {
			return nil, err
		}
		s.state = state
		s.logHash = logHash
		return s, nil
	}

	switch policy {
	case RequireInitialized:
		return nil, Errorf(KindNotInitialized, "from-branch", "branch %q has no stack", branch)
	case AllowUninitialized:
		head, err := s.headTip()
		if err != nil {
			return nil, err
		}
		s.state = New(head)
		return s, nil
	case AutoInitialize:
		head, err := s.headTip()
		if err != nil {
			return nil, err
		}
		s.state = New(head)
		if err := s.persist("initialize stack", nil); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, Errorf(KindUnknown, "from-branch", "unrecognized initialization policy %d", policy)
	}
}

func (s *Stack) headTip() (plumbing.Hash, error) {
	branchRef := plumbing.NewBranchReferenceName(s.branch)
	head, ok, err := s.repo.ResolveRef(branchRef)
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "from-branch", err, "resolving %s", branchRef)
	}
	if !ok {
		return plumbing.ZeroHash, Errorf(KindMetadataNotFound, "from-branch", "branch %q does not exist", s.branch)
	}
	return head, nil
}

func logTree(repo *gitrepo.Repository, logHash plumbing.Hash) (plumbing.Hash, error) {
	commit, err := repo.ReadCommit(logHash)
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "from-branch", err, "reading log commit %s", logHash)
	}
	return commit.TreeHash, nil
}

// State returns the currently loaded StackState.
func (s *Stack) State() *StackState { return s.state }

// Branch returns the branch name this façade is bound to.
func (s *Stack) Branch() string { return s.branch }

// LogCommit returns the log commit currently backing this façade's state,
// or the zero hash if nothing has been persisted yet. Callers driving
// StackState.AdvanceHead directly (spec.md §4.1) use this as the
// prevState argument.
func (s *Stack) LogCommit() plumbing.Hash { return s.logHash }

// IsProtected reports whether branch.<branch>.stgit.protect is set.
func (s *Stack) IsProtected() (bool, error) {
	protected, err := s.repo.IsProtected(s.branch)
	if err != nil {
		return false, Wrap(KindObjectDbFailure, "is-protected", err, "reading protect config for %q", s.branch)
	}
	return protected, nil
}

// Deinitialize deletes refs/stacks/<branch> and its branch-scoped config
// keys. Callers enforce the "protected" and "non-empty" preconditions
// themselves (spec.md §4.4); Deinitialize re-checks protection defensively.
func (s *Stack) Deinitialize() error {
	protected, err := s.IsProtected()
	if err != nil {
		return err
	}
	if protected {
		return Errorf(KindProtected, "deinitialize", "branch %q is protected", s.branch)
	}
	if err := s.repo.DeleteRef(s.ref); err != nil {
		return Wrap(KindObjectDbFailure, "deinitialize", err, "deleting %s", s.ref)
	}
	if err := s.repo.ClearBranchConfig(s.branch); err != nil {
		return Wrap(KindObjectDbFailure, "deinitialize", err, "clearing config for %q", s.branch)
	}
	s.logHash = plumbing.ZeroHash
	return nil
}

// Transact applies f to the current state; on success the result is
// serialized, a new log commit is built pinning every object it depends on,
// and refs/stacks/<branch> is force-updated to it. On failure of f the
// reference is left untouched and the façade keeps its prior state (spec.md
// §4.4, §5 ordering guarantees).
func (s *Stack) Transact(message string, f func(*StackState) (*StackState, error)) error {
	next, err := f(s.state)
	if err != nil {
		return err
	}
	return s.persist(message, next)
}

// persist serializes newState (or re-serializes the current state if
// newState is nil, as AutoInitialize's seed does) and writes the log commit.
func (s *Stack) persist(message string, newState *StackState) error {
	target := newState
	if target == nil {
		target = s.state
	}
	target = target.withPrev(s.logHash)

	var prevTree plumbing.Hash
	if !s.logHash.IsZero() {
		t, err := logTree(s.repo, s.logHash)
		if err != nil {
			return err
		}
		prevTree = t
	}
	tree, err := s.trees.Build(target, s.state, prevTree)
	if err != nil {
		return err
	}

	who, err := s.repo.DefaultSignature()
	if err != nil {
		return Wrap(KindObjectDbFailure, "transact", err, "resolving committer identity")
	}

	logHash, err := s.logs.Build(target, s.state, tree, s.logHash, who, message, s.ref)
	if err != nil {
		return err
	}

	s.state = target
	s.logHash = logHash
	return nil
}
