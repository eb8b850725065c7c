// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/google/patchstack/internal/gitrepo"
	"github.com/google/patchstack/internal/patchname"
)

// dateLayout matches the original Rust source's chrono format string
// "%Y-%m-%d %H:%M:%S %z" (spec.md §4.2).
const dateLayout = "2006-01-02 15:04:05 -0700"

// TreeBuilder materializes a StackState into the two-entry tree described
// in spec.md §4.2: a stack.json metadata blob and a patches/ subtree of
// one human-readable blob per patch.
type TreeBuilder struct {
	repo *gitrepo.Repository
}

// NewTreeBuilder returns a TreeBuilder backed by repo.
func NewTreeBuilder(repo *gitrepo.Repository) *TreeBuilder {
	return &TreeBuilder{repo: repo}
}

// Build writes the tree for state and returns its hash. If prevState and
// prevTree are non-nil/non-zero, unchanged patch blobs are reused verbatim
// (spec.md §4.2 "Incremental reuse", P6).
func (b *TreeBuilder) Build(state, prevState *StackState, prevTree plumbing.Hash) (plumbing.Hash, error) {
	raw := state.toRaw()
	stackJSON, err := raw.marshalStackJSON()
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "serialize", err, "encoding stack.json")
	}
	jsonHash, err := b.repo.WriteBlob(stackJSON)
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "serialize", err, "writing stack.json blob")
	}

	var prevPatchesTree *object.Tree
	if !prevTree.IsZero() {
		pt, err := b.repo.ReadTree(prevTree)
		if err != nil {
			return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "serialize", err, "reading previous state tree")
		}
		if entry := findTreeEntry(pt, "patches"); entry != nil {
			prevPatchesTree, err = b.repo.ReadTree(entry.Hash)
			if err != nil {
				return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "serialize", err, "reading previous patches tree")
			}
		}
	}

	patchesTreeHash, err := b.buildPatchesTree(state, prevState, prevPatchesTree)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	return b.repo.WriteTree([]gitrepo.TreeEntry{
		{Name: "stack.json", Mode: gitrepo.ModeBlob, Hash: jsonHash},
		{Name: "patches", Mode: gitrepo.ModeTree, Hash: patchesTreeHash},
	})
}

func (b *TreeBuilder) buildPatchesTree(state, prevState *StackState, prevPatchesTree *object.Tree) (plumbing.Hash, error) {
	var entries []gitrepo.TreeEntry
	it := state.AllPatches()
	for {
		name, ok := it.Next()
		if !ok {
			break
		}
		blobHash, err := b.patchBlob(state, name, prevState, prevPatchesTree)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, gitrepo.TreeEntry{Name: name.String(), Mode: gitrepo.ModeBlob, Hash: blobHash})
	}
	return b.repo.WriteTree(entries)
}

func (b *TreeBuilder) patchBlob(state *StackState, name patchname.Name, prevState *StackState, prevPatchesTree *object.Tree) (plumbing.Hash, error) {
	desc, ok := state.Descriptor(name)
	if !ok {
		return plumbing.ZeroHash, Errorf(KindMetadataMalformed, "serialize", "patch %q missing descriptor", name)
	}

	if prevState != nil && prevPatchesTree != nil {
		if prevDesc, ok := prevState.Descriptor(name); ok && prevDesc.Commit == desc.Commit {
			if entry := findTreeEntry(prevPatchesTree, name.String()); entry != nil {
				return entry.Hash, nil
			}
		}
	}

	commit, err := b.repo.ReadCommit(desc.Commit)
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "serialize", err, "reading patch commit %s", desc.Commit)
	}
	if commit.NumParents() == 0 {
		return plumbing.ZeroHash, Errorf(KindMetadataMalformed, "serialize", "patch %q commit %s has no parent", name, desc.Commit)
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return plumbing.ZeroHash, Wrap(KindObjectDbFailure, "serialize", err, "reading parent of patch %q", name)
	}

	header := fmt.Sprintf(
		"Bottom: %s\nTop:    %s\nAuthor: %s <%s>\nDate:   %s\n\n",
		parent.TreeHash, commit.TreeHash,
		commit.Author.Name, commit.Author.Email,
		commit.Author.When.Format(dateLayout),
	)
	content := header + commit.Message
	return b.repo.WriteBlob([]byte(content))
}

func findTreeEntry(t *object.Tree, name string) *object.TreeEntry {
	if t == nil {
		return nil
	}
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i]
		}
	}
	return nil
}

// ReadState decodes a StackState from a previously-built tree (spec.md
// §4.2, the read side of the arrow described in §2).
func ReadState(repo *gitrepo.Repository, tree plumbing.Hash) (*StackState, error) {
	t, err := repo.ReadTree(tree)
	if err != nil {
		return nil, Wrap(KindObjectDbFailure, "load", err, "reading state tree %s", tree)
	}
	entry := findTreeEntry(t, "stack.json")
	if entry == nil {
		return nil, Errorf(KindMetadataNotFound, "load", "tree %s has no stack.json", tree)
	}
	data, err := repo.ReadBlob(entry.Hash)
	if err != nil {
		return nil, Wrap(KindObjectDbFailure, "load", err, "reading stack.json blob")
	}
	raw, err := unmarshalStackJSON(data)
	if err != nil {
		if _, ok := err.(*Error); ok {
			return nil, err
		}
		return nil, Wrap(KindMetadataMalformed, "load", err, "parsing stack.json")
	}
	return fromRaw(raw)
}

func fromRaw(raw *RawStackState) (*StackState, error) {
	head, err := parseHash("load", "head", raw.Head)
	if err != nil {
		return nil, err
	}
	var prev plumbing.Hash
	if raw.Prev != nil {
		prev, err = parseHash("load", "prev", *raw.Prev)
		if err != nil {
			return nil, err
		}
	}
	applied, err := stringsToNames("load", raw.Applied)
	if err != nil {
		return nil, err
	}
	unapplied, err := stringsToNames("load", raw.Unapplied)
	if err != nil {
		return nil, err
	}
	hidden, err := stringsToNames("load", raw.Hidden)
	if err != nil {
		return nil, err
	}
	patches := make(map[patchname.Name]PatchDescriptor, len(raw.Patches))
	for nameStr, rawDesc := range raw.Patches {
		name, err := patchname.Parse(nameStr)
		if err != nil {
			return nil, Wrap(KindMetadataMalformed, "load", err, "decoding patch name %q", nameStr)
		}
		commit, err := parseHash("load", "patches."+nameStr+".oid", rawDesc.OID)
		if err != nil {
			return nil, err
		}
		patches[name] = PatchDescriptor{Commit: commit}
	}
	return &StackState{
		head:      head,
		prev:      prev,
		applied:   applied,
		unapplied: unapplied,
		hidden:    hidden,
		patches:   patches,
	}, nil
}
