// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"encoding/json"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/google/patchstack/internal/patchname"
)

// rawStateVersion is the stack.json schema version (spec.md §4.2). Bump
// whenever the on-disk shape changes in a way old readers can't tolerate.
const rawStateVersion = 5

// rawPatchDescriptor is the wire form of a PatchDescriptor.
type rawPatchDescriptor struct {
	OID string `json:"oid"`
}

// RawStackState is the JSON wire form of StackState (spec.md §4.2). Field
// order here is the order they are declared, which is also the order
// encoding/json emits them in for a struct — load-bearing for P3.
type RawStackState struct {
	Version   int                           `json:"version"`
	Prev      *string                       `json:"prev"`
	Head      string                        `json:"head"`
	Applied   []string                      `json:"applied"`
	Unapplied []string                      `json:"unapplied"`
	Hidden    []string                      `json:"hidden"`
	Patches   map[string]rawPatchDescriptor `json:"patches"`
}

// marshalStackJSON renders the raw state pretty-printed with two-space
// indentation; map keys are sorted lexicographically by encoding/json,
// which is exactly the stable ordering P3 requires without needing a
// third-party canonical-JSON library (see DESIGN.md).
func (r *RawStackState) marshalStackJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func unmarshalStackJSON(data []byte) (*RawStackState, error) {
	var raw RawStackState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Version != rawStateVersion {
		return nil, Errorf(KindMetadataMalformed, "load", "unsupported stack.json version %d (want %d)", raw.Version, rawStateVersion)
	}
	return &raw, nil
}

// toRaw converts a StackState to its wire form.
func (s *StackState) toRaw() *RawStackState {
	raw := &RawStackState{
		Version:   rawStateVersion,
		Head:      s.head.String(),
		Applied:   namesToStrings(s.applied),
		Unapplied: namesToStrings(s.unapplied),
		Hidden:    namesToStrings(s.hidden),
		Patches:   make(map[string]rawPatchDescriptor, len(s.patches)),
	}
	if !s.prev.IsZero() {
		prev := s.prev.String()
		raw.Prev = &prev
	}
	for name, desc := range s.patches {
		raw.Patches[name.String()] = rawPatchDescriptor{OID: desc.Commit.String()}
	}
	return raw
}

func namesToStrings(names []patchname.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}

func stringsToNames(op string, ss []string) ([]patchname.Name, error) {
	out := make([]patchname.Name, len(ss))
	for i, s := range ss {
		n, err := patchname.Parse(s)
		if err != nil {
			return nil, Wrap(KindMetadataMalformed, op, err, "decoding patch name %q", s)
		}
		out[i] = n
	}
	return out, nil
}

func parseHash(op, field, s string) (plumbing.Hash, error) {
	if !plumbing.IsHash(s) {
		return plumbing.ZeroHash, Errorf(KindMetadataMalformed, op, "%s: not a valid object id: %q", field, s)
	}
	return plumbing.NewHash(s), nil
}
