// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import "github.com/google/patchstack/internal/patchname"

// PatchIter is a lazy, finite, non-restartable iterator over
// applied ++ unapplied ++ hidden (spec.md §4.1).
type PatchIter struct {
	segments [][]patchname.Name
	seg, idx int
}

func newPatchIter(applied, unapplied, hidden []patchname.Name) *PatchIter {
	return &PatchIter{segments: [][]patchname.Name{applied, unapplied, hidden}}
}

// Next returns the next patch name and true, or the zero Name and false
// once the iterator is exhausted.
func (it *PatchIter) Next() (patchname.Name, bool) {
	for it.seg < len(it.segments) {
		seg := it.segments[it.seg]
		if it.idx < len(seg) {
			n := seg[it.idx]
			it.idx++
			return n, true
		}
		it.seg++
		it.idx = 0
	}
	return patchname.Name{}, false
}

// Count drains the iterator and returns how many names it yielded. After
// Count returns, the iterator is exhausted (it is non-restartable).
func (it *PatchIter) Count() int {
	n := 0
	for {
		if _, ok := it.Next(); !ok {
			return n
		}
		n++
	}
}

// Collect drains the iterator into a slice.
func (it *PatchIter) Collect() []patchname.Name {
	var out []patchname.Name
	for {
		n, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, n)
	}
}
