// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package patchname implements the validated patch-name identifier used to
// key patches within a stack.
package patchname

import (
	"strings"

	"emperror.dev/errors"
)

// reserved names collide with on-disk entries the tree builder writes
// alongside the patches subtree, or with paths a shell would misparse.
var reserved = map[string]bool{
	"stack.json": true,
	"patches":    true,
	".":          true,
	"..":         true,
}

// Name is a validated, immutable patch identifier. The zero value is not a
// valid Name; construct one with Parse.
type Name struct {
	s string
}

// Parse validates s and returns the corresponding Name.
func Parse(s string) (Name, error) {
	if err := validate(s); err != nil {
		return Name{}, errors.WrapIff(err, "invalid patch name %q", s)
	}
	return Name{s: s}, nil
}

// MustParse is Parse but panics on an invalid name. Intended for literals in
// tests and internal bookkeeping, never for user-supplied input.
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

func validate(s string) error {
	if s == "" {
		return errors.New("patch name must not be empty")
	}
	if strings.HasPrefix(s, "-") {
		return errors.New("patch name must not start with '-'")
	}
	if strings.Contains(s, "..") {
		return errors.New("patch name must not contain '..'")
	}
	if strings.ContainsAny(s, "/\\") {
		return errors.New("patch name must not contain a path separator")
	}
	for _, r := range s {
		if r <= ' ' || r == 0x7f {
			return errors.New("patch name must not contain whitespace or control characters")
		}
	}
	if reserved[s] {
		return errors.Errorf("patch name %q is reserved", s)
	}
	return nil
}

// String returns the stored identifier.
func (n Name) String() string { return n.s }

// IsZero reports whether n is the zero value (never produced by Parse).
func (n Name) IsZero() bool { return n.s == "" }

// Less provides a stable ordering for deterministic JSON emission (P3).
func (n Name) Less(other Name) bool { return n.s < other.s }

// Compare orders names lexicographically; it satisfies the shape expected
// by slices.SortFunc.
func Compare(a, b Name) int {
	switch {
	case a.s < b.s:
		return -1
	case a.s > b.s:
		return 1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler so a Name can be used
// directly as a JSON object key (stdlib json sorts map[Name]T by the
// marshaled text, preserving the ordering Compare defines).
func (n Name) MarshalText() ([]byte, error) {
	if n.IsZero() {
		return nil, errors.New("cannot marshal zero-value patch name")
	}
	return []byte(n.s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Name) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
