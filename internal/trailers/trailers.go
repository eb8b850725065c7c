// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package trailers appends structured trailer lines (Signed-off-by,
// Acked-by, Reviewed-by, ...) to a commit message by shelling out to `git
// interpret-trailers`, exactly as the original source does (spec.md §4.8):
// this remains a subprocess call even though the rest of the core talks to
// the CAVCS through go-git, because trailer formatting is a message-text
// transform with no object-database side effect.
package trailers

import (
	"bytes"
	"context"
	"os/exec"

	"emperror.dev/errors"
	"github.com/rs/zerolog/log"
)

// Trailer is a single (token, value) pair, e.g. ("Signed-off-by", "A
// Author <a@example.com>").
type Trailer struct {
	Token string
	Value string
}

// Formatter appends trailers to a commit message.
type Formatter interface {
	AppendTrailers(ctx context.Context, message string, ts []Trailer) (string, error)
}

// GitFormatter shells out to `git interpret-trailers`.
type GitFormatter struct{}

// AppendTrailers returns message unchanged if ts is empty (no subprocess is
// spawned), else pipes message through `git interpret-trailers
// --trailer=TOKEN=VALUE ...` and returns its stdout.
func (GitFormatter) AppendTrailers(ctx context.Context, message string, ts []Trailer) (string, error) {
	if len(ts) == 0 {
		return message, nil
	}
	args := make([]string, 0, len(ts)+1)
	args = append(args, "interpret-trailers")
	for _, t := range ts {
		args = append(args, "--trailer="+t.Token+"="+t.Value)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Stdin = bytes.NewBufferString(message)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Strs("args", args).Msg("trailers: invoking git interpret-trailers")
	if err := cmd.Run(); err != nil {
		return "", errors.WrapIff(err, "git interpret-trailers: %s", stderr.String())
	}
	return stdout.String(), nil
}
