// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package editor spawns a user-configured editor over a temp file and
// returns the post-edit bytes (spec.md §6, §4.7).
package editor

import (
	"os"
	"os/exec"

	"emperror.dev/errors"
	"github.com/rs/zerolog/log"

	"github.com/google/patchstack/internal/stack"
)

// Config supplies the two configuration lookups the resolution order
// needs; gitrepo.Repository satisfies this via its config accessors.
type Config interface {
	ConfigValue(key string) (string, bool)
}

// Editor spawns an editor over a file and returns its contents.
type Editor interface {
	Edit(path string, cfg Config) ([]byte, error)
}

// Shell dispatches the resolved editor command through a shell, matching
// git's own behavior so that arguments embedded in the editor value (e.g.
// "code --wait") are honored.
type Shell struct{}

// Resolve returns the editor command per spec.md §6's resolution order:
// $GIT_EDITOR, stgit.editor, core.editor, $VISUAL, $EDITOR, "vi".
func Resolve(cfg Config) string {
	if v := os.Getenv("GIT_EDITOR"); v != "" {
		return v
	}
	if v, ok := cfg.ConfigValue("stgit.editor"); ok && v != "" {
		return v
	}
	if v, ok := cfg.ConfigValue("core.editor"); ok && v != "" {
		return v
	}
	if v := os.Getenv("VISUAL"); v != "" {
		return v
	}
	if v := os.Getenv("EDITOR"); v != "" {
		return v
	}
	return "vi"
}

// Edit writes nothing itself: path must already contain the buffer to
// present. It spawns the resolved editor on path (the no-op editor ":"
// spawns nothing), and on success reads the file back and removes it. On
// failure the file is left on disk (spec.md
// §4.7's policy decision) so EditorFailed can name a recoverable path.
func (Shell) Edit(path string, cfg Config) ([]byte, error) {
	command := Resolve(cfg)
	if command != ":" {
		cmd := exec.Command("sh", "-c", command+` "$@"`, "sh", path)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		log.Debug().Str("command", command).Str("path", path).Msg("editor: spawning")
		if err := cmd.Run(); err != nil {
			return nil, stack.Wrap(stack.KindEditorFailed, "edit", err, "editor %q exited abnormally; buffer preserved at %s", command, path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIff(err, "reading back edited file %s", path)
	}
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("editor: failed to remove temp file after successful edit")
	}
	return data, nil
}
