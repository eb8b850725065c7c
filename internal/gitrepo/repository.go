// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package gitrepo is the CAVCS glue: it is the only package in this module
// that opens a go-git repository and reads or writes its objects,
// references, reflogs and config. Packages above it (internal/stack,
// internal/cmd) import go-git only for value types such as plumbing.Hash,
// object.Commit and object.Tree; internal/tempindex also reaches go-git's
// index storer through Raw.
package gitrepo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitformat "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Repository is a thin, mockable-by-interface wrapper over a go-git
// repository plus the git-dir filesystem handle needed to append reflog
// entries (go-git does not maintain reflogs for references it updates
// through Storer.SetReference, only through its own porcelain commit path).
type Repository struct {
	repo   *git.Repository
	gitDir billy.Filesystem
}

// Open opens the repository rooted at workdir (a plain, non-bare checkout).
func Open(workdir string) (*Repository, error) {
	wt := osfs.New(workdir)
	dot, err := wt.Chroot(".git")
	if err != nil {
		return nil, errors.WrapIff(err, "opening git dir under %s", workdir)
	}
	storer := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	repo, err := git.Open(storer, wt)
	if err != nil {
		return nil, errors.WrapIff(err, "opening repository at %s", workdir)
	}
	return &Repository{repo: repo, gitDir: dot}, nil
}

// Init creates a new plain repository at workdir, for tests and for
// deterministic scenario fixtures.
func Init(workdir string) (*Repository, error) {
	wt := osfs.New(workdir)
	dot, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}
	storer := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	repo, err := git.Init(storer, wt)
	if err != nil {
		return nil, errors.WrapIff(err, "initializing repository at %s", workdir)
	}
	return &Repository{repo: repo, gitDir: dot}, nil
}

// CurrentBranch returns the short name of the branch HEAD points at, or an
// error if HEAD is detached.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errors.WrapIff(err, "resolving HEAD")
	}
	if !head.Name().IsBranch() {
		return "", errors.New("HEAD is detached, not on a branch")
	}
	return head.Name().Short(), nil
}

// WorkDir returns the repository's working-tree root, or "" if it cannot
// be resolved to a filesystem path.
func (r *Repository) WorkDir() string {
	if wt, err := r.repo.Worktree(); err == nil {
		if fs, ok := wt.Filesystem.(interface{ Root() string }); ok {
			return fs.Root()
		}
	}
	return ""
}

// GitDir returns the repository's .git directory path.
func (r *Repository) GitDir() string {
	if fs, ok := r.gitDir.(interface{ Root() string }); ok {
		return fs.Root()
	}
	return ""
}

// Raw exposes the underlying go-git repository for capabilities that need
// lower-level access (internal/tempindex swaps the index through it). The
// stack package itself never calls this.
func (r *Repository) Raw() *git.Repository { return r.repo }

// TreeEntry is a single named entry in a tree object.
type TreeEntry struct {
	Name string
	Mode uint32 // git filemode bits, e.g. 0100644 (blob) or 0040000 (tree)
	Hash plumbing.Hash
}

const (
	ModeBlob       = uint32(0o100644)
	ModeExecutable = uint32(0o100755)
	ModeTree       = uint32(0o040000)
)

// WriteBlob stores data as a blob object and returns its hash.
func (r *Repository) WriteBlob(data []byte) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

// WriteTree builds and stores a tree object from entries, sorted per git's
// tree-entry ordering (subtrees compare as if their name had a trailing
// '/').
func (r *Repository) WriteTree(entries []TreeEntry) (plumbing.Hash, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	tree := &object.Tree{}
	for _, e := range sorted {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: modeFromBits(e.Mode),
			Hash: e.Hash,
		})
	}
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.TreeObject)
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

func treeSortKey(e TreeEntry) string {
	if e.Mode == ModeTree {
		return e.Name + "/"
	}
	return e.Name
}

// ReadTree loads a tree object by hash.
func (r *Repository) ReadTree(h plumbing.Hash) (*object.Tree, error) {
	return object.GetTree(r.repo.Storer, h)
}

// ReadBlob reads a blob's content by hash.
func (r *Repository) ReadBlob(h plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(r.repo.Storer, h)
	if err != nil {
		return nil, err
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	buf := make([]byte, blob.Size)
	if _, err := io.ReadFull(rd, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// CommitSpec describes a commit to be written.
type CommitSpec struct {
	Tree      plumbing.Hash
	Parents   []plumbing.Hash
	Author    object.Signature
	Committer object.Signature
	Message   string
}

// WriteCommit stores a commit object and returns its hash.
func (r *Repository) WriteCommit(spec CommitSpec) (plumbing.Hash, error) {
	commit := &object.Commit{
		Author:       spec.Author,
		Committer:    spec.Committer,
		Message:      spec.Message,
		TreeHash:     spec.Tree,
		ParentHashes: spec.Parents,
	}
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

// ReadCommit loads a commit object by hash.
func (r *Repository) ReadCommit(h plumbing.Hash) (*object.Commit, error) {
	return object.GetCommit(r.repo.Storer, h)
}

// ResolveRef resolves a reference to a commit hash. ok is false if the
// reference does not exist.
func (r *Repository) ResolveRef(name plumbing.ReferenceName) (h plumbing.Hash, ok bool, err error) {
	ref, err := r.repo.Storer.Reference(name)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, err
	}
	return ref.Hash(), true, nil
}

// UpdateRef force-updates name to point at to, appending a reflog entry in
// the caller's identity with message. This is the sole mutator of
// refs/stacks/<branch>; it is always force semantics per spec.md §4.3.5.
func (r *Repository) UpdateRef(name plumbing.ReferenceName, to plumbing.Hash, who object.Signature, message string) error {
	old, _, err := r.ResolveRef(name)
	if err != nil {
		return err
	}
	newRef := plumbing.NewHashReference(name, to)
	if err := r.repo.Storer.SetReference(newRef); err != nil {
		return errors.WrapIff(err, "updating reference %s", name)
	}
	return r.appendReflog(name, old, to, who, message)
}

// DeleteRef removes a reference and its reflog file.
func (r *Repository) DeleteRef(name plumbing.ReferenceName) error {
	if err := r.repo.Storer.RemoveReference(name); err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return err
	}
	path := logPath(name)
	if err := r.gitDir.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapIff(err, "removing reflog for %s", name)
	}
	return nil
}

// ReflogEntry is one line of a reference's undo history.
type ReflogEntry struct {
	Old, New plumbing.Hash
	Who      object.Signature
	Message  string
}

// Reflog reads every entry for name, oldest first.
func (r *Repository) Reflog(name plumbing.ReferenceName) ([]ReflogEntry, error) {
	f, err := r.gitDir.Open(logPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return parseReflog(f)
}

// reflogLine matches one line written by formatReflogLine:
// "<old> <new> <name> <<email>> <unix> <tz>\t<message>\n". The name field
// may itself contain spaces, so old/new are anchored at the front and
// <tz>\t<message> at the back, leaving "name <email>" in the middle.
var reflogLine = regexp.MustCompile(`^([0-9a-f]{40}) ([0-9a-f]{40}) (.*) <([^>]*)> (\d+) ([+-]\d{4})\t(.*)$`)

// parseReflog decodes every line of a git-format reflog file, oldest
// first (the format git itself appends to logs/refs/... in).
func parseReflog(f billy.File) ([]ReflogEntry, error) {
	var entries []ReflogEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		m := reflogLine.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.Errorf("malformed reflog line: %q", line)
		}
		unixSeconds, err := strconv.ParseInt(m[5], 10, 64)
		if err != nil {
			return nil, errors.WrapIff(err, "parsing reflog timestamp in line %q", line)
		}
		when, err := time.Parse("-0700", m[6])
		if err != nil {
			return nil, errors.WrapIff(err, "parsing reflog timezone in line %q", line)
		}
		loc := when.Location()
		entries = append(entries, ReflogEntry{
			Old: plumbing.NewHash(m[1]),
			New: plumbing.NewHash(m[2]),
			Who: object.Signature{
				Name:  m[3],
				Email: m[4],
				When:  time.Unix(unixSeconds, 0).In(loc),
			},
			Message: m[7],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func logPath(name plumbing.ReferenceName) string {
	return "logs/" + name.String()
}

func (r *Repository) appendReflog(name plumbing.ReferenceName, old, new plumbing.Hash, who object.Signature, message string) error {
	dir := "logs/" + name.String()
	if err := r.gitDir.MkdirAll(parentDir(dir), 0o755); err != nil {
		return err
	}
	f, err := r.gitDir.OpenFile(dir, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	line := formatReflogLine(old, new, who, message)
	_, err = f.Write([]byte(line))
	return err
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func formatReflogLine(old, new plumbing.Hash, who object.Signature, message string) string {
	tz := who.When.Format("-0700")
	msg := singleLine(message)
	return fmt.Sprintf("%s %s %s <%s> %d %s\t%s\n",
		old.String(), new.String(), who.Name, who.Email, who.When.Unix(), tz, msg)
}

func singleLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// DefaultSignature builds the configured committer identity, reading
// user.name/user.email from the repository config (falling back to
// environment-free defaults so tests remain hermetic).
func (r *Repository) DefaultSignature() (object.Signature, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return object.Signature{}, err
	}
	name := "patchstack"
	email := "patchstack@localhost"
	if sec := cfg.Raw.Section("user"); sec != nil {
		if v := sec.Option("name"); v != "" {
			name = v
		}
		if v := sec.Option("email"); v != "" {
			email = v
		}
	}
	return object.Signature{Name: name, Email: email, When: time.Now()}, nil
}

// ConfigValue looks up a top-level "section.key" config value (e.g.
// "core.editor", "stgit.editor"), satisfying internal/editor.Config.
func (r *Repository) ConfigValue(key string) (string, bool) {
	dot := -1
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return "", false
	}
	section, option := key[:dot], key[dot+1:]
	cfg, err := r.repo.Config()
	if err != nil {
		return "", false
	}
	sec := cfg.Raw.Section(section)
	if sec == nil || !sec.HasOption(option) {
		return "", false
	}
	return sec.Option(option), true
}

// IsProtected reads branch.<branch>.stgit.protect, which git stores as the
// "protect" option of the [branch "<branch>.stgit"] subsection.
func (r *Repository) IsProtected(branch string) (bool, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return false, err
	}
	sub := branchSubsection(cfg.Raw, branch+".stgit", false)
	if sub == nil {
		return false, nil
	}
	return sub.Option("protect") == "true", nil
}

// SetProtected writes branch.<branch>.stgit.protect.
func (r *Repository) SetProtected(branch string, protect bool) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return err
	}
	sub := branchSubsection(cfg.Raw, branch+".stgit", true)
	sub.SetOption("protect", fmt.Sprintf("%t", protect))
	return r.repo.Storer.SetConfig(cfg)
}

// ClearBranchConfig removes the branch's config keys, used by
// deinitialize: every branch.<branch>.* key and every
// branch.<branch>.stgit.* key.
func (r *Repository) ClearBranchConfig(branch string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return err
	}
	sec := cfg.Raw.Section("branch")
	kept := sec.Subsections[:0]
	for _, sub := range sec.Subsections {
		if sub.Name != branch && sub.Name != branch+".stgit" {
			kept = append(kept, sub)
		}
	}
	sec.Subsections = kept
	delete(cfg.Branches, branch)
	delete(cfg.Branches, branch+".stgit")
	return r.repo.Storer.SetConfig(cfg)
}

func branchSubsection(raw *gitformat.Config, branch string, create bool) *gitformat.Subsection {
	if !create {
		for _, sec := range raw.Sections {
			if sec.Name != "branch" {
				continue
			}
			for _, sub := range sec.Subsections {
				if sub.Name == branch {
					return sub
				}
			}
		}
		return nil
	}
	sec := raw.Section("branch")
	for _, sub := range sec.Subsections {
		if sub.Name == branch {
			return sub
		}
	}
	return sec.Subsection(branch)
}

func modeFromBits(bits uint32) filemode.FileMode {
	return filemode.FileMode(bits)
}
