// Package worktree implements the OS-backed patch.WorkingTree collaborator:
// one file open per call, O_CREAT|O_EXCL writes with rename-through-temp on
// EEXIST, and a path-traversal guard on every path it touches.
package worktree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	modeSymlink = 0o120000
	modeGitlink = 0o160000
)

// Tree is a patch.WorkingTree rooted at a repository's working directory.
type Tree struct {
	root string
}

// New returns a Tree rooted at root (typically Repository.WorkDir()).
func New(root string) *Tree {
	return &Tree{root: root}
}

// resolve joins path onto the tree's root and rejects any result that
// escapes it.
func (t *Tree) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))[1:]
	full := filepath.Join(t.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(t.root)+string(filepath.Separator)) && full != filepath.Clean(t.root) {
		return "", fmt.Errorf("worktree: path %q escapes working tree", path)
	}
	return full, nil
}

// Stat implements patch.WorkingTree.
func (t *Tree) Stat(path string) (mode uint32, exists bool, err error) {
	full, err := t.resolve(path)
	if err != nil {
		return 0, false, err
	}
	info, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return modeSymlink, true, nil
	}
	if info.Mode().Perm()&0o100 != 0 {
		return 0o100755, true, nil
	}
	return 0o100644, true, nil
}

// ReadFile implements patch.WorkingTree.
func (t *Tree) ReadFile(path string) ([]byte, error) {
	full, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: full is resolved and bounds-checked against the tree root
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("worktree: reading %s: %w", path, err)
	}
	return data, nil
}

// ReadSymlink implements patch.WorkingTree.
func (t *Tree) ReadSymlink(path string) (string, error) {
	full, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	target, err := os.Readlink(full)
	if err != nil {
		return "", fmt.Errorf("worktree: reading symlink %s: %w", path, err)
	}
	return target, nil
}

// WriteFile implements patch.WorkingTree: it creates path with O_CREAT|
// O_EXCL, and on EEXIST falls back to writing a sibling temp file and
// renaming it over the target, so a concurrent reader never observes a
// partially-written file.
func (t *Tree) WriteFile(path string, mode uint32, content []byte) error {
	full, err := t.resolve(path)
	if err != nil {
		return err
	}

	if mode == modeSymlink {
		_ = os.Remove(full)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("worktree: creating parent dirs for %s: %w", path, err)
		}
		return os.Symlink(string(content), full)
	}
	if mode == modeGitlink {
		return fmt.Errorf("worktree: cannot write gitlink entry %s", path)
	}

	perm := os.FileMode(0o644)
	if mode&0o111 != 0 {
		perm = 0o755
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("worktree: creating parent dirs for %s: %w", path, err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err == nil {
		defer f.Close()
		if _, err := f.Write(content); err != nil {
			return fmt.Errorf("worktree: writing %s: %w", path, err)
		}
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("worktree: creating %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".patch-*")
	if err != nil {
		return fmt.Errorf("worktree: creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("worktree: writing temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("worktree: closing temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("worktree: chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("worktree: renaming into place %s: %w", path, err)
	}
	return nil
}

// Remove implements patch.WorkingTree.
func (t *Tree) Remove(path string) error {
	full, err := t.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("worktree: removing %s: %w", path, err)
	}
	return nil
}
