package core

import (
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"
)

// ErrNotInRepository is returned by FindRepoRoot outside any git work tree.
var ErrNotInRepository = errors.Base("not inside a git repository")

// FindRepoRoot returns the nearest ancestor of path (or path itself) that
// contains a .git entry. Worktrees and submodules use a .git file, which
// counts too.
func FindRepoRoot(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		if _, err := os.Lstat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Errorf("%w: %s", ErrNotInRepository, path)
		}
		dir = parent
	}
}
