// Package gitroot locates the enclosing version-control root by walking
// upward looking for the repository metadata directory. It deliberately does
// not shell out to git, so root detection works without the tool installed.
package gitroot

import (
	"os"
	"path/filepath"
)

// Find walks from dir upward and returns the first directory containing a
// .git entry. ok is false when no repository encloses dir.
func Find(dir string) (root string, ok bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
