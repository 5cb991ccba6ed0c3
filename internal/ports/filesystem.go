// Package ports defines interfaces (contracts) for external dependencies.
// These enable dependency injection and testability via mock implementations.
package ports

import (
	"os"
	"time"
)

// FileSystem abstracts filesystem operations for testability.
// Production code uses the OSFileSystem adapter; tests use MockFileSystem.
type FileSystem interface {
	// ReadDir reads the named directory and returns directory entries.
	ReadDir(name string) ([]os.DirEntry, error)

	// Stat returns file info for the named file.
	Stat(name string) (os.FileInfo, error)

	// MkdirAll creates a directory along with any necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// ReadFile reads the named file and returns the contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Remove removes the named file or empty directory.
	Remove(name string) error

	// FilesNewerThan walks the tree rooted at root and returns the
	// root-relative slash paths of all regular files whose modification
	// time is strictly after ref. Directories named in skipDirs are not
	// descended into.
	FilesNewerThan(root string, ref time.Time, skipDirs []string) ([]string, error)
}
