package ports

import (
	"errors"
	"time"
)

// ErrNothingToArchive is returned by Create when the manifest is empty after
// exclusions. It mirrors the "nothing to do" status of command-line zip tools
// and is a benign outcome, not a failure: no archive file is left behind.
var ErrNothingToArchive = errors.New("nothing to archive")

// Entry describes one member of an archive.
type Entry struct {
	Path    string    // relative to the backed-up tree root
	ModTime time.Time // stored modification time, second resolution
	IsDir   bool
}

// Archiver abstracts container operations for testability.
// Production code uses the ZipArchiver adapter; tests use MockArchiver.
type Archiver interface {
	// Create writes an archive of sourceDir at destPath and returns the
	// number of files archived. If files is nil the whole tree is walked
	// recursively; otherwise exactly those root-relative paths are archived.
	// Either way, paths matching an exclude pattern are skipped. Exclude
	// patterns match against root-relative slash paths and support ** globs.
	Create(destPath, sourceDir string, files []string, exclude []string) (int, error)

	// Entries lists the members of an archive with their stored metadata.
	Entries(archivePath string) ([]Entry, error)

	// Extract writes archive members into destDir, overwriting existing
	// files. If files is non-nil only those exact paths are extracted;
	// requested paths absent from the archive are silently skipped.
	Extract(archivePath, destDir string, files []string) error

	// ReadFile reads the contents of a single member.
	ReadFile(archivePath, path string) (string, error)
}
