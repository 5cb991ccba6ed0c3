// Package ziparchiver provides an archiver adapter using the archive/zip package.
package ziparchiver

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mcdonaldj/datezip/internal/ports"
)

// ZipArchiver implements ports.Archiver using archive/zip.
type ZipArchiver struct{}

// New creates a new ZipArchiver adapter.
func New() *ZipArchiver {
	return &ZipArchiver{}
}

// Excluded reports whether the root-relative slash path matches any pattern.
// Patterns support ** via doublestar; a malformed pattern never matches.
func Excluded(relPath string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// Create writes a zip archive of sourceDir at destPath. With files == nil the
// whole tree is archived; otherwise exactly the listed root-relative paths.
// Returns ports.ErrNothingToArchive (and leaves no file behind) when nothing
// survives exclusion.
func (a *ZipArchiver) Create(destPath, sourceDir string, files []string, exclude []string) (int, error) {
	zipFile, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}

	w := zip.NewWriter(zipFile)
	var count int
	var addErr error

	if files == nil {
		addErr = addTree(w, sourceDir, exclude, &count)
	} else {
		addErr = addManifest(w, sourceDir, files, exclude, &count)
	}

	if closeErr := w.Close(); addErr == nil {
		addErr = closeErr
	}
	if closeErr := zipFile.Close(); addErr == nil {
		addErr = closeErr
	}
	if addErr != nil {
		_ = os.Remove(destPath)
		return 0, addErr
	}
	if count == 0 {
		_ = os.Remove(destPath)
		return 0, ports.ErrNothingToArchive
	}
	return count, nil
}

// addTree walks sourceDir recursively, adding every non-excluded file.
func addTree(w *zip.Writer, sourceDir string, exclude []string, count *int) error {
	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if path == sourceDir {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if Excluded(rel, exclude) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		if err := addFile(w, path, rel, info); err != nil {
			return nil
		}
		*count++
		return nil
	})
}

// addManifest adds exactly the listed paths, minus exclusions. Paths that no
// longer exist on disk are skipped.
func addManifest(w *zip.Writer, sourceDir string, files, exclude []string, count *int) error {
	for _, rel := range files {
		rel = filepath.ToSlash(rel)
		if Excluded(rel, exclude) {
			continue
		}
		path := filepath.Join(sourceDir, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := addFile(w, path, rel, info); err != nil {
			continue
		}
		*count++
	}
	return nil
}

// addFile writes one file into the archive under its root-relative name.
// The stored modification time is the change-detection anchor for the
// history index, so the header keeps the file's own mtime.
func addFile(w *zip.Writer, path, rel string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = rel
	header.Method = zip.Deflate

	writer, err := w.CreateHeader(header)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(writer, file)
	_ = file.Close() // Explicitly ignore close error - data already copied
	return copyErr
}

// Entries lists the members of an archive with their stored metadata.
func (a *ZipArchiver) Entries(archivePath string) ([]ports.Entry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	entries := make([]ports.Entry, 0, len(r.File))
	for _, f := range r.File {
		entries = append(entries, ports.Entry{
			Path:    strings.TrimSuffix(f.Name, "/"),
			ModTime: f.Modified.Truncate(time.Second),
			IsDir:   f.FileInfo().IsDir(),
		})
	}
	return entries, nil
}

// Extract writes archive members into destDir, overwriting existing files.
// A non-nil files list restricts extraction to those exact paths; requested
// paths missing from the archive are silently skipped.
func (a *ZipArchiver) Extract(archivePath, destDir string, files []string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	var want map[string]bool
	if files != nil {
		want = make(map[string]bool, len(files))
		for _, f := range files {
			want[filepath.ToSlash(f)] = true
		}
	}

	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolving destination path: %w", err)
	}
	absDestDir = filepath.Clean(absDestDir)

	for _, f := range r.File {
		if want != nil && !want[f.Name] {
			continue
		}
		// SECURITY: Block symlinks to prevent symlink attacks
		if f.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("symlinks not supported in backups: %s", f.Name)
		}

		fpath := filepath.Join(destDir, filepath.FromSlash(f.Name))

		// SECURITY: Check for ZipSlip vulnerability
		if !isWithinDir(absDestDir, fpath) {
			return fmt.Errorf("invalid file path (path traversal detected): %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, os.ModePerm); err != nil {
				return fmt.Errorf("creating directory %s: %w", fpath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm); err != nil {
			return fmt.Errorf("creating parent directory for %s: %w", fpath, err)
		}

		if err := extractFile(f, fpath); err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}

	return nil
}

// MaxDecompressSize is the maximum allowed uncompressed file size (10GB).
// This prevents decompression bomb attacks (G110).
const MaxDecompressSize = 10 * 1024 * 1024 * 1024 // 10GB

// extractFile extracts a single file from the zip.
func extractFile(f *zip.File, destPath string) error {
	// SECURITY: Limit decompression size to prevent zip bombs (G110)
	declaredSize := f.UncompressedSize64
	if declaredSize > MaxDecompressSize {
		return fmt.Errorf("file too large: %d bytes exceeds limit of %d bytes", declaredSize, MaxDecompressSize)
	}

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer func() { _ = outFile.Close() }()

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	// Use LimitReader to enforce size limit during decompression.
	// Add 1 byte to detect if actual size exceeds declared size.
	limitedReader := io.LimitReader(rc, int64(declaredSize)+1)
	written, err := io.Copy(outFile, limitedReader)
	if err != nil {
		return err
	}
	if written > int64(declaredSize) {
		return fmt.Errorf("decompressed size exceeds declared size")
	}

	return nil
}

// isWithinDir checks if the target path is within the base directory.
func isWithinDir(absBaseDir, targetPath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absTarget = filepath.Clean(absTarget)

	return strings.HasPrefix(absTarget, absBaseDir+string(filepath.Separator)) ||
		absTarget == absBaseDir
}

// ReadFile reads the contents of a file from inside an archive.
func (a *ZipArchiver) ReadFile(archivePath, path string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()

	path = filepath.ToSlash(path)
	for _, f := range r.File {
		if f.Name == path {
			rc, err := f.Open()
			if err != nil {
				return "", err
			}
			defer func() { _ = rc.Close() }()

			content, err := io.ReadAll(rc)
			if err != nil {
				return "", err
			}
			return string(content), nil
		}
	}

	return "", fmt.Errorf("file not found in archive: %s", path)
}

// Compile-time check that ZipArchiver implements ports.Archiver.
var _ ports.Archiver = (*ZipArchiver)(nil)
