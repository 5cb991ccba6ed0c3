// Package mocks provides mock implementations for testing.
package mocks

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mcdonaldj/datezip/internal/ports"
)

// MockFileSystem implements ports.FileSystem for testing. Files and their
// mtimes live in maps; directory listings are derived from the file paths.
type MockFileSystem struct {
	// Files maps paths to contents
	Files map[string][]byte
	// ModTimes maps paths to modification times for Stat
	ModTimes map[string]time.Time
	// Errors maps paths to errors (for simulating failures)
	Errors map[string]error
	// NewerResults is what FilesNewerThan returns
	NewerResults []string
	// Removed records paths passed to Remove
	Removed []string
	// MkdirCalls records paths passed to MkdirAll
	MkdirCalls []string
}

// NewMockFileSystem creates a new mock filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files:    make(map[string][]byte),
		ModTimes: make(map[string]time.Time),
		Errors:   make(map[string]error),
	}
}

// AddFile registers a file with content and mtime.
func (m *MockFileSystem) AddFile(path string, content []byte, mtime time.Time) {
	m.Files[path] = content
	m.ModTimes[path] = mtime
}

// ReadDir lists the immediate children of name derived from Files keys.
func (m *MockFileSystem) ReadDir(name string) ([]os.DirEntry, error) {
	if err, ok := m.Errors[name]; ok {
		return nil, err
	}
	prefix := name + string(filepath.Separator)
	seen := make(map[string]bool)
	var names []string
	for path := range m.Files {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		first := strings.SplitN(rest, string(filepath.Separator), 2)[0]
		if !seen[first] {
			seen[first] = true
			names = append(names, first)
		}
	}
	if len(names) == 0 {
		return nil, os.ErrNotExist
	}
	sort.Strings(names)
	entries := make([]os.DirEntry, 0, len(names))
	for _, n := range names {
		full := filepath.Join(name, n)
		_, isFile := m.Files[full]
		entries = append(entries, mockDirEntry{name: n, isDir: !isFile})
	}
	return entries, nil
}

// Stat returns info for a registered file.
func (m *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	if err, ok := m.Errors[name]; ok {
		return nil, err
	}
	content, ok := m.Files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return mockFileInfo{
		name:    filepath.Base(name),
		size:    int64(len(content)),
		modTime: m.ModTimes[name],
	}, nil
}

// MkdirAll records the call.
func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	if err, ok := m.Errors[path]; ok {
		return err
	}
	m.MkdirCalls = append(m.MkdirCalls, path)
	return nil
}

// ReadFile returns a registered file's content.
func (m *MockFileSystem) ReadFile(name string) ([]byte, error) {
	if err, ok := m.Errors[name]; ok {
		return nil, err
	}
	content, ok := m.Files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return content, nil
}

// WriteFile stores content in the mock.
func (m *MockFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	if err, ok := m.Errors[name]; ok {
		return err
	}
	m.Files[name] = data
	return nil
}

// Remove deletes a registered file and records the call.
func (m *MockFileSystem) Remove(name string) error {
	if err, ok := m.Errors[name]; ok {
		return err
	}
	if _, ok := m.Files[name]; !ok {
		return os.ErrNotExist
	}
	delete(m.Files, name)
	delete(m.ModTimes, name)
	m.Removed = append(m.Removed, name)
	return nil
}

// FilesNewerThan returns the configured result.
func (m *MockFileSystem) FilesNewerThan(root string, ref time.Time, skipDirs []string) ([]string, error) {
	if err, ok := m.Errors["FilesNewerThan"]; ok {
		return nil, err
	}
	return m.NewerResults, nil
}

// mockFileInfo implements os.FileInfo.
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (i mockFileInfo) Name() string       { return i.name }
func (i mockFileInfo) Size() int64        { return i.size }
func (i mockFileInfo) Mode() os.FileMode  { return 0644 }
func (i mockFileInfo) ModTime() time.Time { return i.modTime }
func (i mockFileInfo) IsDir() bool        { return i.isDir }
func (i mockFileInfo) Sys() any           { return nil }

// mockDirEntry implements os.DirEntry.
type mockDirEntry struct {
	name  string
	isDir bool
}

func (e mockDirEntry) Name() string               { return e.name }
func (e mockDirEntry) IsDir() bool                { return e.isDir }
func (e mockDirEntry) Type() os.FileMode          { return 0 }
func (e mockDirEntry) Info() (os.FileInfo, error) { return mockFileInfo{name: e.name, isDir: e.isDir}, nil }

// Compile-time check that MockFileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*MockFileSystem)(nil)
