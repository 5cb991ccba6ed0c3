package mocks

import (
	"github.com/mcdonaldj/datezip/internal/ports"
)

// MockArchiver implements ports.Archiver for testing.
type MockArchiver struct {
	// CreateCalls records calls to Create
	CreateCalls []CreateCall
	// ExtractCalls records calls to Extract
	ExtractCalls []ExtractCall
	// EntryResults maps archive paths to their member listings
	EntryResults map[string][]ports.Entry
	// ReadResults maps "archivePath:path" to content
	ReadResults map[string]string
	// Errors maps method names to errors
	Errors map[string]error
	// ExtractErrors maps archive paths to per-archive Extract errors
	ExtractErrors map[string]error
	// CreateResult is the default file count to return
	CreateResult int
}

// CreateCall records parameters of a Create call.
type CreateCall struct {
	DestPath  string
	SourceDir string
	Files     []string
	Exclude   []string
}

// ExtractCall records parameters of an Extract call.
type ExtractCall struct {
	ArchivePath string
	DestDir     string
	Files       []string
}

// NewMockArchiver creates a new mock archiver.
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{
		EntryResults:  make(map[string][]ports.Entry),
		ReadResults:   make(map[string]string),
		Errors:        make(map[string]error),
		ExtractErrors: make(map[string]error),
		CreateResult:  1, // Default to 1 file
	}
}

// Create records the call and returns the configured count or error.
func (m *MockArchiver) Create(destPath, sourceDir string, files []string, exclude []string) (int, error) {
	m.CreateCalls = append(m.CreateCalls, CreateCall{
		DestPath:  destPath,
		SourceDir: sourceDir,
		Files:     files,
		Exclude:   exclude,
	})
	if err, ok := m.Errors["Create"]; ok {
		return 0, err
	}
	return m.CreateResult, nil
}

// Entries returns the configured member listing for an archive.
func (m *MockArchiver) Entries(archivePath string) ([]ports.Entry, error) {
	if err, ok := m.Errors["Entries"]; ok {
		return nil, err
	}
	if entries, ok := m.EntryResults[archivePath]; ok {
		return entries, nil
	}
	return nil, nil
}

// Extract records the call and returns any configured error.
func (m *MockArchiver) Extract(archivePath, destDir string, files []string) error {
	m.ExtractCalls = append(m.ExtractCalls, ExtractCall{
		ArchivePath: archivePath,
		DestDir:     destDir,
		Files:       files,
	})
	if err, ok := m.ExtractErrors[archivePath]; ok {
		return err
	}
	if err, ok := m.Errors["Extract"]; ok {
		return err
	}
	return nil
}

// ReadFile returns the configured content for "archivePath:path".
func (m *MockArchiver) ReadFile(archivePath, path string) (string, error) {
	if err, ok := m.Errors["ReadFile"]; ok {
		return "", err
	}
	return m.ReadResults[archivePath+":"+path], nil
}

// Compile-time check that MockArchiver implements ports.Archiver.
var _ ports.Archiver = (*MockArchiver)(nil)
