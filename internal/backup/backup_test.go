package backup

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/config"
	"github.com/mcdonaldj/datezip/internal/mocks"
	"github.com/mcdonaldj/datezip/internal/ports"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Root:   t.TempDir(),
		Prefix: "datezip",
	}
}

func fixedClock(ts string) func() time.Time {
	t, err := time.ParseInLocation(archive.TimestampLayout, ts, time.Local)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

// addArchive registers an existing archive file in the mock backup dir.
func addArchive(fs *mocks.MockFileSystem, cfg config.Config, ts string, kind archive.Kind, mtime time.Time) string {
	path := filepath.Join(cfg.BackupDir(), archive.FileName(cfg.Prefix, ts, kind))
	fs.AddFile(path, []byte("zip"), mtime)
	return path
}

func TestFirstBackupIsFull(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()
	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_143000")

	result, err := e.Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Kind != archive.Full {
		t.Errorf("kind = %v, want FULL", result.Kind)
	}
	if result.Skipped {
		t.Error("first backup should not be skipped")
	}
	if len(arch.CreateCalls) != 1 {
		t.Fatalf("Create called %d times", len(arch.CreateCalls))
	}
	call := arch.CreateCalls[0]
	if call.Files != nil {
		t.Errorf("full backup passed a manifest: %v", call.Files)
	}
	wantName := "datezip_20240216_143000_FULL.zip"
	if filepath.Base(call.DestPath) != wantName {
		t.Errorf("dest = %q, want %q", filepath.Base(call.DestPath), wantName)
	}
}

func TestSameDayBackupIsIncremental(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()
	addArchive(fs, cfg, "20240216_100000", archive.Full,
		time.Date(2024, 2, 16, 10, 0, 0, 0, time.Local))
	fs.NewerResults = []string{"src/main.go", "README.md"}

	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_143000")

	result, err := e.Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Kind != archive.Incremental {
		t.Errorf("kind = %v, want INC", result.Kind)
	}
	if len(arch.CreateCalls) != 1 {
		t.Fatalf("Create called %d times", len(arch.CreateCalls))
	}
	call := arch.CreateCalls[0]
	if len(call.Files) != 2 {
		t.Errorf("manifest = %v, want the changed files", call.Files)
	}
	if filepath.Base(call.DestPath) != "datezip_20240216_143000_INC.zip" {
		t.Errorf("dest = %q", filepath.Base(call.DestPath))
	}
}

func TestNewDayBackupIsFull(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()
	addArchive(fs, cfg, "20240215_230000", archive.Incremental,
		time.Date(2024, 2, 15, 23, 0, 0, 0, time.Local))

	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_090000")

	result, err := e.Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Kind != archive.Full {
		t.Errorf("kind = %v, want FULL after a day boundary", result.Kind)
	}
}

func TestIncrementalSkipsWhenNothingChanged(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()
	addArchive(fs, cfg, "20240216_100000", archive.Full,
		time.Date(2024, 2, 16, 10, 0, 0, 0, time.Local))
	fs.NewerResults = nil

	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_143000")

	result, err := e.Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected skipped result")
	}
	if len(arch.CreateCalls) != 0 {
		t.Errorf("Create should not run when nothing changed, got %d calls", len(arch.CreateCalls))
	}
}

func TestForcedIncrementalWithoutBaseFails(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()

	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_143000")

	forced := archive.Incremental
	if _, err := e.Run(cfg, &forced); err == nil {
		t.Fatal("forced incremental on an empty set should fail")
	}
}

func TestForcedFullOverridesSameDay(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()
	addArchive(fs, cfg, "20240216_100000", archive.Full,
		time.Date(2024, 2, 16, 10, 0, 0, 0, time.Local))

	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_143000")

	forced := archive.Full
	result, err := e.Run(cfg, &forced)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Kind != archive.Full {
		t.Errorf("kind = %v, want forced FULL", result.Kind)
	}
	if arch.CreateCalls[0].Files != nil {
		t.Error("forced full should archive the whole tree, not a manifest")
	}
}

func TestNothingToArchiveIsBenign(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()
	arch.Errors["Create"] = ports.ErrNothingToArchive

	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_143000")

	result, err := e.Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Skipped || result.Reason != "nothing to archive" {
		t.Errorf("result = %+v, want benign skip", result)
	}
}

func TestCreateFailureRemovesPartialArchive(t *testing.T) {
	cfg := testConfig(t)
	fs := mocks.NewMockFileSystem()
	arch := mocks.NewMockArchiver()
	arch.Errors["Create"] = errors.New("disk full")

	e := NewEngine(fs, arch)
	e.Now = fixedClock("20240216_143000")

	// Simulate the archiver leaving a partial file behind.
	dest := filepath.Join(cfg.BackupDir(), "datezip_20240216_143000_FULL.zip")
	fs.AddFile(dest, []byte("partial"), time.Now())

	forced := archive.Full
	if _, err := e.Run(cfg, &forced); err == nil {
		t.Fatal("expected create failure to propagate")
	}
	found := false
	for _, r := range fs.Removed {
		if r == dest {
			found = true
		}
	}
	if !found {
		t.Errorf("partial archive not cleaned up; removed = %v", fs.Removed)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
