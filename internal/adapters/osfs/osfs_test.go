package osfs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestFilesNewerThan(t *testing.T) {
	root := t.TempDir()
	ref := time.Date(2024, 2, 16, 12, 0, 0, 0, time.Local)
	old := ref.Add(-time.Hour)
	fresh := ref.Add(time.Hour)

	write := func(rel string, mtime time.Time) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	write("old.txt", old)
	write("exactly.txt", ref) // not strictly newer, excluded
	write("fresh.txt", fresh)
	write("sub/nested.txt", fresh)
	write(".datezip/cache.zip", fresh)
	write(".git/objects/blob", fresh)

	fs := New()
	got, err := fs.FilesNewerThan(root, ref, []string{".datezip", ".git"})
	if err != nil {
		t.Fatalf("FilesNewerThan failed: %v", err)
	}
	sort.Strings(got)

	want := []string{"fresh.txt", "sub/nested.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilesNewerThanMissingRoot(t *testing.T) {
	fs := New()
	files, err := fs.FilesNewerThan(filepath.Join(t.TempDir(), "nope"), time.Now(), nil)
	// A missing root is a walk error on the top entry, which is skipped.
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := New()
	path := filepath.Join(t.TempDir(), "sub", "file.txt")
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := fs.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	info, err := fs.Stat(path)
	if err != nil || info.Size() != 5 {
		t.Fatalf("Stat = %+v, %v", info, err)
	}
	if err := fs.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat(path); !os.IsNotExist(err) {
		t.Error("file survived Remove")
	}
}
