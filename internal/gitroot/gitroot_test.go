package gitroot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindFromNestedDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "services", "api")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, ok := Find(nested)
	if !ok {
		t.Fatal("repository root not found")
	}
	// t.TempDir may sit behind a symlink; compare resolved paths.
	wantReal, _ := filepath.EvalSymlinks(root)
	gotReal, _ := filepath.EvalSymlinks(got)
	if gotReal != wantReal {
		t.Errorf("Find = %q, want %q", got, root)
	}
}

func TestFindAtRootItself(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, ok := Find(root); !ok {
		t.Error("root with .git not detected")
	}
}

func TestFindOutsideRepository(t *testing.T) {
	// A fresh temp dir has no enclosing repository unless the system temp
	// area is itself under version control, which it never is.
	if root, ok := Find(t.TempDir()); ok {
		t.Errorf("unexpected repository root %q", root)
	}
}

func TestFindGitFileCountsToo(t *testing.T) {
	// Worktrees and submodules use a .git file rather than a directory.
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: elsewhere\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := Find(root); !ok {
		t.Error(".git file not detected")
	}
}
