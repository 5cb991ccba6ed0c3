package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Prefix != "datezip" {
		t.Errorf("prefix = %q", s.Prefix)
	}
	if s.Retention.KeepFull != 10 || s.Retention.KeepDays != 14 {
		t.Errorf("retention = %+v", s.Retention)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.Prefix != DefaultPrefix {
		t.Errorf("missing settings file should yield defaults, got %+v", s)
	}
}

func TestLoadSettingsFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".datezip")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "prefix: myproj\nexclude:\n  - node_modules\nretention:\n  keep_full: 3\n  keep_days: 7\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.Prefix != "myproj" {
		t.Errorf("prefix = %q", s.Prefix)
	}
	if len(s.Exclude) != 1 || s.Exclude[0] != "node_modules" {
		t.Errorf("exclude = %v", s.Exclude)
	}
	if s.Retention.KeepFull != 3 || s.Retention.KeepDays != 7 {
		t.Errorf("retention = %+v", s.Retention)
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	p, err := LoadPreference(dir)
	if err != nil {
		t.Fatalf("LoadPreference on empty dir: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil preference, got %+v", p)
	}

	want := &Preference{Scope: ScopeSubdir}
	if err := want.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := LoadPreference(dir)
	if err != nil {
		t.Fatalf("LoadPreference failed: %v", err)
	}
	if got == nil || got.Scope != ScopeSubdir {
		t.Errorf("preference = %+v, want scope subdir", got)
	}
}

func TestLoadPreferenceRejectsBadScope(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, PreferenceFileName), []byte("scope: everywhere\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPreference(dir); err == nil {
		t.Error("invalid scope accepted")
	}
}

func TestBackupDir(t *testing.T) {
	c := Config{Root: "/project"}
	if got := c.BackupDir(); got != filepath.Join("/project", ".datezip") {
		t.Errorf("BackupDir = %q", got)
	}
}

func TestFixedExcludes(t *testing.T) {
	c := Config{Exclude: []string{"node_modules", "*.tmp"}}
	got := c.FixedExcludes()
	want := []string{BackupDirName, PreferenceFileName, "node_modules", "*.tmp"}
	if len(got) != len(want) {
		t.Fatalf("FixedExcludes = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FixedExcludes[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := ExpandPath("~/backups"); got != filepath.Join(home, "backups") {
		t.Errorf("ExpandPath(~/backups) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("empty path changed: %q", got)
	}
}
