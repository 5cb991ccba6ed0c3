package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdonaldj/datezip/internal/adapters/osfs"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name    string
		wantTS  string
		wantK   Kind
		wantErr bool
	}{
		{"datezip_20240216_143000_FULL.zip", "20240216_143000", Full, false},
		{"datezip_20240216_143000_INC.zip", "20240216_143000", Incremental, false},
		{"datezip_20241231_235959_FULL.zip", "20241231_235959", Full, false},
		{"other_20240216_143000_FULL.zip", "", Full, true},          // wrong prefix
		{"datezip_20240216_143000_FULL.tar", "", Full, true},        // wrong extension
		{"datezip_20240216_143000_PARTIAL.zip", "", Full, true},     // unknown kind
		{"datezip_20241301_143000_FULL.zip", "", Full, true},        // month 13
		{"datezip_20240216143000_FULL.zip", "", Full, true},         // missing separator
		{"datezip_20240216_143000.zip", "", Full, true},             // missing kind
		{"datezip.zip", "", Full, true},                             // no timestamp at all
		{"", "", Full, true},                                        // empty
	}

	for _, tt := range tests {
		a, err := ParseName(tt.name, "datezip")
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseName(%q) expected error, got %+v", tt.name, a)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseName(%q) unexpected error: %v", tt.name, err)
			continue
		}
		if a.Timestamp != tt.wantTS {
			t.Errorf("ParseName(%q) timestamp = %q, want %q", tt.name, a.Timestamp, tt.wantTS)
		}
		if a.Kind != tt.wantK {
			t.Errorf("ParseName(%q) kind = %v, want %v", tt.name, a.Kind, tt.wantK)
		}
	}
}

func TestFileNameRoundTrip(t *testing.T) {
	ts := FormatTimestamp(time.Date(2024, 2, 16, 14, 30, 0, 0, time.Local))
	name := FileName("datezip", ts, Incremental)
	if name != "datezip_20240216_143000_INC.zip" {
		t.Fatalf("FileName = %q", name)
	}
	a, err := ParseName(name, "datezip")
	if err != nil {
		t.Fatalf("ParseName failed: %v", err)
	}
	if a.Timestamp != ts || a.Kind != Incremental {
		t.Errorf("round trip lost data: %+v", a)
	}
}

func TestListSortsChronologically(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"datezip_20240217_090000_FULL.zip",
		"datezip_20240216_143000_FULL.zip",
		"datezip_20240216_180000_INC.zip",
		"datezip_20240218_000000_INC.zip",
		"notes.txt",                         // ignored
		"datezip_20240101_bad_FULL.zip",     // malformed, ignored
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatalf("writing %s: %v", n, err)
		}
	}

	set, err := List(osfs.New(), dir, "datezip")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{
		"20240216_143000",
		"20240216_180000",
		"20240217_090000",
		"20240218_000000",
	}
	if len(set) != len(want) {
		t.Fatalf("got %d archives, want %d", len(set), len(want))
	}
	for i, ts := range want {
		if set[i].Timestamp != ts {
			t.Errorf("set[%d].Timestamp = %q, want %q", i, set[i].Timestamp, ts)
		}
	}
}

func TestListMissingDir(t *testing.T) {
	set, err := List(osfs.New(), filepath.Join(t.TempDir(), "nope"), "datezip")
	if err != nil {
		t.Fatalf("List on missing dir: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %d", len(set))
	}
}

func TestSubsequences(t *testing.T) {
	set := Set{
		{Timestamp: "20240216_100000", Kind: Full},
		{Timestamp: "20240216_110000", Kind: Incremental},
		{Timestamp: "20240217_100000", Kind: Full},
		{Timestamp: "20240217_110000", Kind: Incremental},
		{Timestamp: "20240217_120000", Kind: Incremental},
	}

	if got := len(set.Fulls()); got != 2 {
		t.Errorf("Fulls = %d, want 2", got)
	}
	if got := len(set.Incrementals()); got != 3 {
		t.Errorf("Incrementals = %d, want 3", got)
	}
	if lf := set.LatestFull(); lf == nil || lf.Timestamp != "20240217_100000" {
		t.Errorf("LatestFull = %+v", lf)
	}
	if l := set.Latest(); l == nil || l.Timestamp != "20240217_120000" {
		t.Errorf("Latest = %+v", l)
	}

	var empty Set
	if empty.Latest() != nil || empty.LatestFull() != nil {
		t.Error("empty set should have no latest members")
	}
}
