// Package archive models the on-disk set of backup containers. Archive names
// embed a sortable timestamp and the backup kind, so a lexicographic sort of
// filenames is also a chronological sort; everything else in the tool leans
// on that invariant.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mcdonaldj/datezip/internal/ports"
)

// Kind distinguishes full snapshots from incremental ones.
type Kind int

const (
	Full Kind = iota
	Incremental
)

// String returns the kind token used in archive filenames.
func (k Kind) String() string {
	if k == Full {
		return "FULL"
	}
	return "INC"
}

// Ext is the container extension for all archives.
const Ext = ".zip"

// TimestampLayout is the time.Parse layout for archive timestamps
// (YYYYMMDD_HHMMSS, fixed width, lexicographically sortable).
const TimestampLayout = "20060102_150405"

// TimestampLen is the fixed width of an encoded timestamp.
const TimestampLen = len(TimestampLayout)

// Archive is one backup unit on disk.
type Archive struct {
	Timestamp string // YYYYMMDD_HHMMSS, taken from the filename
	Kind      Kind
	Path      string
}

// Name returns the archive's filename.
func (a Archive) Name() string {
	return filepath.Base(a.Path)
}

// DatePart returns the YYYYMMDD portion of the archive timestamp.
func (a Archive) DatePart() string {
	return a.Timestamp[:8]
}

// Time decodes the archive timestamp in the local timezone.
func (a Archive) Time() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, a.Timestamp, time.Local)
}

// FormatTimestamp encodes t as an archive timestamp.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ValidTimestamp reports whether s is a well-formed archive timestamp.
func ValidTimestamp(s string) bool {
	if len(s) != TimestampLen {
		return false
	}
	_, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	return err == nil
}

// FileName builds the canonical archive filename for the given parts.
func FileName(prefix, timestamp string, kind Kind) string {
	return fmt.Sprintf("%s_%s_%s%s", prefix, timestamp, kind, Ext)
}

// ParseName parses an archive filename of the form
// <prefix>_<YYYYMMDD>_<HHMMSS>_<KIND>.zip. Names that do not parse exactly
// are rejected: the rest of the tool treats name order as time order, so a
// malformed name must never enter the set.
func ParseName(name, prefix string) (Archive, error) {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return Archive{}, fmt.Errorf("archive name %q: missing prefix %q", name, prefix)
	}
	rest, ok = strings.CutSuffix(rest, Ext)
	if !ok {
		return Archive{}, fmt.Errorf("archive name %q: missing %s extension", name, Ext)
	}
	if len(rest) < TimestampLen+2 || rest[TimestampLen] != '_' {
		return Archive{}, fmt.Errorf("archive name %q: malformed", name)
	}
	ts := rest[:TimestampLen]
	if !ValidTimestamp(ts) {
		return Archive{}, fmt.Errorf("archive name %q: invalid timestamp %q", name, ts)
	}
	var kind Kind
	switch rest[TimestampLen+1:] {
	case "FULL":
		kind = Full
	case "INC":
		kind = Incremental
	default:
		return Archive{}, fmt.Errorf("archive name %q: unknown kind %q", name, rest[TimestampLen+1:])
	}
	return Archive{Timestamp: ts, Kind: kind}, nil
}

// Set is the ordered sequence of archives under a backup directory. It is
// derived from a directory listing, never persisted.
type Set []Archive

// List reads dir and returns all archives matching prefix in chronological
// (equivalently, name) order. Entries that do not parse are ignored. A
// missing directory yields an empty set, not an error.
func List(fs ports.FileSystem, dir, prefix string) (Set, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var set Set
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		a, err := ParseName(ent.Name(), prefix)
		if err != nil {
			continue
		}
		a.Path = filepath.Join(dir, ent.Name())
		set = append(set, a)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Name() < set[j].Name() })
	return set, nil
}

// Latest returns the most recent archive, or nil if the set is empty.
func (s Set) Latest() *Archive {
	if len(s) == 0 {
		return nil
	}
	return &s[len(s)-1]
}

// Fulls returns the FULL-only subsequence, still in chronological order.
func (s Set) Fulls() Set {
	var out Set
	for _, a := range s {
		if a.Kind == Full {
			out = append(out, a)
		}
	}
	return out
}

// Incrementals returns the INC-only subsequence, still in chronological order.
func (s Set) Incrementals() Set {
	var out Set
	for _, a := range s {
		if a.Kind == Incremental {
			out = append(out, a)
		}
	}
	return out
}

// LatestFull returns the most recent FULL archive, or nil if there is none.
func (s Set) LatestFull() *Archive {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Kind == Full {
			return &s[i]
		}
	}
	return nil
}

// Timestamps returns the timestamps of all members, in order.
func (s Set) Timestamps() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = a.Timestamp
	}
	return out
}
