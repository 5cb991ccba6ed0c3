// Package history maintains the append-only per-file change log for a backup
// directory. The log is a cache over the archive set: it is reconciled
// against the archives on disk just-in-time before every read, and any drift
// it cannot explain is repaired by rebuilding from scratch. It is never a
// source of truth.
package history

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/ports"
)

// CacheFileName is the change-log file inside the backup directory.
const CacheFileName = "history.log"

// Index reconciles and queries the change log.
type Index struct {
	fs       ports.FileSystem
	archiver ports.Archiver
}

// NewIndex creates an index over the given collaborators.
func NewIndex(fs ports.FileSystem, archiver ports.Archiver) *Index {
	return &Index{fs: fs, archiver: archiver}
}

// QueryFilter narrows a history query. Empty fields are open: From/To bound
// the archive timestamp inclusively (string comparison, valid because the
// encoding sorts), Paths restricts to exact relative paths.
type QueryFilter struct {
	From  string
	To    string
	Paths []string
}

func (f QueryFilter) matches(r Record) bool {
	if f.From != "" && r.ArchiveTimestamp < f.From {
		return false
	}
	if f.To != "" && r.ArchiveTimestamp > f.To {
		return false
	}
	if len(f.Paths) > 0 {
		found := false
		for _, p := range f.Paths {
			if r.Path == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Query reconciles the cache against the archive set, then returns the
// visible (non-marker) records matching the filter, in append order.
func (ix *Index) Query(dir, prefix string, filter QueryFilter) ([]Record, error) {
	if err := ix.Reconcile(dir, prefix); err != nil {
		return nil, err
	}
	records, err := ix.load(dir)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range records {
		if r.Change == Marker {
			continue
		}
		if filter.matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Group is the per-archive presentation of history records: one entry per
// archive, labeled with its kind, holding the visible changes it introduced.
// An archive that changed nothing has an empty Records slice.
type Group struct {
	Timestamp string
	Kind      string
	Records   []Record
}

// Grouped reconciles and returns history grouped by archive, most recent
// archive first. From/To of the filter apply; the path filter is ignored here
// (path-scoped views use Query directly).
func (ix *Index) Grouped(dir, prefix string, filter QueryFilter) ([]Group, error) {
	if err := ix.Reconcile(dir, prefix); err != nil {
		return nil, err
	}
	records, err := ix.load(dir)
	if err != nil {
		return nil, err
	}

	window := QueryFilter{From: filter.From, To: filter.To}
	byTS := make(map[string]*Group)
	var order []string
	for _, r := range records {
		if !window.matches(r) {
			continue
		}
		g, ok := byTS[r.ArchiveTimestamp]
		if !ok {
			g = &Group{Timestamp: r.ArchiveTimestamp}
			byTS[r.ArchiveTimestamp] = g
			order = append(order, r.ArchiveTimestamp)
		}
		if r.Change == Marker {
			g.Kind = r.Path
			continue
		}
		g.Records = append(g.Records, r)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(order)))
	groups := make([]Group, 0, len(order))
	for _, ts := range order {
		groups = append(groups, *byTS[ts])
	}
	return groups, nil
}

// Reconcile brings the cache in line with the archives on disk. It either
// does nothing (cache current), appends records for archives that arrived
// since the last reconcile, or rebuilds the cache outright when the
// append-only assumption no longer holds.
func (ix *Index) Reconcile(dir, prefix string) error {
	set, err := archive.List(ix.fs, dir, prefix)
	if err != nil {
		return err
	}

	cached, raw, ok := ix.loadRaw(dir)
	if !ok || len(cached) == 0 {
		return ix.Reindex(dir, prefix)
	}

	cachedSet := uniqueTimestamps(cached)
	diskSet := set.Timestamps()
	disk := make(map[string]bool, len(diskSet))
	for _, ts := range diskSet {
		disk[ts] = true
	}

	// An archive the cache knows about is gone from disk: per-file state in
	// the cache may describe deleted history, so rebuild.
	for _, ts := range cachedSet {
		if !disk[ts] {
			return ix.Reindex(dir, prefix)
		}
	}

	inCache := make(map[string]bool, len(cachedSet))
	for _, ts := range cachedSet {
		inCache[ts] = true
	}
	var missing archive.Set
	for _, a := range set {
		if !inCache[a.Timestamp] {
			missing = append(missing, a)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	// The per-file "latest known state" logic is only valid when archives
	// append in chronological order; an older archive surfacing after a
	// newer one forces a rebuild.
	latestCached := cachedSet[len(cachedSet)-1]
	if missing[0].Timestamp < latestCached {
		return ix.Reindex(dir, prefix)
	}

	known := knownState(cached)
	var lines []string
	for _, a := range missing {
		for _, r := range ix.recordsFor(a, known) {
			lines = append(lines, r.Encode())
		}
	}

	content := raw
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += strings.Join(lines, "\n") + "\n"
	return ix.fs.WriteFile(ix.cachePath(dir), []byte(content), 0644)
}

// Reindex discards the cache and rebuilds it from every archive on disk, in
// chronological order, with the known-state table built up across the set.
func (ix *Index) Reindex(dir, prefix string) error {
	set, err := archive.List(ix.fs, dir, prefix)
	if err != nil {
		return err
	}

	known := make(map[string]string)
	var lines []string
	for _, a := range set {
		for _, r := range ix.recordsFor(a, known) {
			lines = append(lines, r.Encode())
		}
	}

	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	return ix.fs.WriteFile(ix.cachePath(dir), []byte(content), 0644)
}

// recordsFor computes one archive's contribution to the log, updating known
// (path -> latest content timestamp) as it goes. The marker comes first so
// the archive is representable even when it changes nothing or cannot be
// listed; a listing failure degrades to a bare marker rather than aborting.
func (ix *Index) recordsFor(a archive.Archive, known map[string]string) []Record {
	records := []Record{{
		ArchiveTimestamp: a.Timestamp,
		Change:           Marker,
		ContentTimestamp: a.Timestamp,
		Path:             a.Kind.String(),
	}}

	entries, err := ix.archiver.Entries(a.Path)
	if err != nil {
		return records
	}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		ct := archive.FormatTimestamp(e.ModTime)
		prev, seen := known[e.Path]
		switch {
		case !seen:
			records = append(records, Record{a.Timestamp, New, ct, e.Path})
		case prev != ct:
			records = append(records, Record{a.Timestamp, Updated, ct, e.Path})
		default:
			continue
		}
		known[e.Path] = ct
	}
	return records
}

// knownState replays cached records into a path -> latest content timestamp
// table. Built once per reconcile, not per file.
func knownState(records []Record) map[string]string {
	known := make(map[string]string)
	for _, r := range records {
		if r.Change == Marker {
			continue
		}
		known[r.Path] = r.ContentTimestamp
	}
	return known
}

func (ix *Index) cachePath(dir string) string {
	return filepath.Join(dir, CacheFileName)
}

// load returns the parsed cache records; malformed lines are skipped.
func (ix *Index) load(dir string) ([]Record, error) {
	records, _, ok := ix.loadRaw(dir)
	if !ok {
		return nil, nil
	}
	return records, nil
}

// loadRaw reads and parses the cache. ok is false when the file is missing
// or unreadable. Malformed lines are tolerated and dropped.
func (ix *Index) loadRaw(dir string) (records []Record, raw string, ok bool) {
	data, err := ix.fs.ReadFile(ix.cachePath(dir))
	if err != nil {
		// Missing and unreadable are the same to the caller: rebuild.
		return nil, "", false
	}
	raw = string(data)
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := ParseRecord(line)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, raw, true
}

// uniqueTimestamps returns the deduplicated, sorted archive timestamps
// present in the cache.
func uniqueTimestamps(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.ArchiveTimestamp] {
			seen[r.ArchiveTimestamp] = true
			out = append(out, r.ArchiveTimestamp)
		}
	}
	sort.Strings(out)
	return out
}

// Describe renders one record for CLI output: "<ts> <glyph> <path>".
func Describe(r Record) string {
	return fmt.Sprintf("%s %c %s", r.ArchiveTimestamp, r.Change, r.Path)
}
