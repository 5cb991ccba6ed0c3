// Package backup decides FULL vs INCREMENTAL for a new capture and executes
// it against the archiver.
package backup

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/config"
	"github.com/mcdonaldj/datezip/internal/ignore"
	"github.com/mcdonaldj/datezip/internal/ports"
)

// Result describes the outcome of one backup run.
type Result struct {
	Kind      archive.Kind
	Path      string
	FileCount int
	Size      int64
	Skipped   bool
	Reason    string
}

// Engine creates archives. It owns the full/incremental decision; the
// archiver and filesystem come in through ports.
type Engine struct {
	fs       ports.FileSystem
	archiver ports.Archiver

	// Now is the clock used for archive timestamps and the same-day check.
	// Overridable in tests.
	Now func() time.Time
}

// NewEngine creates a backup engine.
func NewEngine(fs ports.FileSystem, archiver ports.Archiver) *Engine {
	return &Engine{fs: fs, archiver: archiver, Now: time.Now}
}

// skipWalkDirs are directories the incremental file scan never descends
// into. Exclusion patterns still apply to whatever the scan yields.
var skipWalkDirs = []string{config.BackupDirName, ".git", ".hg", ".svn"}

// Run performs one backup. forced, when non-nil, overrides the computed
// kind. A nil error with Skipped set means "no changes": nothing was
// archived and nothing was written.
func (e *Engine) Run(cfg config.Config, forced *archive.Kind) (Result, error) {
	set, err := archive.List(e.fs, cfg.BackupDir(), cfg.Prefix)
	if err != nil {
		return Result{}, err
	}

	now := e.Now()
	kind := e.decide(set, now)
	if forced != nil {
		kind = *forced
	}
	result := Result{Kind: kind}

	resolver := ignore.Resolver{Fixed: cfg.FixedExcludes()}
	rules, err := resolver.Resolve(cfg.Root)
	if err != nil {
		return result, fmt.Errorf("resolving exclusions: %w", err)
	}
	patterns := ignore.Patterns(rules)

	var manifest []string
	if kind == archive.Incremental {
		latest := set.Latest()
		if latest == nil {
			return result, errors.New("incremental backup requires an existing archive")
		}
		// The comparison anchor is the archive file's own mtime, not the
		// timestamp embedded in its name.
		info, err := e.fs.Stat(latest.Path)
		if err != nil {
			return result, fmt.Errorf("stat %s: %w", latest.Name(), err)
		}
		manifest, err = e.fs.FilesNewerThan(cfg.Root, info.ModTime(), skipWalkDirs)
		if err != nil {
			return result, fmt.Errorf("scanning for changed files: %w", err)
		}
		if len(manifest) == 0 {
			result.Skipped = true
			result.Reason = "no files changed since last backup"
			return result, nil
		}
	}

	if err := e.fs.MkdirAll(cfg.BackupDir(), 0755); err != nil {
		return result, fmt.Errorf("creating backup dir: %w", err)
	}

	name := archive.FileName(cfg.Prefix, archive.FormatTimestamp(now), kind)
	dest := filepath.Join(cfg.BackupDir(), name)

	count, err := e.archiver.Create(dest, cfg.Root, manifest, patterns)
	if err != nil {
		if errors.Is(err, ports.ErrNothingToArchive) {
			// Benign archiver status: everything eligible was excluded.
			result.Skipped = true
			result.Reason = "nothing to archive"
			return result, nil
		}
		// Hard failure: never leave a partial archive behind.
		_ = e.fs.Remove(dest)
		return result, fmt.Errorf("creating archive: %w", err)
	}

	result.Path = dest
	result.FileCount = count
	if info, err := e.fs.Stat(dest); err == nil {
		result.Size = info.Size()
	}
	return result, nil
}

// decide picks the kind for a new capture: FULL when the set is empty or the
// most recent archive is from an earlier day, INCREMENTAL for repeat
// captures on the same calendar day.
func (e *Engine) decide(set archive.Set, now time.Time) archive.Kind {
	latest := set.Latest()
	if latest == nil {
		return archive.Full
	}
	if latest.DatePart() == now.Format("20060102") {
		return archive.Incremental
	}
	return archive.Full
}

// FormatSize formats bytes as human-readable.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
