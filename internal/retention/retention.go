// Package retention prunes obsolete increments and aged full archives under
// a dual-threshold policy. Any deletion here invalidates the history cache;
// the next history query detects that and rebuilds it.
package retention

import (
	"time"

	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/ports"
)

// Policy is the dual-threshold retention configuration. The most recent
// KeepCount FULL archives are kept unconditionally; older ones are deleted
// only once their file age exceeds KeepDays.
type Policy struct {
	KeepCount int
	KeepDays  int
}

// Report lists what a cleanup deleted.
type Report struct {
	Orphans []string // increments older than the latest FULL
	Expired []string // FULL archives beyond both thresholds
}

// Engine mutates the archive set.
type Engine struct {
	fs ports.FileSystem

	// Now is the clock for age evaluation. Overridable in tests.
	Now func() time.Time
}

// NewEngine creates a retention engine.
func NewEngine(fs ports.FileSystem) *Engine {
	return &Engine{fs: fs, Now: time.Now}
}

// Cleanup applies the policy to the archives under dir. Individual remove
// failures are skipped; the corresponding archive simply survives until the
// next run.
func (e *Engine) Cleanup(dir, prefix string, policy Policy) (Report, error) {
	var report Report

	set, err := archive.List(e.fs, dir, prefix)
	if err != nil {
		return report, err
	}

	// Orphan pruning: increments older than the latest FULL can never be
	// part of a future restore chain.
	if latestFull := set.LatestFull(); latestFull != nil {
		for _, a := range set.Incrementals() {
			if a.Timestamp < latestFull.Timestamp {
				if err := e.fs.Remove(a.Path); err != nil {
					continue
				}
				report.Orphans = append(report.Orphans, a.Name())
			}
		}
	}

	// Full-archive pruning: only the oldest count-excess archives are even
	// considered, and each is deleted only once it is older than KeepDays.
	fulls := set.Fulls()
	cutoff := len(fulls) - policy.KeepCount
	maxAge := time.Duration(policy.KeepDays) * 24 * time.Hour
	now := e.Now()
	for i := 0; i < cutoff; i++ {
		info, err := e.fs.Stat(fulls[i].Path)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := e.fs.Remove(fulls[i].Path); err != nil {
			continue
		}
		report.Expired = append(report.Expired, fulls[i].Name())
	}

	return report, nil
}
