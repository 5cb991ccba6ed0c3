// Package restore reconstructs a point-in-time state of the tree by
// overlaying a FULL archive with its chain of increments.
package restore

import (
	"errors"
	"fmt"

	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/config"
	"github.com/mcdonaldj/datezip/internal/ports"
)

// Mode selects how much of the chain is applied.
type Mode int

const (
	// Everything reconstructs state as of the selected archive by applying
	// its FULL ancestor and every increment up to and including it.
	Everything Mode = iota
	// Just applies only the selected archive.
	Just
)

// Sentinel errors for selector resolution.
var (
	ErrNoArchives      = errors.New("no archives found")
	ErrNoArchiveBefore = errors.New("no backup prior to requested time")
)

// Options selects the restore target. Exactly one of Index (>= 0) or Time
// (non-empty) must be set.
type Options struct {
	Index int    // archive set index, ascending chronological, 0-based; -1 when unset
	Time  string // target timestamp; latest archive at or before it is chosen
	Mode  Mode
	Files []string // optional exact-path filter applied to every chain member
	Dest  string   // extraction root; empty means the tree root
}

// Result reports what a restore applied.
type Result struct {
	Target  archive.Archive
	Applied []archive.Archive // chain members in applied (chronological) order
	Failed  []archive.Archive // members whose extraction failed and was skipped
}

// Engine applies archives onto a destination tree.
type Engine struct {
	fs       ports.FileSystem
	archiver ports.Archiver

	// Warn receives per-archive extraction failures, which are tolerated
	// so one corrupt chain member does not block the readable rest.
	Warn func(format string, args ...any)
}

// NewEngine creates a restore engine.
func NewEngine(fs ports.FileSystem, archiver ports.Archiver) *Engine {
	return &Engine{fs: fs, archiver: archiver, Warn: func(string, ...any) {}}
}

// Run resolves the selector, builds the chain, and extracts it in
// chronological order so later increments win on every path they touch.
func (e *Engine) Run(cfg config.Config, opts Options) (Result, error) {
	set, err := archive.List(e.fs, cfg.BackupDir(), cfg.Prefix)
	if err != nil {
		return Result{}, err
	}
	if len(set) == 0 {
		return Result{}, ErrNoArchives
	}

	targetIdx, err := resolve(set, opts)
	if err != nil {
		return Result{}, err
	}
	result := Result{Target: set[targetIdx]}

	chain := buildChain(set, targetIdx, opts.Mode)

	dest := opts.Dest
	if dest == "" {
		dest = cfg.Root
	}

	for _, a := range chain {
		if err := e.archiver.Extract(a.Path, dest, opts.Files); err != nil {
			e.Warn("skipping %s: %v", a.Name(), err)
			result.Failed = append(result.Failed, a)
			continue
		}
		result.Applied = append(result.Applied, a)
	}
	return result, nil
}

// resolve maps the selector onto an index into set.
func resolve(set archive.Set, opts Options) (int, error) {
	if opts.Time != "" && opts.Index >= 0 {
		return 0, errors.New("index and time selectors are mutually exclusive")
	}
	if opts.Time != "" {
		if !archive.ValidTimestamp(opts.Time) {
			return 0, fmt.Errorf("invalid timestamp %q", opts.Time)
		}
		for i := len(set) - 1; i >= 0; i-- {
			if set[i].Timestamp <= opts.Time {
				return i, nil
			}
		}
		return 0, ErrNoArchiveBefore
	}
	if opts.Index < 0 || opts.Index >= len(set) {
		return 0, fmt.Errorf("archive index %d out of range (0..%d)", opts.Index, len(set)-1)
	}
	return opts.Index, nil
}

// buildChain returns the archives to apply, in order.
func buildChain(set archive.Set, targetIdx int, mode Mode) archive.Set {
	if mode == Just {
		return archive.Set{set[targetIdx]}
	}
	return Chain(set, targetIdx)
}

// Chain returns the archives needed to reconstruct state as of set[idx]: the
// nearest preceding FULL (inclusive) through set[idx]. A set with no FULL
// ancestor falls back to index 0 so the readable prefix still applies; a
// FULL target is a chain of one.
func Chain(set archive.Set, idx int) archive.Set {
	if set[idx].Kind == archive.Full {
		return archive.Set{set[idx]}
	}
	start := 0
	for i := idx; i >= 0; i-- {
		if set[i].Kind == archive.Full {
			start = i
			break
		}
	}
	return set[start : idx+1]
}
