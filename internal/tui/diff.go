package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcdonaldj/datezip/internal/archive"
	"github.com/mcdonaldj/datezip/internal/ports"
	"github.com/mcdonaldj/datezip/internal/restore"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileChange represents a change between two reconstructed states
type FileChange struct {
	Path   string
	Status rune // 'M' modified, 'A' added, 'D' deleted
}

// DiffResult contains the comparison between two points in time
type DiffResult struct {
	From     string // earlier archive timestamp
	To       string // later archive timestamp
	Changes  []FileChange
	Added    int
	Modified int
	Deleted  int
}

// StateAt reconstructs the file state as of set[idx] by replaying its chain:
// path -> stored mtime, later chain members overriding earlier ones.
func StateAt(archiver ports.Archiver, set archive.Set, idx int) (map[string]time.Time, error) {
	state := make(map[string]time.Time)
	for _, a := range restore.Chain(set, idx) {
		entries, err := archiver.Entries(a.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", a.Name(), err)
		}
		for _, e := range entries {
			if !e.IsDir {
				state[e.Path] = e.ModTime
			}
		}
	}
	return state, nil
}

// ComputeDiff compares the reconstructed states at two archives. Comparing
// states rather than raw member lists keeps increments meaningful: an INC
// archive only holds what changed, but its state includes everything before.
func ComputeDiff(archiver ports.Archiver, set archive.Set, fromIdx, toIdx int) (*DiffResult, error) {
	state1, err := StateAt(archiver, set, fromIdx)
	if err != nil {
		return nil, err
	}
	state2, err := StateAt(archiver, set, toIdx)
	if err != nil {
		return nil, err
	}

	result := &DiffResult{
		From: set[fromIdx].Timestamp,
		To:   set[toIdx].Timestamp,
	}

	allPaths := make(map[string]bool)
	for path := range state1 {
		allPaths[path] = true
	}
	for path := range state2 {
		allPaths[path] = true
	}

	for path := range allPaths {
		mt1, in1 := state1[path]
		mt2, in2 := state2[path]

		var change FileChange
		change.Path = path

		switch {
		case in1 && !in2:
			change.Status = 'D'
			result.Deleted++
		case !in1 && in2:
			change.Status = 'A'
			result.Added++
		case !mt1.Equal(mt2):
			change.Status = 'M'
			result.Modified++
		default:
			// Unchanged, skip
			continue
		}

		result.Changes = append(result.Changes, change)
	}

	// Sort changes: M, A, D then by path
	sort.Slice(result.Changes, func(i, j int) bool {
		if result.Changes[i].Status != result.Changes[j].Status {
			order := map[rune]int{'M': 0, 'A': 1, 'D': 2}
			return order[result.Changes[i].Status] < order[result.Changes[j].Status]
		}
		return result.Changes[i].Path < result.Changes[j].Path
	})

	return result, nil
}

// ReadFileAt returns the content of path as of set[idx], scanning the chain
// backward so the most recent member holding the path wins. found is false
// when no chain member contains it.
func ReadFileAt(archiver ports.Archiver, set archive.Set, idx int, path string) (content string, found bool, err error) {
	chain := restore.Chain(set, idx)
	for i := len(chain) - 1; i >= 0; i-- {
		entries, err := archiver.Entries(chain[i].Path)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir || e.Path != path {
				continue
			}
			content, err := archiver.ReadFile(chain[i].Path, path)
			if err != nil {
				return "", false, err
			}
			return content, true, nil
		}
	}
	return "", false, nil
}

// DiffLine represents a single line in the diff output
type DiffLine struct {
	LineNum1 int    // Line number in the earlier state (0 if added)
	LineNum2 int    // Line number in the later state (0 if deleted)
	Type     rune   // '+' added, '-' deleted, ' ' unchanged
	Content  string // Line content
}

// FileDiffResult contains the line-by-line diff of a single file
type FileDiffResult struct {
	Path     string
	From     string
	To       string
	Lines    []DiffLine
	IsBinary bool
	Error    string
}

// ComputeFileDiff computes the line-by-line diff of one file between the
// states at two archives.
func ComputeFileDiff(archiver ports.Archiver, set archive.Set, fromIdx, toIdx int, path string, status rune) (*FileDiffResult, error) {
	result := &FileDiffResult{
		Path: path,
		From: set[fromIdx].Timestamp,
		To:   set[toIdx].Timestamp,
	}

	var content1, content2 string
	var err error

	switch status {
	case 'A': // Added - only exists in the later state
		content2, _, err = ReadFileAt(archiver, set, toIdx, path)
	case 'D': // Deleted - only exists in the earlier state
		content1, _, err = ReadFileAt(archiver, set, fromIdx, path)
	default: // Modified - exists in both
		content1, _, err = ReadFileAt(archiver, set, fromIdx, path)
		if err == nil {
			content2, _, err = ReadFileAt(archiver, set, toIdx, path)
		}
	}
	if err != nil {
		result.Error = fmt.Sprintf("Error reading file: %v", err)
		return result, nil
	}

	if IsBinaryContent(content1) || IsBinaryContent(content2) {
		result.IsBinary = true
		return result, nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(content1, content2, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	result.Lines = convertToLineDiff(content1, content2, diffs)

	return result, nil
}

// convertToLineDiff converts character-based diffs to line-based
func convertToLineDiff(content1, content2 string, diffs []diffmatchpatch.Diff) []DiffLine {
	var lines []DiffLine

	lines1 := strings.Split(content1, "\n")
	lines2 := strings.Split(content2, "\n")

	i, j := 0, 0
	for i < len(lines1) || j < len(lines2) {
		if i < len(lines1) && j < len(lines2) && lines1[i] == lines2[j] {
			lines = append(lines, DiffLine{
				LineNum1: i + 1,
				LineNum2: j + 1,
				Type:     ' ',
				Content:  lines1[i],
			})
			i++
			j++
		} else if i < len(lines1) && (j >= len(lines2) || !containsLine(lines2[j:], lines1[i])) {
			lines = append(lines, DiffLine{
				LineNum1: i + 1,
				LineNum2: 0,
				Type:     '-',
				Content:  lines1[i],
			})
			i++
		} else if j < len(lines2) {
			lines = append(lines, DiffLine{
				LineNum1: 0,
				LineNum2: j + 1,
				Type:     '+',
				Content:  lines2[j],
			})
			j++
		}
	}

	return lines
}

func containsLine(lines []string, target string) bool {
	for _, line := range lines {
		if line == target {
			return true
		}
	}
	return false
}

// IsBinaryContent checks if content appears to be binary
func IsBinaryContent(content string) bool {
	if len(content) == 0 {
		return false
	}
	// Check first 8000 bytes for null bytes or invalid UTF-8
	checkLen := len(content)
	if checkLen > 8000 {
		checkLen = 8000
	}
	sample := content[:checkLen]

	if strings.Contains(sample, "\x00") {
		return true
	}
	if !utf8.ValidString(sample) {
		return true
	}

	return false
}
