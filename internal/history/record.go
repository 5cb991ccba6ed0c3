package history

import (
	"fmt"

	"github.com/mcdonaldj/datezip/internal/archive"
)

// Change classifies a history record.
type Change byte

const (
	// Marker denotes that an archive exists and was processed, even if it
	// introduced zero file changes. Markers are never shown to callers.
	Marker Change = '*'
	// New denotes a path seen for the first time.
	New Change = '+'
	// Updated denotes a path whose stored mtime changed.
	Updated Change = '.'
)

// Record is one line of the change log.
//
// Wire format: <15-char archive ts>|<1-char change>|<15-char content ts>|<path>
// The leading fields are fixed width so lines parse by offset. Marker records
// carry the archive kind token in the path field and repeat the archive
// timestamp as content timestamp.
type Record struct {
	ArchiveTimestamp string
	Change           Change
	ContentTimestamp string
	Path             string
}

// Fixed field offsets within an encoded record line.
const (
	changeOff  = archive.TimestampLen + 1 // 16
	contentOff = changeOff + 2            // 18
	pathOff    = contentOff + archive.TimestampLen + 1
)

// Encode renders the record in wire format, without a trailing newline.
func (r Record) Encode() string {
	return fmt.Sprintf("%s|%c|%s|%s", r.ArchiveTimestamp, r.Change, r.ContentTimestamp, r.Path)
}

// ParseRecord decodes one cache line. The fixed-width layout is only
// interpreted here; everything else works with typed records.
func ParseRecord(line string) (Record, error) {
	if len(line) <= pathOff {
		return Record{}, fmt.Errorf("history record too short: %q", line)
	}
	if line[archive.TimestampLen] != '|' || line[changeOff+1] != '|' || line[pathOff-1] != '|' {
		return Record{}, fmt.Errorf("history record malformed: %q", line)
	}
	r := Record{
		ArchiveTimestamp: line[:archive.TimestampLen],
		Change:           Change(line[changeOff]),
		ContentTimestamp: line[contentOff : contentOff+archive.TimestampLen],
		Path:             line[pathOff:],
	}
	if !archive.ValidTimestamp(r.ArchiveTimestamp) || !archive.ValidTimestamp(r.ContentTimestamp) {
		return Record{}, fmt.Errorf("history record has invalid timestamp: %q", line)
	}
	switch r.Change {
	case Marker, New, Updated:
	default:
		return Record{}, fmt.Errorf("history record has unknown change kind %q", r.Change)
	}
	return r, nil
}
