// Package provenance stamps harvest extractions with enough metadata to
// reproduce them: when the snapshot was taken, from which source, and by
// which tool version. Records are created once per completed extraction and
// immutable thereafter.
package provenance

import (
	"time"
)

// Record describes how one extraction snapshot was obtained.
type Record struct {
	// GeneratedAt is the wall-clock time of the extraction in the
	// recorder's fixed timezone offset, so consumers see an unambiguous
	// absolute time.
	GeneratedAt time.Time `json:"generated_at"`

	// SourceID identifies the library or site the items came from.
	SourceID string `json:"source_id"`

	// Endpoint is the paginated endpoint that produced the items.
	Endpoint string `json:"endpoint"`

	// ItemCount is the number of items in the snapshot payload.
	ItemCount int `json:"item_count"`

	// Tool and Version identify the software that wrote the snapshot.
	Tool    string `json:"tool"`
	Version string `json:"version"`
}

// Recorder produces Records with a fixed timezone and tool identity.
type Recorder struct {
	tool     string
	version  string
	location *time.Location
	now      func() time.Time
}

// NewRecorder creates a recorder. A nil location defaults to UTC.
func NewRecorder(tool, version string, location *time.Location) *Recorder {
	if location == nil {
		location = time.UTC
	}
	return &Recorder{
		tool:     tool,
		version:  version,
		location: location,
		now:      time.Now,
	}
}

// Record builds the provenance record for a completed extraction.
// Pure apart from reading the clock; persistence is the caller's
// responsibility.
func (r *Recorder) Record(sourceID, endpoint string, itemCount int) Record {
	return Record{
		GeneratedAt: r.now().In(r.location),
		SourceID:    sourceID,
		Endpoint:    endpoint,
		ItemCount:   itemCount,
		Tool:        r.tool,
		Version:     r.version,
	}
}

// SetClock overrides the wall clock (for testing).
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}
