package provenance

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bluemountains/harvest/pkg/pagination"
)

// Snapshot is a persisted extraction: the provenance record under
// "metadata" plus the accumulated items under a caller-chosen payload key
// (e.g., "tags" or "items"). The document is self-contained: anyone opening
// the file sees provenance first.
type Snapshot struct {
	Metadata   Record
	PayloadKey string
	Items      []pagination.Item
}

// NewSnapshot wraps a completed fetch result with its provenance record.
func NewSnapshot(record Record, payloadKey string, items []pagination.Item) *Snapshot {
	return &Snapshot{
		Metadata:   record,
		PayloadKey: payloadKey,
		Items:      items,
	}
}

// MarshalJSON emits {"metadata": {...}, "<payload key>": [...]}.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s.PayloadKey == "" || s.PayloadKey == "metadata" {
		return nil, fmt.Errorf("invalid payload key %q", s.PayloadKey)
	}

	items := s.Items
	if items == nil {
		items = []pagination.Item{}
	}

	return json.Marshal(map[string]any{
		"metadata":   s.Metadata,
		s.PayloadKey: items,
	})
}

// UnmarshalJSON restores a snapshot, recovering the payload key from the
// single non-metadata top-level key. The stored timestamp is preserved, not
// regenerated.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	meta, ok := doc["metadata"]
	if !ok {
		return fmt.Errorf("snapshot missing metadata key")
	}
	if err := json.Unmarshal(meta, &s.Metadata); err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}

	s.PayloadKey = ""
	for key, raw := range doc {
		if key == "metadata" {
			continue
		}
		if s.PayloadKey != "" {
			return fmt.Errorf("snapshot has multiple payload keys: %q and %q", s.PayloadKey, key)
		}
		if err := json.Unmarshal(raw, &s.Items); err != nil {
			return fmt.Errorf("parse payload %q: %w", key, err)
		}
		s.PayloadKey = key
	}
	if s.PayloadKey == "" {
		return fmt.Errorf("snapshot missing payload key")
	}

	return nil
}

// Save writes the snapshot as an indented UTF-8 JSON document.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// Load reads a snapshot written by Save. Reading it back reproduces the
// same items and provenance fields.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	return &snap, nil
}
