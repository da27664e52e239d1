// Package snapshot persists the projected content collection as one unit.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"content_sync/internal/domain"
)

// Marshal encodes records as a flat JSON array. Equal input gives equal bytes.
func Marshal(records []domain.Content) ([]byte, error) {
	if records == nil {
		records = []domain.Content{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

func Unmarshal(data []byte) ([]domain.Content, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty payload: %w", domain.ErrSnapshotCorrupt)
	}
	var records []domain.Content
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %v: %w", err, domain.ErrSnapshotCorrupt)
	}
	return records, nil
}
