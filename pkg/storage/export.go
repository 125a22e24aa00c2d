package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xrecap/pkg/socialdata"
)

// HistoryExport is the on-disk layout of an exported posting history.
type HistoryExport struct {
	Handle     string              `json:"handle"`
	ExportedAt time.Time           `json:"exported_at"`
	Profile    *socialdata.Profile `json:"profile,omitempty"`
	Total      int                 `json:"total"`
	Posts      []socialdata.Tweet  `json:"posts"`
}

// ExportHistory writes a handle's collection to a JSON file, newest post
// first.
func ExportHistory(path, handle string, profile *socialdata.Profile, records socialdata.Collection) error {
	export := HistoryExport{
		Handle:     handle,
		ExportedAt: time.Now().UTC(),
		Profile:    profile,
		Total:      records.Len(),
		Posts:      records.Values(),
	}
	return WriteJSON(path, export)
}

// WriteJSON atomically writes a value as indented JSON: the data lands in a
// temp file, is synced, then renamed over the target. A crash mid-write
// never leaves a truncated file behind.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to finalize export: %w", err)
	}
	return nil
}

// ReadHistory loads a previously exported history file.
func ReadHistory(path string) (*HistoryExport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	var export HistoryExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return &export, nil
}
