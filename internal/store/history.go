package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

// DefaultHistoryLimit is how many run records the log keeps
const DefaultHistoryLimit = 100

// History is the bounded run-history log, oldest entry first
type History struct {
	path  string
	limit int
}

// NewHistory creates a History at path keeping at most limit records
func NewHistory(path string, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{path: path, limit: limit}
}

// Path returns the history file location
func (h *History) Path() string { return h.path }

// Load returns the recorded runs. An unreadable or corrupt log reads as
// empty so that the next Append starts it afresh.
func (h *History) Load() ([]types.RunRecord, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var records []types.RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil
	}
	return records, nil
}

// Append records a run, evicting the oldest entries beyond the limit
func (h *History) Append(rec types.RunRecord) error {
	records, err := h.Load()
	if err != nil {
		return err
	}

	records = append(records, rec)
	if len(records) > h.limit {
		records = records[len(records)-h.limit:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(h.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
