package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

// artifactTimeLayout keeps filenames sortable and free of colons
const artifactTimeLayout = "20060102_150405"

// Output writes one JSON artifact per run into dir
type Output struct {
	dir    string
	prefix string
}

// NewOutput creates an Output writing <prefix>_<timestamp>.json files
func NewOutput(dir, prefix string) *Output {
	return &Output{dir: dir, prefix: prefix}
}

// Dir returns the artifact directory
func (o *Output) Dir() string { return o.dir }

// Save serializes items into a new timestamped file and returns its path.
// An existing artifact with the same timestamp is never overwritten.
func (o *Output) Save(items []types.HotItem, at time.Time) (string, error) {
	if err := os.MkdirAll(o.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal items: %w", err)
	}

	base := fmt.Sprintf("%s_%s", o.prefix, at.Format(artifactTimeLayout))
	path := filepath.Join(o.dir, base+".json")
	for n := 2; ; n++ {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(o.dir, fmt.Sprintf("%s_%d.json", base, n))
	}

	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	return path, nil
}

// Remove deletes an artifact written by Save. A missing file is not an
// error.
func (o *Output) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List returns the artifact paths in dir, oldest first
func (o *Output) List() ([]string, error) {
	entries, err := os.ReadDir(o.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, o.prefix+"_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, filepath.Join(o.dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// LoadItems reads an artifact written by Save
func LoadItems(path string) ([]types.HotItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	var items []types.HotItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output %s: %w", path, err)
	}
	return items, nil
}
