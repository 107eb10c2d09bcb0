package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/rs/zerolog"
)

// KeyFile is a dedup set persisted as a JSON array of identity keys
type KeyFile struct {
	path    string
	log     zerolog.Logger
	keys    map[string]struct{}
	pending map[string]struct{}
}

// NewKeyFile creates a KeyFile backed by path. Call Load before use.
func NewKeyFile(path string, logger zerolog.Logger) *KeyFile {
	return &KeyFile{
		path:    path,
		log:     logger,
		keys:    make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// Load reads the persisted keys. A missing or unparsable file yields an
// empty set; only read failures other than absence are returned.
func (k *KeyFile) Load() error {
	k.keys = make(map[string]struct{})
	k.pending = make(map[string]struct{})

	data, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read dedup keys: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		k.log.Warn().Err(err).Str("path", k.path).Msg("dedup key file is corrupt, starting empty")
		return nil
	}
	for _, key := range keys {
		k.keys[key] = struct{}{}
	}

	k.log.Debug().Int("keys", len(k.keys)).Str("path", k.path).Msg("dedup keys loaded")
	return nil
}

func (k *KeyFile) Contains(key string) bool {
	if _, ok := k.keys[key]; ok {
		return true
	}
	_, ok := k.pending[key]
	return ok
}

func (k *KeyFile) Add(key string) {
	if _, ok := k.keys[key]; ok {
		return
	}
	k.pending[key] = struct{}{}
}

// Flush atomically rewrites the file with every known key
func (k *KeyFile) Flush() error {
	all := make([]string, 0, len(k.keys)+len(k.pending))
	for key := range k.keys {
		all = append(all, key)
	}
	for key := range k.pending {
		all = append(all, key)
	}
	sort.Strings(all)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(k.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dedup keys: %w", err)
	}

	for key := range k.pending {
		k.keys[key] = struct{}{}
	}
	k.pending = make(map[string]struct{})
	return nil
}

func (k *KeyFile) Rollback() {
	k.pending = make(map[string]struct{})
}

func (k *KeyFile) Len() int { return len(k.keys) + len(k.pending) }
