package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/ibeckermayer/hotwatch/internal/store"
)

// ErrNoSession means no credential has been stored yet. Recovery is a
// manual login.
var ErrNoSession = errors.New("no stored session, run login first")

// SessionStore handles storage of the session credential blob. The blob
// is opaque here; only the browser package knows its format.
type SessionStore struct {
	path string
}

// NewSessionStore creates a session store at the given path
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

func (s *SessionStore) Path() string { return s.path }

// Load returns the stored blob, or ErrNoSession when there is none
func (s *SessionStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoSession
	}
	return data, nil
}

// Save persists the blob readable by the owner only
// TODO: Encrypt the session at rest
func (s *SessionStore) Save(blob []byte) error {
	if len(blob) == 0 {
		return errors.New("refusing to save an empty session")
	}
	return store.WriteFileAtomic(s.path, blob, 0600)
}

// Exists reports whether a non-empty blob is stored
func (s *SessionStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Size() > 0
}

// Clear removes the stored session
func (s *SessionStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// IsSigninURL reports whether location is an authentication page, i.e.
// its path contains one of markers.
func IsSigninURL(location string, markers []string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path + "?" + u.RawQuery)
	for _, m := range markers {
		if m != "" && strings.Contains(p, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
