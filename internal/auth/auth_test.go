package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hotwatch/internal/browser/browsertest"
)

var markers = []string{"signin", "login"}

func TestSessionStoreMissing(t *testing.T) {
	s := NewSessionStore(filepath.Join(t.TempDir(), "zhihu_cookies.json"))
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, s.Exists())
	assert.NoError(t, s.Clear())
}

func TestSessionStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zhihu_cookies.json")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := NewSessionStore(path).Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "zhihu_cookies.json")
	s := NewSessionStore(path)

	require.NoError(t, s.Save([]byte("opaque")))
	assert.True(t, s.Exists())

	blob, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("opaque"), blob)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, s.Clear())
	assert.False(t, s.Exists())
}

func TestIsSigninURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.zhihu.com/signin?next=%2Fhot", true},
		{"https://www.zhihu.com/account/login", true},
		{"https://www.zhihu.com/hot", false},
		{"https://www.zhihu.com/question/123", false},
		{"https://signin.example.com/hot", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSigninURL(tt.url, markers), tt.url)
	}
}

func newTestManager(t *testing.T, site *browsertest.Site, timeout time.Duration) (*Manager, *SessionStore) {
	t.Helper()
	store := NewSessionStore(filepath.Join(t.TempDir(), "zhihu_cookies.json"))
	m := NewManager(store, site.Launch, "https://www.zhihu.com/signin", markers, timeout, zerolog.Nop())
	m.PollInterval = time.Millisecond
	return m, store
}

func TestLoginSavesCookiesAfterLeavingSignin(t *testing.T) {
	site := browsertest.New()
	site.CookieJar = []byte(`{"cookies":[{"name":"z_c0"}]}`)
	site.LocationHook = func(current string, calls int) string {
		if calls >= 3 {
			return "https://www.zhihu.com/"
		}
		return current
	}

	m, store := newTestManager(t, site, time.Second)
	require.NoError(t, m.Login(context.Background()))

	blob, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, site.CookieJar, blob)
	assert.False(t, site.Headless())
	assert.Equal(t, 0, site.OpenSessions())
	assert.True(t, m.IsAuthenticated())
}

func TestLoginTimeout(t *testing.T) {
	site := browsertest.New()
	m, store := newTestManager(t, site, 20*time.Millisecond)

	err := m.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginTimeout)
	assert.False(t, store.Exists())
	assert.Equal(t, 0, site.OpenSessions())
}

func TestLoginLaunchFailure(t *testing.T) {
	site := browsertest.New()
	site.LaunchErr = errors.New("no chrome")
	m, _ := newTestManager(t, site, time.Second)

	err := m.Login(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no chrome"))
}
