// Package browsertest provides an in-memory browser.Session serving canned
// pages, for tests that must not start Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ibeckermayer/hotwatch/internal/browser"
)

// ErrNotFound is returned by HTML for URLs the site does not serve
var ErrNotFound = errors.New("browsertest: page not found")

// Site is a fake web site. Configure it before handing Launch to the code
// under test; counters are safe to read afterwards.
type Site struct {
	// Pages maps a URL to the document served there
	Pages map[string]string
	// Redirects maps a requested URL to the URL it lands on
	Redirects map[string]string
	// NavigateErr fails navigation to the given URLs
	NavigateErr map[string]error
	// Stall makes WaitReady time out on the given URLs
	Stall map[string]bool
	// Hang makes Navigate to the given URLs block until ctx is done, like
	// a page whose load event never fires
	Hang map[string]bool
	// LocationHook, when set, rewrites the location reported on each
	// Location call; calls counts the calls so far.
	LocationHook func(current string, calls int) string

	LaunchErr error
	TabErr    error
	CookieJar []byte

	mu            sync.Mutex
	launches      int
	headless      bool
	tabsOpened    int
	tabsClosed    int
	sessionsOpen  int
	injected      [][]byte
	navigations   []string
	locationCalls int
}

// New creates an empty Site
func New() *Site {
	return &Site{
		Pages:       make(map[string]string),
		Redirects:   make(map[string]string),
		NavigateErr: make(map[string]error),
		Stall:       make(map[string]bool),
		Hang:        make(map[string]bool),
	}
}

// Launch implements browser.Launcher
func (s *Site) Launch(ctx context.Context, headless bool) (browser.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	s.launches++
	s.headless = headless
	s.sessionsOpen++
	return &session{tab: tab{site: s}}, nil
}

// Launches returns how many sessions were started
func (s *Site) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

// Headless reports the mode of the last launch
func (s *Site) Headless() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headless
}

// OpenSessions returns how many sessions were launched but not closed
func (s *Site) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionsOpen
}

// Tabs returns how many tabs were opened and closed
func (s *Site) Tabs() (opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabsOpened, s.tabsClosed
}

// Injected returns every cookie blob passed to SetCookies
func (s *Site) Injected() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.injected...)
}

// Navigations returns the requested URLs in order
func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

type tab struct {
	site    *Site
	current string
	closed  bool
}

func (t *tab) Navigate(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s := t.site
	s.mu.Lock()
	s.navigations = append(s.navigations, url)
	hang := s.Hang[url]
	s.mu.Unlock()

	if hang {
		<-ctx.Done()
		return "", fmt.Errorf("failed to navigate to %s: %w", url, ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.NavigateErr[url]; err != nil {
		return "", err
	}
	if to, ok := s.Redirects[url]; ok {
		url = to
	}
	t.current = url
	return url, nil
}

func (t *tab) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s := t.site
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locationCalls++
	if s.LocationHook != nil {
		t.current = s.LocationHook(t.current, s.locationCalls)
	}
	return t.current, nil
}

func (t *tab) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.site
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Stall[t.current] {
		return fmt.Errorf("waiting for %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (t *tab) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s := t.site
	s.mu.Lock()
	defer s.mu.Unlock()

	html, ok := s.Pages[t.current]
	if !ok {
		return "", fmt.Errorf("%s: %w", t.current, ErrNotFound)
	}
	return html, nil
}

func (t *tab) Close() error {
	s := t.site
	s.mu.Lock()
	defer s.mu.Unlock()

	if !t.closed {
		t.closed = true
		s.tabsClosed++
	}
	return nil
}

type session struct {
	tab
}

func (ss *session) SetCookies(ctx context.Context, blob []byte) error {
	s := ss.site
	s.mu.Lock()
	defer s.mu.Unlock()

	s.injected = append(s.injected, append([]byte(nil), blob...))
	return nil
}

func (ss *session) Cookies(ctx context.Context) ([]byte, error) {
	s := ss.site
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.CookieJar) == 0 {
		return nil, errors.New("browsertest: no cookies")
	}
	return append([]byte(nil), s.CookieJar...), nil
}

func (ss *session) NewTab(ctx context.Context) (browser.Tab, error) {
	s := ss.site
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TabErr != nil {
		return nil, s.TabErr
	}
	s.tabsOpened++
	return &tab{site: s}, nil
}

func (ss *session) Close() error {
	s := ss.site
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ss.closed {
		ss.closed = true
		s.sessionsOpen--
	}
	return nil
}
