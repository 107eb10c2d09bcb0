package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/hotwatch/internal/browser"
)

// ErrLoginTimeout is returned when the user did not finish signing in
var ErrLoginTimeout = errors.New("login timeout exceeded")

// DefaultPollInterval is how often Login checks the browser location
const DefaultPollInterval = 2 * time.Second

// Manager runs the human-gated login flow
type Manager struct {
	store     *SessionStore
	launch    browser.Launcher
	signinURL string
	markers   []string
	timeout   time.Duration
	log       zerolog.Logger

	PollInterval time.Duration
}

// NewManager creates a new auth manager
func NewManager(store *SessionStore, launch browser.Launcher, signinURL string, markers []string, timeout time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		store:        store,
		launch:       launch,
		signinURL:    signinURL,
		markers:      markers,
		timeout:      timeout,
		log:          logger,
		PollInterval: DefaultPollInterval,
	}
}

// IsAuthenticated checks if we have stored credentials. Whether the site
// still accepts them is only known once a crawl navigates.
func (m *Manager) IsAuthenticated() bool {
	return m.store.Exists()
}

// Login opens a visible browser at the sign-in page and waits for the user
// to leave it, then stores the session cookies.
func (m *Manager) Login(ctx context.Context) error {
	sess, err := m.launch(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer sess.Close()

	if _, err := sess.Navigate(ctx, m.signinURL); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	m.log.Info().Str("url", m.signinURL).Dur("timeout", m.timeout).Msg("waiting for login in browser window")

	if err := m.waitForLogin(ctx, sess); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	blob, err := sess.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}
	if err := m.store.Save(blob); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	m.log.Info().Str("path", m.store.Path()).Msg("session saved")
	return nil
}

// waitForLogin polls until the browser has left the sign-in page
func (m *Manager) waitForLogin(ctx context.Context, page browser.Page) error {
	timeout := time.NewTimer(m.timeout)
	defer timeout.Stop()
	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout.C:
			return ErrLoginTimeout
		case <-ticker.C:
			location, err := page.Location(ctx)
			if err != nil {
				m.log.Debug().Err(err).Msg("could not read location")
				continue
			}
			if location != "" && !IsSigninURL(location, m.markers) {
				m.log.Debug().Str("location", location).Msg("left sign-in page")
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.store.Clear()
}
