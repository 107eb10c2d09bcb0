package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hotwatch/internal/browser/browsertest"
	"github.com/ibeckermayer/hotwatch/internal/types"
)

const questionURL = "https://www.zhihu.com/question/111"

func newSession(t *testing.T, site *browsertest.Site) TabOpener {
	t.Helper()
	sess, err := site.Launch(context.Background(), true)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestEnrichPopulated(t *testing.T) {
	site := browsertest.New()
	site.Pages[questionURL] = questionPage
	e := NewEnricher(time.Second, zerolog.Nop())

	d := e.Enrich(context.Background(), newSession(t, site), questionURL)
	assert.Equal(t, types.DetailPopulated, d.Status)
	assert.Equal(t, 12345, d.ViewCount)

	opened, closed := site.Tabs()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestEnrichAttemptedEmpty(t *testing.T) {
	site := browsertest.New()
	site.Pages[questionURL] = `<html><body></body></html>`

	d := NewEnricher(time.Second, zerolog.Nop()).Enrich(context.Background(), newSession(t, site), questionURL)
	assert.Equal(t, types.Detail{Status: types.DetailEmpty}, d)
}

func TestEnrichReleasesTabOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*browsertest.Site)
	}{
		{"readiness timeout", func(s *browsertest.Site) {
			s.Pages[questionURL] = questionPage
			s.Stall[questionURL] = true
		}},
		{"navigation error", func(s *browsertest.Site) {
			s.NavigateErr[questionURL] = errors.New("net::ERR_CONNECTION_RESET")
		}},
		{"missing page", func(s *browsertest.Site) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := browsertest.New()
			tt.setup(site)

			d := NewEnricher(time.Second, zerolog.Nop()).Enrich(context.Background(), newSession(t, site), questionURL)
			assert.Equal(t, types.Detail{Status: types.DetailEmpty}, d)

			opened, closed := site.Tabs()
			assert.Equal(t, 1, opened)
			assert.Equal(t, opened, closed)
		})
	}
}

func TestEnrichTabOpenFailure(t *testing.T) {
	site := browsertest.New()
	site.TabErr = errors.New("target crashed")

	d := NewEnricher(time.Second, zerolog.Nop()).Enrich(context.Background(), newSession(t, site), questionURL)
	assert.Equal(t, types.DetailEmpty, d.Status)

	opened, _ := site.Tabs()
	assert.Zero(t, opened)
}

func TestEnrichBoundsHungNavigation(t *testing.T) {
	site := browsertest.New()
	site.Pages[questionURL] = questionPage
	site.Hang[questionURL] = true

	start := time.Now()
	d := NewEnricher(50*time.Millisecond, zerolog.Nop()).Enrich(context.Background(), newSession(t, site), questionURL)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, types.Detail{Status: types.DetailEmpty}, d)

	opened, closed := site.Tabs()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}
