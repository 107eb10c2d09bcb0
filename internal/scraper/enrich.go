package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/hotwatch/internal/browser"
	"github.com/ibeckermayer/hotwatch/internal/types"
)

// TabOpener opens isolated browsing contexts
type TabOpener interface {
	NewTab(ctx context.Context) (browser.Tab, error)
}

// Enricher fetches detail fields from an item's own page
type Enricher struct {
	timeout time.Duration
	log     zerolog.Logger
}

// NewEnricher creates an Enricher waiting at most timeout for a page
func NewEnricher(timeout time.Duration, logger zerolog.Logger) *Enricher {
	return &Enricher{timeout: timeout, log: logger}
}

// Enrich loads url in a new tab and returns its detail fields. It never
// fails: any error yields an empty detail marked as attempted.
func (e *Enricher) Enrich(ctx context.Context, opener TabOpener, url string) (detail types.Detail) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("url", url).Msg("detail extraction panicked")
			detail = types.Detail{Status: types.DetailEmpty}
		}
	}()

	detail, err := e.fetch(ctx, opener, url)
	if err != nil {
		e.log.Warn().Err(err).Str("url", url).Msg("detail fetch failed")
		return types.Detail{Status: types.DetailEmpty}
	}
	return detail
}

// fetch shares one timeout between navigation, the readiness wait and the
// snapshot.
func (e *Enricher) fetch(ctx context.Context, opener TabOpener, url string) (types.Detail, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tab, err := opener.NewTab(ctx)
	if err != nil {
		return types.Detail{}, fmt.Errorf("failed to open tab: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			e.log.Warn().Err(err).Msg("failed to close tab")
		}
	}()

	if _, err := tab.Navigate(ctx, url); err != nil {
		return types.Detail{}, err
	}
	if err := tab.WaitReady(ctx, WaitForQuestion, e.timeout); err != nil {
		return types.Detail{}, err
	}
	html, err := tab.HTML(ctx)
	if err != nil {
		return types.Detail{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.Detail{}, fmt.Errorf("failed to parse question page: %w", err)
	}

	detail, diags := ParseDetail(doc)
	for _, d := range diags {
		e.log.Debug().Str("url", url).Str("field", d.Field).Err(d.Err).Msg("detail field missing")
	}

	detail.Status = types.DetailEmpty
	if detail.HasData() {
		detail.Status = types.DetailPopulated
	}
	return detail, nil
}
