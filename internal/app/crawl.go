package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/hotwatch/internal/auth"
	"github.com/ibeckermayer/hotwatch/internal/browser"
	"github.com/ibeckermayer/hotwatch/internal/config"
	"github.com/ibeckermayer/hotwatch/internal/dedup"
	"github.com/ibeckermayer/hotwatch/internal/scraper"
	"github.com/ibeckermayer/hotwatch/internal/types"
)

// ErrSessionInvalid means the stored session was rejected and the site
// redirected to its sign-in page. Recovery is a manual login.
var ErrSessionInvalid = errors.New("session rejected by site, run login again")

const (
	// listReadyTimeout bounds the wait for the hot list document
	listReadyTimeout = 20 * time.Second
	// navigateTimeout bounds each navigation of the primary context
	navigateTimeout = 30 * time.Second
)

// Credentials loads the stored session blob
type Credentials interface {
	Load() ([]byte, error)
}

// Artifacts stores one output file per run
type Artifacts interface {
	Save(items []types.HotItem, at time.Time) (string, error)
	Remove(path string) error
}

// RunLog records completed runs
type RunLog interface {
	Append(rec types.RunRecord) error
}

// Archiver keeps a queryable copy of accepted items
type Archiver interface {
	Archive(ctx context.Context, runID string, items []types.HotItem) error
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Deps are the collaborators of a Crawler. Archive, Now and Sleep are
// optional.
type Deps struct {
	Credentials Credentials
	Launch      browser.Launcher
	Seen        dedup.Set
	Output      Artifacts
	History     RunLog
	Archive     Archiver
	Logger      zerolog.Logger
	Now         func() time.Time
	Sleep       SleepFunc
}

// Crawler runs one end-to-end crawl of the hot list
type Crawler struct {
	cfg      config.CrawlConfig
	creds    Credentials
	launch   browser.Launcher
	seen     dedup.Set
	output   Artifacts
	history  RunLog
	archive  Archiver
	enricher *scraper.Enricher
	log      zerolog.Logger
	now      func() time.Time
	sleep    SleepFunc

	navTimeout time.Duration
}

// NewCrawler creates a Crawler
func NewCrawler(cfg config.CrawlConfig, d Deps) *Crawler {
	c := &Crawler{
		cfg:      cfg,
		creds:    d.Credentials,
		launch:   d.Launch,
		seen:     d.Seen,
		output:   d.Output,
		history:  d.History,
		archive:  d.Archive,
		enricher: scraper.NewEnricher(cfg.DetailTimeout(), d.Logger),
		log:      d.Logger,
		now:      d.Now,
		sleep:    d.Sleep,

		navTimeout: navigateTimeout,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}
	return c
}

// Options select per-run behaviour
type Options struct {
	// Details enables detail enrichment for the first accepted items
	Details bool
}

// Result summarizes a run. Path is empty when no new item was accepted.
type Result struct {
	RunID      string
	Path       string
	Tier       string
	Candidates int
	Accepted   int
	Skipped    int
	Discarded  int
	Enriched   int
}

// RunOnce performs a single crawl and returns the artifact path. The dedup
// set is flushed only when the run succeeds; on any failure the keys
// added by this run are dropped.
func (c *Crawler) RunOnce(ctx context.Context, opts Options) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := c.log.With().Str("run_id", res.RunID).Logger()
	start := c.now()

	log.Info().Bool("details", opts.Details).Str("target", c.cfg.TargetURL).Msg("crawl started")

	if err := c.seen.Load(); err != nil {
		return res, fmt.Errorf("failed to load dedup store: %w", err)
	}

	blob, err := c.creds.Load()
	if err != nil {
		return res, fmt.Errorf("failed to restore session: %w", err)
	}

	sess, err := c.launch(ctx, c.cfg.Headless)
	if err != nil {
		return res, fmt.Errorf("failed to start browser: %w", err)
	}
	defer sess.Close()

	location, err := c.openTarget(ctx, sess, blob)
	if err != nil {
		return res, err
	}
	log.Debug().Str("location", location).Msg("target page loaded")

	accepted, err := c.collect(ctx, log, sess, location, opts, &res)
	if err != nil {
		c.seen.Rollback()
		return res, err
	}

	if len(accepted) == 0 {
		c.seen.Rollback()
		log.Info().
			Int("candidates", res.Candidates).
			Int("skipped", res.Skipped).
			Msg("no new items, nothing saved")
		return res, nil
	}

	if err := c.persist(ctx, log, accepted, &res); err != nil {
		return res, err
	}

	log.Info().
		Str("path", res.Path).
		Str("tier", res.Tier).
		Int("candidates", res.Candidates).
		Int("accepted", res.Accepted).
		Int("skipped", res.Skipped).
		Int("discarded", res.Discarded).
		Int("enriched", res.Enriched).
		Dur("took", c.now().Sub(start)).
		Msg("crawl completed")
	return res, nil
}

// openTarget injects the session and loads the hot list, failing when the
// site bounces to its sign-in page.
func (c *Crawler) openTarget(ctx context.Context, sess browser.Session, blob []byte) (string, error) {
	// cookies can only be set once a page of the site is open
	root, err := siteRoot(c.cfg.TargetURL)
	if err != nil {
		return "", err
	}
	if _, err := c.navigate(ctx, sess, root); err != nil {
		return "", err
	}
	if err := sess.SetCookies(ctx, blob); err != nil {
		return "", fmt.Errorf("failed to inject session: %w", err)
	}

	location, err := c.navigate(ctx, sess, c.cfg.TargetURL)
	if err != nil {
		return "", err
	}
	if err := c.sleep(ctx, c.cfg.PageSettle()); err != nil {
		return "", err
	}
	// client-side redirects land after the settle wait
	if loc, err := sess.Location(ctx); err == nil && loc != "" {
		location = loc
	}
	if auth.IsSigninURL(location, c.cfg.SigninMarkers) {
		return "", fmt.Errorf("%w (landed on %s)", ErrSessionInvalid, location)
	}

	if err := sess.WaitReady(ctx, scraper.WaitForHotList, listReadyTimeout); err != nil {
		return "", fmt.Errorf("hot list did not load: %w", err)
	}
	return location, nil
}

// navigate loads url in the primary context. A page whose load never
// completes fails the run after navTimeout.
func (c *Crawler) navigate(ctx context.Context, sess browser.Session, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(ctx, c.navTimeout)
	defer cancel()
	return sess.Navigate(navCtx, url)
}

// collect resolves, extracts, deduplicates and enriches the candidates
func (c *Crawler) collect(ctx context.Context, log zerolog.Logger, sess browser.Session, location string, opts Options, res *Result) ([]types.HotItem, error) {
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hot list: %w", err)
	}

	resolution, err := scraper.ResolveCandidates(doc, scraper.ContainerTiers, scraper.LinkFallback)
	if err != nil {
		return nil, err
	}
	res.Tier = resolution.Tier
	res.Candidates = min(resolution.Len(), c.cfg.MaxCandidates)
	log.Info().
		Str("tier", resolution.Tier).
		Stringer("kind", resolution.Kind).
		Int("found", resolution.Len()).
		Msg("candidates resolved")

	extractor, err := scraper.NewExtractor(location, c.now)
	if err != nil {
		return nil, err
	}

	var accepted []types.HotItem
	for i := 0; i < res.Candidates; i++ {
		rank := i + 1
		item, ok := c.extractOne(log, extractor, resolution.Kind, resolution.Nodes.Eq(i), rank)
		if !ok {
			res.Discarded++
			continue
		}

		item.IdentityKey = dedup.Identity(item.Title, item.URL)
		if c.seen.Contains(item.IdentityKey) {
			res.Skipped++
			continue
		}

		item.Detail = types.Detail{Status: types.DetailNotAttempted}
		if opts.Details && item.URL != "" && res.Enriched < c.cfg.DetailLimit {
			if res.Enriched > 0 {
				if err := c.sleep(ctx, c.cfg.DetailPause()); err != nil {
					return nil, err
				}
			}
			item.Detail = c.enricher.Enrich(ctx, sess, item.URL)
			res.Enriched++
		}

		c.seen.Add(item.IdentityKey)
		accepted = append(accepted, item)
		log.Debug().
			Int("rank", rank).
			Str("key", item.IdentityKey).
			Str("title", item.Title).
			Str("detail", string(item.Status)).
			Msg("item accepted")
	}

	res.Accepted = len(accepted)
	return accepted, nil
}

// extractOne isolates a single candidate so that a failure discards only
// that item.
func (c *Crawler) extractOne(log zerolog.Logger, e *scraper.Extractor, kind scraper.Kind, node *goquery.Selection, rank int) (item types.HotItem, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("rank", rank).Msg("item extraction panicked")
			item, ok = types.HotItem{}, false
		}
	}()

	item, diags, ok := e.Extract(kind, node, rank)
	for _, d := range diags {
		log.Debug().Int("rank", d.Rank).Str("field", d.Field).Err(d.Err).Msg("field not extracted")
	}
	if !ok {
		log.Debug().Int("rank", rank).Msg("candidate without title discarded")
	}
	return item, ok
}

// persist writes the artifact, checkpoints the dedup set and records the
// run, in that order.
func (c *Crawler) persist(ctx context.Context, log zerolog.Logger, items []types.HotItem, res *Result) error {
	at := c.now()

	path, err := c.output.Save(items, at)
	if err != nil {
		c.seen.Rollback()
		return fmt.Errorf("failed to save artifact: %w", err)
	}

	if err := c.seen.Flush(); err != nil {
		c.seen.Rollback()
		if rmErr := c.output.Remove(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("failed to remove artifact of failed run")
		}
		return fmt.Errorf("failed to flush dedup store: %w", err)
	}

	rec := types.RunRecord{RunID: res.RunID, Timestamp: at, Count: len(items), Path: path}
	if err := c.history.Append(rec); err != nil {
		return fmt.Errorf("failed to append run history: %w", err)
	}
	res.Path = path

	if c.archive != nil {
		if err := c.archive.Archive(ctx, res.RunID, items); err != nil {
			log.Warn().Err(err).Msg("failed to archive items")
		}
	}
	return nil
}

func siteRoot(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid target url %q", target)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
