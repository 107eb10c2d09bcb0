package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// Page is one browsing context able to load and snapshot a document
type Page interface {
	// Navigate loads url and returns the location after redirects
	Navigate(ctx context.Context, url string) (string, error)
	Location(ctx context.Context) (string, error)
	// WaitReady blocks until selector matches or timeout elapses
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// HTML returns the serialized document
	HTML(ctx context.Context) (string, error)
}

// Tab is an isolated browsing context opened from a Session. Close must
// be called on every path.
type Tab interface {
	Page
	Close() error
}

// Session is the primary browsing context plus the browser that owns it
type Session interface {
	Page
	// SetCookies injects a cookie blob produced by Cookies
	SetCookies(ctx context.Context, blob []byte) error
	Cookies(ctx context.Context) ([]byte, error)
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Launcher starts a browsing session
type Launcher func(ctx context.Context, headless bool) (Session, error)

// page drives a single chromedp target
type page struct {
	ctx context.Context
}

// run executes actions on the target, bounded by the caller's ctx
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *page) Navigate(ctx context.Context, url string) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Navigate(url), chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return location, nil
}

func (p *page) Location(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (p *page) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

func (p *page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

// Chrome is a Session backed by a local Chrome process
type Chrome struct {
	page
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

var _ Session = (*Chrome)(nil)

// Launch starts Chrome and opens the primary tab. The browser lives until
// Close is called or ctx is cancelled.
func Launch(ctx context.Context, headless bool) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, Options(headless)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// First Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Chrome{
		page:          page{ctx: browserCtx},
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

func (c *Chrome) SetCookies(ctx context.Context, blob []byte) error {
	jar, err := DecodeCookies(blob)
	if err != nil {
		return err
	}

	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ck := range jar.Cookies {
			params := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(ck.Path).
				WithSecure(ck.Secure).
				WithHTTPOnly(ck.HTTPOnly)
			if ck.SameSite != "" {
				params = params.WithSameSite(ck.SameSite)
			}
			if exp := cookieExpiry(ck); exp != nil {
				params = params.WithExpires(exp)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", ck.Name, err)
			}
		}
		return nil
	}))
}

func (c *Chrome) Cookies(ctx context.Context) ([]byte, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	return EncodeCookies(cookies, time.Now())
}

// NewTab opens a new target in the same browser
func (c *Chrome) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(c.ctx)
	t := &chromeTab{page: page{ctx: tabCtx}, cancel: cancel}

	// First Run creates the target; it must use the tab context itself
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return t, nil
}

func (c *Chrome) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

type chromeTab struct {
	page
	cancel context.CancelFunc
}

// Close cancels the tab context, which makes chromedp close the target
func (t *chromeTab) Close() error {
	t.cancel()
	return nil
}
