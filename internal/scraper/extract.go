package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

// ancestorTitleLimit bounds a title borrowed from the text around a link
const ancestorTitleLimit = 100

var (
	errNotFound = errors.New("element not found")
	errEmpty    = errors.New("element has no text")
)

// Diagnostic records a field that could not be extracted. It is never
// fatal to the item or the run.
type Diagnostic struct {
	Rank  int
	Field string
	Err   error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("rank %d: %s: %v", d.Rank, d.Field, d.Err)
}

// Extractor normalizes resolved nodes into HotItems
type Extractor struct {
	base *url.URL
	now  func() time.Time
}

// NewExtractor creates an Extractor resolving relative links against
// pageURL.
func NewExtractor(pageURL string, now func() time.Time) (*Extractor, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	if now == nil {
		now = time.Now
	}
	return &Extractor{base: base, now: now}, nil
}

// Extract dispatches on the resolution kind. ok is false when the node
// yields no title, in which case the item must be discarded.
func (e *Extractor) Extract(kind Kind, node *goquery.Selection, rank int) (types.HotItem, []Diagnostic, bool) {
	if kind == KindLink {
		return e.FromLink(node, rank)
	}
	return e.FromContainer(node, rank)
}

// FromContainer reads title, url and heat from a hot list container.
// Each field is extracted on its own; a missing one is left empty.
func (e *Extractor) FromContainer(node *goquery.Selection, rank int) (types.HotItem, []Diagnostic, bool) {
	item := types.HotItem{Rank: rank, ObservedAt: e.now()}
	var diags []Diagnostic

	note := func(field string, err error) {
		diags = append(diags, Diagnostic{Rank: rank, Field: field, Err: err})
	}

	if title, err := firstText(node, ItemTitle); err != nil {
		note("title", err)
	} else {
		item.Title = title
	}

	if u, err := e.firstLink(node, ItemLink); err != nil {
		note("url", err)
	} else {
		item.URL = u
	}

	if heat, err := firstText(node, ItemHeat); err != nil {
		note("heat_value", err)
	} else {
		item.HeatValue = heat
	}

	return item, diags, item.Title != ""
}

// FromLink builds an item from a bare content link. A link without text
// borrows the text of its nearest ancestor.
func (e *Extractor) FromLink(a *goquery.Selection, rank int) (types.HotItem, []Diagnostic, bool) {
	item := types.HotItem{Rank: rank, ObservedAt: e.now()}
	var diags []Diagnostic

	note := func(field string, err error) {
		diags = append(diags, Diagnostic{Rank: rank, Field: field, Err: err})
	}

	if title, err := linkTitle(a); err != nil {
		note("title", err)
	} else {
		item.Title = title
	}

	if href, ok := a.Attr("href"); !ok {
		note("url", errNotFound)
	} else if u, err := e.absolute(href); err != nil {
		note("url", err)
	} else {
		item.URL = u
	}

	return item, diags, item.Title != ""
}

func linkTitle(a *goquery.Selection) (string, error) {
	if title := normalize(a.Text()); title != "" {
		return title, nil
	}

	var title string
	a.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		title = truncate(normalize(p.Text()), ancestorTitleLimit)
		return title == ""
	})
	if title == "" {
		return "", errEmpty
	}
	return title, nil
}

func firstText(node *goquery.Selection, selector string) (string, error) {
	sel := node.Find(selector).First()
	if sel.Length() == 0 {
		return "", errNotFound
	}
	text := normalize(sel.Text())
	if text == "" {
		return "", errEmpty
	}
	return text, nil
}

func (e *Extractor) firstLink(node *goquery.Selection, selector string) (string, error) {
	sel := node.Find(selector).First()
	if sel.Length() == 0 {
		// the container itself may be the link
		if goquery.NodeName(node) != "a" {
			return "", errNotFound
		}
		sel = node
	}
	href, _ := sel.Attr("href")
	return e.absolute(href)
}

func (e *Extractor) absolute(href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", errEmpty
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return e.base.ResolveReference(ref).String(), nil
}

// normalize collapses runs of whitespace
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
