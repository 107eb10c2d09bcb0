package scraper

import (
	"errors"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoCandidates means neither a container tier nor the link fallback
// matched anything on the page.
var ErrNoCandidates = errors.New("no hot list candidates on page")

// Query selects candidate nodes below root
type Query func(root *goquery.Selection) *goquery.Selection

// Tier is one named query of a cascade
type Tier struct {
	Name  string
	Query Query
}

// CSS builds a tier from a CSS selector
func CSS(selector string) Tier {
	return Tier{
		Name: selector,
		Query: func(root *goquery.Selection) *goquery.Selection {
			return root.Find(selector)
		},
	}
}

// Resolve returns the first tier whose query matches at least one node.
// ok is false when all tiers come back empty.
func Resolve(root *goquery.Selection, tiers []Tier) (tier Tier, nodes *goquery.Selection, ok bool) {
	for _, t := range tiers {
		sel := t.Query(root)
		if sel != nil && sel.Length() > 0 {
			return t, sel, true
		}
	}
	return Tier{}, nil, false
}

// Kind tells which extractor applies to resolved nodes
type Kind int

const (
	KindContainer Kind = iota
	KindLink
)

func (k Kind) String() string {
	if k == KindLink {
		return "link"
	}
	return "container"
}

// Resolution is the outcome of candidate resolution
type Resolution struct {
	Tier  string
	Kind  Kind
	Nodes *goquery.Selection
}

// Len returns the number of candidate nodes
func (r Resolution) Len() int {
	if r.Nodes == nil {
		return 0
	}
	return r.Nodes.Length()
}

// ResolveCandidates runs the container cascade and falls back to
// content links.
func ResolveCandidates(doc *goquery.Document, containers []Tier, fallback Tier) (Resolution, error) {
	if tier, nodes, ok := Resolve(doc.Selection, containers); ok {
		return Resolution{Tier: tier.Name, Kind: KindContainer, Nodes: nodes}, nil
	}
	if tier, nodes, ok := Resolve(doc.Selection, []Tier{fallback}); ok {
		return Resolution{Tier: tier.Name, Kind: KindLink, Nodes: nodes}, nil
	}
	return Resolution{}, ErrNoCandidates
}
