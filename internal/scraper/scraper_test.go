package scraper

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor("https://www.zhihu.com/hot", func() time.Time { return fixedNow })
	require.NoError(t, err)
	return e
}

const hotListPage = `<html><body>
<section class="HotItem">
  <div class="HotItem-index">1</div>
  <div class="HotItem-content">
    <a href="https://www.zhihu.com/question/111?utm_source=hot" title="q1"><h2 class="HotItem-title">First   question</h2></a>
    <div class="HotItem-metrics">1234 万热度</div>
  </div>
</section>
<section class="HotItem">
  <div class="HotItem-content">
    <a href="/question/222"><h2 class="HotItem-title">Second question</h2></a>
  </div>
</section>
<section class="HotItem">
  <div class="HotItem-content"><span class="HotItem-excerpt"></span></div>
</section>
</body></html>`

func TestResolveCandidatesPrefersFirstMatchingTier(t *testing.T) {
	doc := mustDoc(t, hotListPage)

	res, err := ResolveCandidates(doc, ContainerTiers, LinkFallback)
	require.NoError(t, err)
	assert.Equal(t, KindContainer, res.Kind)
	assert.Equal(t, HotItemSection, res.Tier)
	assert.Equal(t, 3, res.Len())
}

func TestResolveSkipsEmptyTiers(t *testing.T) {
	doc := mustDoc(t, `<div data-za-detail-view-id="1"><h2>A</h2></div><div data-za-detail-view-id="2"><h2>B</h2></div>`)

	tier, nodes, ok := Resolve(doc.Selection, ContainerTiers)
	require.True(t, ok)
	assert.Equal(t, DetailViewItem, tier.Name)
	assert.Equal(t, 2, nodes.Length())
}

func TestResolveCandidatesFallsBackToLinks(t *testing.T) {
	doc := mustDoc(t, `<ul>
		<li><a href="https://www.zhihu.com/question/1">One</a></li>
		<li><a href="https://www.zhihu.com/people/x">Someone</a></li>
		<li><a href="/question/2">Two</a></li>
	</ul>`)

	res, err := ResolveCandidates(doc, ContainerTiers, LinkFallback)
	require.NoError(t, err)
	assert.Equal(t, KindLink, res.Kind)
	assert.Equal(t, 2, res.Len())

	e := newExtractor(t)
	item, _, ok := e.Extract(res.Kind, res.Nodes.Eq(1), 2)
	require.True(t, ok)
	assert.Equal(t, "Two", item.Title)
	assert.Equal(t, "https://www.zhihu.com/question/2", item.URL)
}

func TestResolveCandidatesNothing(t *testing.T) {
	_, err := ResolveCandidates(mustDoc(t, `<p>empty</p>`), ContainerTiers, LinkFallback)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestFromContainer(t *testing.T) {
	doc := mustDoc(t, hotListPage)
	nodes := doc.Find(HotItemSection)
	e := newExtractor(t)

	item, diags, ok := e.FromContainer(nodes.Eq(0), 1)
	require.True(t, ok)
	assert.Empty(t, diags)
	assert.Equal(t, 1, item.Rank)
	assert.Equal(t, "First question", item.Title)
	assert.Equal(t, "https://www.zhihu.com/question/111?utm_source=hot", item.URL)
	assert.Equal(t, "1234 万热度", item.HeatValue)
	assert.Equal(t, fixedNow, item.ObservedAt)
}

func TestFromContainerMissingFieldsDegrade(t *testing.T) {
	doc := mustDoc(t, hotListPage)
	nodes := doc.Find(HotItemSection)
	e := newExtractor(t)

	item, diags, ok := e.FromContainer(nodes.Eq(1), 2)
	require.True(t, ok)
	assert.Equal(t, "Second question", item.Title)
	assert.Equal(t, "https://www.zhihu.com/question/222", item.URL)
	assert.Empty(t, item.HeatValue)
	require.Len(t, diags, 1)
	assert.Equal(t, "heat_value", diags[0].Field)

	_, diags, ok = e.FromContainer(nodes.Eq(2), 3)
	assert.False(t, ok)
	assert.Len(t, diags, 3)
}

func TestFromContainerTitleWithoutLink(t *testing.T) {
	doc := mustDoc(t, `<div class="HotItem"><h2>Only a title</h2></div>`)
	item, diags, ok := newExtractor(t).FromContainer(doc.Find(HotItemDiv), 1)
	require.True(t, ok)
	assert.Equal(t, "Only a title", item.Title)
	assert.Empty(t, item.URL)
	assert.Len(t, diags, 2)
}

func TestFromLinkBorrowsAncestorText(t *testing.T) {
	long := strings.Repeat("长", 150)
	doc := mustDoc(t, `<div><p>`+long+`</p><a href="/question/9"><img src="x.png"></a></div>`)

	item, _, ok := newExtractor(t).FromLink(doc.Find("a"), 4)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("长", 100), item.Title)
	assert.Equal(t, "https://www.zhihu.com/question/9", item.URL)
}

func TestFromLinkWithoutAnyText(t *testing.T) {
	doc := mustDoc(t, `<a href="/question/9"></a>`)
	_, diags, ok := newExtractor(t).FromLink(doc.Find("a"), 1)
	assert.False(t, ok)
	require.NotEmpty(t, diags)
	assert.Equal(t, "title", diags[0].Field)
}
