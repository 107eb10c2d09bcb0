package scraper

// Zhihu DOM selectors
// These are isolated here because Zhihu changes its DOM frequently
// Update these when scraping breaks

// Hot list containers, most precise first
const (
	HotItemDiv     = `div.HotItem`
	HotItemSection = `section.HotItem`
	HotItemAny     = `[class*='HotItem']`
	DetailViewItem = `div[data-za-detail-view-id]`
)

// Link fallback when no container tier matches
const QuestionLink = `a[href*='/question/']`

// Fields inside a hot list container
const (
	ItemTitle = `h2, [class*='title'], a`
	ItemLink  = `a[href]`
	ItemHeat  = `[class*='metrics'], [class*='hot'], [class*='HotItem-metrics']`
)

// Question page selectors
const (
	AnswerCount      = `[class*='NumberBoard-itemValue'], [class*='List-headerText'], .NumberBoard-value`
	NumberBoardValue = `[class*='NumberBoard-itemValue'], .NumberBoard-value`
	QuestionMeta     = `[class*='ContentItem-meta'], [class*='QuestionHeader-detail']`
	QuestionTag      = `.QuestionHeader-tags .Tag, [class*='QuestionTopic'] .Tag`
)

// Labels next to number board values
const (
	FollowerLabel = "关注"
	ViewLabel     = "浏览"
)

// Common wait conditions
const (
	WaitForHotList  = `body`
	WaitForQuestion = `body`
)

// ContainerTiers is the cascade tried against the hot list page
var ContainerTiers = []Tier{
	CSS(HotItemDiv),
	CSS(HotItemSection),
	CSS(HotItemAny),
	CSS(DetailViewItem),
}

// LinkFallback is used when every container tier comes back empty
var LinkFallback = CSS(QuestionLink)
