package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

var (
	countPattern = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?\s*[KkMm万亿]?`)
	viewPattern  = regexp.MustCompile(`(\d+(?:,\d+)*)\s*次浏览`)
)

// ParseDetail reads the secondary fields of a question page. Fields are
// independent; one that cannot be read stays zero and is reported as a
// diagnostic. Status is left for the caller to set.
func ParseDetail(doc *goquery.Document) (types.Detail, []Diagnostic) {
	var d types.Detail
	var diags []Diagnostic

	note := func(field string, err error) {
		diags = append(diags, Diagnostic{Field: field, Err: err})
	}

	if n, err := answerCount(doc); err != nil {
		note("answer_count", err)
	} else {
		d.AnswerCount = n
	}

	followers, views := numberBoard(doc)
	if followers > 0 {
		d.FollowerCount = followers
	} else {
		note("follower_count", errNotFound)
	}

	if n, err := viewCount(doc); err == nil {
		d.ViewCount = n
	} else if views > 0 {
		d.ViewCount = views
	} else {
		note("view_count", err)
	}

	d.Tags = tags(doc)
	if len(d.Tags) == 0 {
		note("question_tags", errNotFound)
	}

	return d, diags
}

func answerCount(doc *goquery.Document) (int, error) {
	sel := doc.Find(AnswerCount).First()
	if sel.Length() == 0 {
		return 0, errNotFound
	}
	n, ok := firstCount(sel.Text())
	if !ok {
		return 0, errEmpty
	}
	return n, nil
}

// numberBoard scans board values and classifies them by the label text
// of their parent.
func numberBoard(doc *goquery.Document) (followers, views int) {
	doc.Find(NumberBoardValue).Each(func(_ int, v *goquery.Selection) {
		label := v.Parent().Text()
		n, ok := firstCount(v.Text())
		if !ok {
			return
		}
		switch {
		case followers == 0 && strings.Contains(label, FollowerLabel):
			followers = n
		case views == 0 && strings.Contains(label, ViewLabel):
			views = n
		}
	})
	return followers, views
}

func viewCount(doc *goquery.Document) (int, error) {
	sel := doc.Find(QuestionMeta).First()
	if sel.Length() == 0 {
		return 0, errNotFound
	}
	m := viewPattern.FindStringSubmatch(sel.Text())
	if m == nil {
		return 0, errEmpty
	}
	n, ok := parseCount(m[1])
	if !ok {
		return 0, errEmpty
	}
	return n, nil
}

// tags returns topic names in page order without duplicates
func tags(doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]bool)
	doc.Find(QuestionTag).Each(func(_ int, s *goquery.Selection) {
		tag := normalize(s.Text())
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	})
	return out
}

func firstCount(s string) (int, bool) {
	m := countPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	return parseCount(m)
}

// parseCount converts strings like "1,234", "1.2K", "3.5万" or "2亿" to
// integers.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "万"):
		multiplier = 1e4
		s = strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "亿"):
		multiplier = 1e8
		s = strings.TrimSuffix(s, "亿")
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1e3
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1e6
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return int(value*multiplier + 0.5), true
}
