package report

import (
	"math"
	"sort"
	"time"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

const (
	maxPopularTags = 10
	maxTopAnswered = 5
)

// Analysis summarizes the items observed over a period
type Analysis struct {
	Days           int
	GeneratedAt    time.Time
	TotalQuestions int
	TotalRecords   int
	Start          time.Time
	End            time.Time
	Daily          []DayCount
	PopularTags    []TagCount
	Answers        *AnswerStats
	TopAnswered    []types.HotItem
}

type DayCount struct {
	Date  string
	Count int
}

type TagCount struct {
	Tag   string
	Count int
}

// AnswerStats covers items whose detail page was read
type AnswerStats struct {
	Items  int
	Mean   float64
	Median float64
	Max    int
	Min    int
}

// Analyze computes the report figures for items. It does not filter by
// time; callers pass the items of the period.
func Analyze(items []types.HotItem, days int, now time.Time) Analysis {
	a := Analysis{
		Days:         days,
		GeneratedAt:  now,
		TotalRecords: len(items),
	}
	if len(items) == 0 {
		return a
	}

	keys := make(map[string]bool)
	daily := make(map[string]int)
	tagCounts := make(map[string]int)

	a.Start, a.End = items[0].ObservedAt, items[0].ObservedAt
	for _, it := range items {
		keys[it.IdentityKey] = true
		daily[it.ObservedAt.Format("2006-01-02")]++
		for _, tag := range it.Tags {
			tagCounts[tag]++
		}
		if it.ObservedAt.Before(a.Start) {
			a.Start = it.ObservedAt
		}
		if it.ObservedAt.After(a.End) {
			a.End = it.ObservedAt
		}
	}
	a.TotalQuestions = len(keys)

	for date, n := range daily {
		a.Daily = append(a.Daily, DayCount{Date: date, Count: n})
	}
	sort.Slice(a.Daily, func(i, j int) bool { return a.Daily[i].Date < a.Daily[j].Date })

	for tag, n := range tagCounts {
		a.PopularTags = append(a.PopularTags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(a.PopularTags, func(i, j int) bool {
		if a.PopularTags[i].Count != a.PopularTags[j].Count {
			return a.PopularTags[i].Count > a.PopularTags[j].Count
		}
		return a.PopularTags[i].Tag < a.PopularTags[j].Tag
	})
	if len(a.PopularTags) > maxPopularTags {
		a.PopularTags = a.PopularTags[:maxPopularTags]
	}

	a.Answers = answerStats(items)
	a.TopAnswered = topAnswered(items)
	return a
}

func answerStats(items []types.HotItem) *AnswerStats {
	var counts []int
	for _, it := range items {
		if it.Status == types.DetailPopulated {
			counts = append(counts, it.AnswerCount)
		}
	}
	if len(counts) == 0 {
		return nil
	}
	sort.Ints(counts)

	sum := 0
	for _, n := range counts {
		sum += n
	}
	mid := len(counts) / 2
	median := float64(counts[mid])
	if len(counts)%2 == 0 {
		median = float64(counts[mid-1]+counts[mid]) / 2
	}

	return &AnswerStats{
		Items:  len(counts),
		Mean:   math.Round(float64(sum)/float64(len(counts))*100) / 100,
		Median: median,
		Max:    counts[len(counts)-1],
		Min:    counts[0],
	}
}

// topAnswered returns the most answered questions, one entry per question
func topAnswered(items []types.HotItem) []types.HotItem {
	best := make(map[string]types.HotItem)
	for _, it := range items {
		if it.Status != types.DetailPopulated || it.AnswerCount == 0 {
			continue
		}
		if cur, ok := best[it.IdentityKey]; !ok || it.AnswerCount > cur.AnswerCount {
			best[it.IdentityKey] = it
		}
	}

	out := make([]types.HotItem, 0, len(best))
	for _, it := range best {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnswerCount != out[j].AnswerCount {
			return out[i].AnswerCount > out[j].AnswerCount
		}
		return out[i].IdentityKey < out[j].IdentityKey
	})
	if len(out) > maxTopAnswered {
		out = out[:maxTopAnswered]
	}
	return out
}
