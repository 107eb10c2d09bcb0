package types

import "time"

// DetailStatus records whether detail enrichment ran for an item
type DetailStatus string

const (
	DetailNotAttempted DetailStatus = "not_attempted"
	DetailEmpty        DetailStatus = "attempted_empty"
	DetailPopulated    DetailStatus = "attempted_populated"
)

// Detail holds the secondary fields read from an item's own page.
// Counts are zero when not measured; Status tells the cases apart.
type Detail struct {
	AnswerCount   int          `json:"answer_count"`
	FollowerCount int          `json:"follower_count"`
	ViewCount     int          `json:"view_count"`
	Tags          []string     `json:"question_tags"`
	Status        DetailStatus `json:"detail_status"`
}

// HasData reports whether any detail field carries a measured value
func (d Detail) HasData() bool {
	return d.AnswerCount > 0 || d.FollowerCount > 0 || d.ViewCount > 0 || len(d.Tags) > 0
}

// HotItem represents one observed entry of the hot list
type HotItem struct {
	Rank        int       `json:"rank"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	IdentityKey string    `json:"question_hash"`
	HeatValue   string    `json:"heat_value,omitempty"`
	ObservedAt  time.Time `json:"crawl_time"`

	Detail
}

// RunRecord is one entry of the run history log
type RunRecord struct {
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
	Path      string    `json:"filepath"`
}
