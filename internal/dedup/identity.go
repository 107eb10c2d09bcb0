// Package dedup decides whether an observed item has been seen in an
// earlier run.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
)

var questionIDPattern = regexp.MustCompile(`/question/(\d+)`)

// Identity derives the stable key of an item. Links carrying a question id
// resolve to "q_<id>" regardless of query string or trailing path; anything
// else falls back to the md5 of the title.
func Identity(title, rawURL string) string {
	if m := questionIDPattern.FindStringSubmatch(rawURL); m != nil {
		return "q_" + m[1]
	}
	sum := md5.Sum([]byte(title))
	return hex.EncodeToString(sum[:])
}

// QuestionID returns the numeric id embedded in a content link
func QuestionID(rawURL string) (string, bool) {
	m := questionIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}
