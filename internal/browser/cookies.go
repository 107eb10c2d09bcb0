package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// CookieJar is the serialized form of a browser session
type CookieJar struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
}

// EncodeCookies serializes cookies captured at t
func EncodeCookies(cookies []*network.Cookie, t time.Time) ([]byte, error) {
	return json.MarshalIndent(CookieJar{Cookies: cookies, CapturedAt: t}, "", "  ")
}

// DecodeCookies parses a blob written by EncodeCookies
func DecodeCookies(blob []byte) (*CookieJar, error) {
	var jar CookieJar
	if err := json.Unmarshal(blob, &jar); err != nil {
		return nil, fmt.Errorf("failed to decode cookies: %w", err)
	}
	if len(jar.Cookies) == 0 {
		return nil, errors.New("cookie jar is empty")
	}
	return &jar, nil
}

// EarliestExpiry returns the soonest expiry among persistent cookies, or
// the zero time when every cookie lasts for the browser session only.
func (j *CookieJar) EarliestExpiry() time.Time {
	var earliest time.Time
	for _, c := range j.Cookies {
		if c.Session || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	return earliest
}

func cookieExpiry(c *network.Cookie) *cdp.TimeSinceEpoch {
	if c.Session || c.Expires <= 0 {
		return nil
	}
	t := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
	return &t
}
