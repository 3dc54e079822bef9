package advisory

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// minLinkLength is the shortest link text still considered a candidate entry.
const minLinkLength = 5

// ParseListing extracts dated entries from the HTML of an index page.
//
// Every anchor's visible text is a candidate. Texts that are too short, lack an
// underscore, or whose second underscore-separated segment is not a timestamp are
// counted in Skipped and otherwise ignored; unrelated links on the page are normal.
func ParseListing(body []byte) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Listing{}, fmt.Errorf("parse listing html: %w", err)
	}

	listing := Listing{Entries: make(map[time.Time]string)}
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		listing.Links++
		entry, ok := ParseEntry(s.Text())
		if !ok {
			listing.Skipped++
			return
		}
		listing.Entries[entry.Timestamp] = entry.Name
	})
	return listing, nil
}

// ParseEntry parses one link text of the form PREFIX_YYYYMMDDHHMMSS/.
func ParseEntry(text string) (Entry, bool) {
	if utf8.RuneCountInString(text) <= minLinkLength {
		return Entry{}, false
	}
	parts := strings.Split(text, "_")
	if len(parts) < 2 {
		return Entry{}, false
	}
	ts, err := time.Parse(TimestampLayout, strings.ReplaceAll(parts[1], "/", ""))
	if err != nil {
		return Entry{}, false
	}
	return Entry{Name: text, Timestamp: ts}, true
}

// Latest returns the entry with the maximum timestamp.
func Latest(listing Listing) (Entry, error) {
	var (
		latest Entry
		found  bool
	)
	for ts, name := range listing.Entries {
		if !found || ts.After(latest.Timestamp) {
			latest = Entry{Name: name, Timestamp: ts}
			found = true
		}
	}
	if !found {
		return Entry{}, ErrNoEntries
	}
	return latest, nil
}
