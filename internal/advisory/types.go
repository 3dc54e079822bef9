package advisory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the layout of the timestamp embedded in entry names.
const TimestampLayout = "20060102150405"

// Asset suffixes substituted for the trailing slash of an entry name.
const (
	ImageSuffix = "_vag.png"
	DataSuffix  = "_vag.csv"
	TextSuffix  = "_vaa.txt"
)

var (
	// ErrNoEntries is returned when a listing yields no parsable entries. It usually
	// means the index page changed its link format.
	ErrNoEntries = errors.New("no advisory entries found in listing")
	// ErrNoSelection is returned by steps that require a latest selection.
	ErrNoSelection = errors.New("no advisory selection available")
)

// Entry is one dated advisory folder from the index page.
type Entry struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// Listing is the parsed content of a year's index page.
type Listing struct {
	// Entries maps the parsed timestamp to the raw folder name.
	Entries map[time.Time]string
	// Links is the number of anchors seen on the page.
	Links int
	// Skipped counts anchors that did not produce an entry.
	Skipped int
}

// Selection is the latest entry plus every location derived from it.
type Selection struct {
	Entry     Entry  `json:"entry"`
	Title     string `json:"advisory_title"`
	BaseURL   string `json:"base_url"`
	ImageURL  string `json:"image_url"`
	ImageName string `json:"image_name"`
	DataURL   string `json:"advisory_csv"`
	DataName  string `json:"csv_name"`
	TextURL   string `json:"advisory_text"`
	InfoURL   string `json:"info_json"`
	MetasURL  string `json:"metas_json"`
}

// IndexURL returns the listing URL for the given year under baseURL.
func IndexURL(baseURL string, year int) string {
	return fmt.Sprintf("%s/%d/", strings.TrimRight(baseURL, "/"), year)
}

// NewSelection derives the asset names and URLs for entry under indexURL.
func NewSelection(indexURL string, entry Entry) Selection {
	base := indexURL + entry.Name
	image := AssetName(entry.Name, ImageSuffix)
	data := AssetName(entry.Name, DataSuffix)
	return Selection{
		Entry:     entry,
		Title:     entry.Name,
		BaseURL:   base,
		ImageURL:  base + image,
		ImageName: image,
		DataURL:   base + data,
		DataName:  data,
		TextURL:   base + AssetName(entry.Name, TextSuffix),
		InfoURL:   base + "info.json",
		MetasURL:  base + "metas.json",
	}
}

// AssetName replaces the trailing path separator of an entry name with suffix.
// Only a trailing separator is removed; an entry without one still gets suffix.
func AssetName(name, suffix string) string {
	return strings.TrimSuffix(name, "/") + suffix
}

// Message is one outbound notification carrying local files as attachments.
type Message struct {
	Subject     string
	Body        string
	Attachments []string
}

// Event is the structured record emitted once an advisory has been delivered.
type Event struct {
	RunID      string            `json:"run_id"`
	Title      string            `json:"advisory_title"`
	IssuedAt   time.Time         `json:"issued_at"`
	ImageURL   string            `json:"image_url"`
	DataURL    string            `json:"advisory_csv"`
	TextURL    string            `json:"advisory_text"`
	Digests    map[string]string `json:"digests"`
	ArchiveURI map[string]string `json:"archive_uris,omitempty"`
	DetectedAt time.Time         `json:"detected_at"`
}
