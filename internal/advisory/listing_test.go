package advisory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingHTML(links ...string) []byte {
	out := "<html><body><h1>Index of /advisory/2024</h1><table>"
	for _, l := range links {
		out += `<tr><td><a href="` + l + `">` + l + `</a></td></tr>`
	}
	return []byte(out + "</table></body></html>")
}

func TestParseListingSelectsMaxRegardlessOfOrder(t *testing.T) {
	t.Parallel()

	orders := [][]string{
		{"A_20240101000000/", "B_20240103000000/", "C_20240102000000/"},
		{"B_20240103000000/", "C_20240102000000/", "A_20240101000000/"},
		{"C_20240102000000/", "A_20240101000000/", "B_20240103000000/"},
	}
	for _, links := range orders {
		listing, err := ParseListing(listingHTML(links...))
		require.NoError(t, err)
		require.Len(t, listing.Entries, 3)

		latest, err := Latest(listing)
		require.NoError(t, err)
		assert.Equal(t, "B_20240103000000/", latest.Name)
		assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), latest.Timestamp)
	}
}

func TestParseListingSkipsUnrelatedLinks(t *testing.T) {
	t.Parallel()

	listing, err := ParseListing(listingHTML(
		"../",
		"A_20240101000000/",
		"no_underscore_link",
		"B_20240103000000/",
		"readme",
		"X_notatimestamp/",
	))
	require.NoError(t, err)

	assert.Equal(t, 6, listing.Links)
	assert.Equal(t, 4, listing.Skipped)
	require.Len(t, listing.Entries, 2)

	latest, err := Latest(listing)
	require.NoError(t, err)
	assert.Equal(t, "B_20240103000000/", latest.Name)
}

func TestLatestEmptyListing(t *testing.T) {
	t.Parallel()

	listing, err := ParseListing(listingHTML("no_underscore_link", "../"))
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)

	_, err = Latest(listing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEntries))
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		ok   bool
	}{
		{name: "valid", text: "VAAC_20240115120000/", ok: true},
		{name: "valid without slash", text: "VAAC_20240115120000", ok: true},
		{name: "too short", text: "a_b/", ok: false},
		{name: "no separator", text: "parent-directory", ok: false},
		{name: "bad timestamp", text: "VAAC_2024011512/", ok: false},
		{name: "timestamp in third segment", text: "VAAC_X_20240115120000/", ok: false},
		{name: "invalid month", text: "VAAC_20241315120000/", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			entry, ok := ParseEntry(tc.text)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.text, entry.Name)
			}
		})
	}
}
