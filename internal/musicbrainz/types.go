package musicbrainz

import "time"

// MusicBrainz API response types.

// searchResponse is the top-level response from the artist search endpoint.
type searchResponse struct {
	Created string     `json:"created"`
	Count   int        `json:"count"`
	Offset  int        `json:"offset"`
	Artists []mbArtist `json:"artists"`
}

// mbArtist represents a MusicBrainz artist entity in search results.
type mbArtist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Type           string `json:"type"`
	Disambiguation string `json:"disambiguation"`
	Country        string `json:"country"`
	Score          int    `json:"score"`
}

// browseResponse is the top-level response from the release-group browse endpoint.
type browseResponse struct {
	ReleaseGroups []mbReleaseGroup `json:"release-groups"`
	Count         int              `json:"release-group-count"`
	Offset        int              `json:"release-group-offset"`
}

// mbReleaseGroup represents a MusicBrainz release group entity.
type mbReleaseGroup struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PrimaryType      string `json:"primary-type"`
	FirstReleaseDate string `json:"first-release-date"`
}

// ArtistCandidate is a single hit from an artist search, in the API's
// relevance order.
type ArtistCandidate struct {
	ID             string
	Name           string
	SortName       string
	Type           string
	Disambiguation string
	Country        string
	Score          int
}

// ReleaseGroup is one conceptual release (album, EP, ...) of an artist.
// RawDate preserves the catalog's partial-date string (year, year-month, or
// full date); Date is the parsed form used for window filtering.
type ReleaseGroup struct {
	ID      string
	Title   string
	Type    string
	Date    time.Time
	RawDate string
}

// dateLayouts are tried in order when parsing a first-release-date.
var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseReleaseDate parses a MusicBrainz partial date. Returns false for
// anything that matches none of the known layouts.
func ParseReleaseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
