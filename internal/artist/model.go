// Package artist persists followed artists and their discovered releases.
package artist

import (
	"time"

	"github.com/sydlexius/freshet/internal/match"
)

// Artist is a followed artist from the local library. MBArtistID is empty
// until the resolver assigns a catalog identity; an artist without one is
// never release-checked.
type Artist struct {
	ID                  string
	Name                string
	MBArtistID          string
	Ignored             bool
	LastCheckedAt       *time.Time
	CheckCount          int
	ConfidenceLevel     match.Level
	ConfidenceScore     *float64
	ConfidenceCheckedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Resolved reports whether the artist has a catalog identity assigned.
func (a *Artist) Resolved() bool { return a.MBArtistID != "" }

// Release is a discovered release group. ReleaseDate keeps the catalog's
// partial-date string verbatim (year, year-month, or full date).
type Release struct {
	ID               string
	ArtistID         string
	MBReleaseGroupID string
	Title            string
	ReleaseDate      string
	ReleaseType      string
	Notified         bool
	CreatedAt        time.Time
}

// PendingNotification is an unnotified release joined with its artist's name,
// ready to hand to the notifier.
type PendingNotification struct {
	ReleaseID   string
	ArtistName  string
	Title       string
	ReleaseDate string
	ReleaseType string
}

// Stats summarizes the store for logging and the stats subcommand.
type Stats struct {
	TotalArtists       int
	ActiveArtists      int
	IgnoredArtists     int
	ResolvedArtists    int
	TotalReleases      int
	UnnotifiedReleases int
}
