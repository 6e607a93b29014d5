// Package beets reads artist identities from a beets library database. The
// database is opened read-only; freshet never writes to it.
package beets

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/sydlexius/freshet/internal/database"
)

// CoverageStats reports how much of the beets library carries catalog IDs.
type CoverageStats struct {
	TotalArtists    int
	ArtistsWithMBID int
}

// Reader queries a beets library database.
type Reader struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the beets database at path read-only.
func Open(path string, logger *slog.Logger) (*Reader, error) {
	db, err := database.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("opening beets database: %w", err)
	}
	return &Reader{
		db:     db,
		logger: logger.With(slog.String("component", "beets")),
	}, nil
}

// Close releases the underlying database handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// AllArtists returns every distinct album artist name in the beets library.
func (r *Reader) AllArtists(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT albumartist FROM albums
		WHERE albumartist != ''
		ORDER BY albumartist`)
	if err != nil {
		return nil, fmt.Errorf("listing beets artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning beets artist: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating beets artists: %w", err)
	}
	return names, nil
}

// ArtistsWithMBIDs returns a map of album artist name to MusicBrainz artist
// ID for every artist beets has already identified. When beets stores
// conflicting IDs for the same name, the one tagged on more albums wins.
func (r *Reader) ArtistsWithMBIDs(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT albumartist, mb_albumartistid, COUNT(*) AS n
		FROM albums
		WHERE albumartist != '' AND mb_albumartistid != ''
		GROUP BY albumartist, mb_albumartistid
		ORDER BY albumartist, n ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing beets artist ids: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	ids := make(map[string]string)
	for rows.Next() {
		var name, mbid string
		var n int
		if err := rows.Scan(&name, &mbid, &n); err != nil {
			return nil, fmt.Errorf("scanning beets artist id: %w", err)
		}
		// Ascending count order means the last row per name is the
		// most-tagged ID.
		ids[name] = mbid
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating beets artist ids: %w", err)
	}
	return ids, nil
}

// ArtistMBID returns the MusicBrainz artist ID beets has for the given
// album artist name, or empty when beets does not know it.
func (r *Reader) ArtistMBID(ctx context.Context, name string) (string, error) {
	var mbid string
	err := r.db.QueryRowContext(ctx, `
		SELECT mb_albumartistid FROM albums
		WHERE albumartist = ? AND mb_albumartistid != ''
		GROUP BY mb_albumartistid
		ORDER BY COUNT(*) DESC
		LIMIT 1`, name).Scan(&mbid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up beets artist id: %w", err)
	}
	return mbid, nil
}

// AlbumsForArtist returns the album titles beets has for an artist.
func (r *Reader) AlbumsForArtist(ctx context.Context, name string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT album FROM albums
		WHERE albumartist = ? AND album != ''
		ORDER BY album`, name)
	if err != nil {
		return nil, fmt.Errorf("listing beets albums: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var albums []string
	for rows.Next() {
		var album string
		if err := rows.Scan(&album); err != nil {
			return nil, fmt.Errorf("scanning beets album: %w", err)
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating beets albums: %w", err)
	}
	return albums, nil
}

// Coverage reports MBID coverage across the beets library.
func (r *Reader) Coverage(ctx context.Context) (*CoverageStats, error) {
	var st CoverageStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT albumartist),
			COUNT(DISTINCT CASE WHEN mb_albumartistid != '' THEN albumartist END)
		FROM albums
		WHERE albumartist != ''`).Scan(&st.TotalArtists, &st.ArtistsWithMBID)
	if err != nil {
		return nil, fmt.Errorf("computing beets coverage: %w", err)
	}
	return &st, nil
}
