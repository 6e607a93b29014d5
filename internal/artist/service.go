package artist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/freshet/internal/match"
)

// artistColumns is the ordered list of columns for SELECT queries.
const artistColumns = `id, name, mb_artist_id, ignored,
	last_checked_at, check_count,
	confidence_level, confidence_score, confidence_checked_at,
	created_at, updated_at`

const releaseColumns = `id, artist_id, mb_release_group_id, title,
	release_date, release_type, notified, created_at`

// Service provides artist and release data operations.
type Service struct {
	db *sql.DB
}

// NewService creates an artist service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a new artist. Names are unique; inserting a name that
// already exists returns an error.
func (s *Service) Create(ctx context.Context, a *Artist) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (
			id, name, mb_artist_id, ignored,
			last_checked_at, check_count,
			confidence_level, confidence_score, confidence_checked_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.Name, nullableString(a.MBArtistID), boolToInt(a.Ignored),
		formatNullableTime(a.LastCheckedAt), a.CheckCount,
		nullableString(string(a.ConfidenceLevel)), a.ConfidenceScore,
		formatNullableTime(a.ConfidenceCheckedAt),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating artist: %w", err)
	}
	return nil
}

// GetByID retrieves an artist by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Artist, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artist not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by id: %w", err)
	}
	return a, nil
}

// GetByName retrieves an artist by exact name. Returns nil when no artist
// has that name.
func (s *Service) GetByName(ctx context.Context, name string) (*Artist, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE name = ?`, name)
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by name: %w", err)
	}
	return a, nil
}

// List returns every tracked artist ordered by name.
func (s *Service) List(ctx context.Context) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+artistColumns+` FROM artists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectArtists(rows)
}

// AllNames returns every tracked artist name, ignored or not.
func (s *Service) AllNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM artists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing artist names: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning artist name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artist names: %w", err)
	}
	return names, nil
}

// SearchByName returns artists whose name contains the given fragment,
// case-insensitively via LIKE.
func (s *Service) SearchByName(ctx context.Context, fragment string) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artistColumns+` FROM artists WHERE name LIKE ? ORDER BY name`,
		"%"+fragment+"%")
	if err != nil {
		return nil, fmt.Errorf("searching artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectArtists(rows)
}

// Ignored returns every ignored artist, for the list-ignored command.
func (s *Service) Ignored(ctx context.Context) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artistColumns+` FROM artists WHERE ignored = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing ignored artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectArtists(rows)
}

// SetIgnored flips the ignore flag for an artist by name.
func (s *Service) SetIgnored(ctx context.Context, name string, ignored bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artists SET ignored = ?, updated_at = ? WHERE name = ?`,
		boolToInt(ignored), time.Now().UTC().Format(time.RFC3339), name)
	if err != nil {
		return fmt.Errorf("updating ignore flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating ignore flag: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("artist not found: %s", name)
	}
	return nil
}

// UpdateMBID assigns a catalog identity to an artist.
func (s *Service) UpdateMBID(ctx context.Context, id, mbid string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE artists SET mb_artist_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(mbid), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating mbid: %w", err)
	}
	return nil
}

// RecordCheck marks an artist as having been processed in a check cycle,
// regardless of whether the catalog call succeeded. This keeps a failing
// artist from pinning itself to the front of the queue.
func (s *Service) RecordCheck(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE artists SET last_checked_at = ?, check_count = check_count + 1, updated_at = ? WHERE id = ?`,
		now, now, id)
	if err != nil {
		return fmt.Errorf("recording check: %w", err)
	}
	return nil
}

// UpdateConfidence stores a fresh confidence assessment. When mbid is
// non-empty the catalog identity is replaced in the same update.
func (s *Service) UpdateConfidence(ctx context.Context, id string, level match.Level, score float64, mbid string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var err error
	if mbid != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE artists SET
				confidence_level = ?, confidence_score = ?, confidence_checked_at = ?,
				mb_artist_id = ?, updated_at = ?
			WHERE id = ?`,
			string(level), score, now, mbid, now, id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE artists SET
				confidence_level = ?, confidence_score = ?, confidence_checked_at = ?,
				updated_at = ?
			WHERE id = ?`,
			string(level), score, now, now, id)
	}
	if err != nil {
		return fmt.Errorf("updating confidence: %w", err)
	}
	return nil
}

// ForCheck returns up to limit resolved, non-ignored artists in check-queue
// order: never-checked artists first, then stalest first.
func (s *Service) ForCheck(ctx context.Context, limit int) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artistColumns+` FROM artists
		WHERE ignored = 0 AND mb_artist_id IS NOT NULL
		ORDER BY last_checked_at IS NOT NULL, last_checked_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting check batch: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectArtists(rows)
}

// Unresolved returns up to limit non-ignored artists without a catalog
// identity, never-checked first then stalest first, so resolution attempts
// rotate across the library.
func (s *Service) Unresolved(ctx context.Context, limit int) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artistColumns+` FROM artists
		WHERE ignored = 0 AND mb_artist_id IS NULL
		ORDER BY last_checked_at IS NOT NULL, last_checked_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting unresolved batch: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectArtists(rows)
}

// ForRevalidation returns up to limit resolved, non-ignored artists for
// confidence rechecking. Never-assessed artists come first, then low and
// unknown confidence levels, then the stalest assessments.
func (s *Service) ForRevalidation(ctx context.Context, limit int) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artistColumns+` FROM artists
		WHERE ignored = 0 AND mb_artist_id IS NOT NULL
		ORDER BY
			confidence_checked_at IS NOT NULL,
			CASE WHEN confidence_level IS NULL OR confidence_level IN ('none', 'low') THEN 0 ELSE 1 END,
			confidence_checked_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting revalidation batch: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectArtists(rows)
}

// AddRelease records a discovered release group. Returns true when the
// release is new; a duplicate release group ID is a silent no-op.
func (s *Service) AddRelease(ctx context.Context, r *Release) (bool, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	r.CreatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO releases (
			id, artist_id, mb_release_group_id, title,
			release_date, release_type, notified, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (mb_release_group_id) DO NOTHING
	`,
		r.ID, r.ArtistID, r.MBReleaseGroupID, r.Title,
		r.ReleaseDate, r.ReleaseType, boolToInt(r.Notified),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("adding release: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adding release: %w", err)
	}
	return n > 0, nil
}

// ReleasesForArtist returns an artist's recorded releases, newest first.
func (s *Service) ReleasesForArtist(ctx context.Context, artistID string) ([]Release, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE artist_id = ? ORDER BY release_date DESC`,
		artistID)
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var releases []Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning release row: %w", err)
		}
		releases = append(releases, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating release rows: %w", err)
	}
	return releases, nil
}

// UnnotifiedReleases returns releases that have not yet been announced,
// joined with their artist's name, oldest first.
func (s *Service) UnnotifiedReleases(ctx context.Context) ([]PendingNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, a.name, r.title, r.release_date, r.release_type
		FROM releases r
		JOIN artists a ON a.id = r.artist_id
		WHERE r.notified = 0
		ORDER BY r.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing unnotified releases: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var pending []PendingNotification
	for rows.Next() {
		var p PendingNotification
		if err := rows.Scan(&p.ReleaseID, &p.ArtistName, &p.Title, &p.ReleaseDate, &p.ReleaseType); err != nil {
			return nil, fmt.Errorf("scanning unnotified release: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unnotified releases: %w", err)
	}
	return pending, nil
}

// MarkNotified flags a release as announced. Called only after the
// notification was actually delivered.
func (s *Service) MarkNotified(ctx context.Context, releaseID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE releases SET notified = 1 WHERE id = ?`, releaseID)
	if err != nil {
		return fmt.Errorf("marking release notified: %w", err)
	}
	return nil
}

// Stats returns store-wide counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE ignored = 0),
			COUNT(*) FILTER (WHERE ignored = 1),
			COUNT(*) FILTER (WHERE mb_artist_id IS NOT NULL)
		FROM artists`).Scan(
		&st.TotalArtists, &st.ActiveArtists, &st.IgnoredArtists, &st.ResolvedArtists)
	if err != nil {
		return nil, fmt.Errorf("counting artists: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE notified = 0) FROM releases`).Scan(
		&st.TotalReleases, &st.UnnotifiedReleases)
	if err != nil {
		return nil, fmt.Errorf("counting releases: %w", err)
	}
	return &st, nil
}

// scanArtist scans a database row into an Artist struct.
func scanArtist(row interface{ Scan(...any) error }) (*Artist, error) {
	var a Artist
	var mbID, level sql.NullString
	var score sql.NullFloat64
	var lastChecked, confChecked sql.NullString
	var ignored int
	var createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &a.Name, &mbID, &ignored,
		&lastChecked, &a.CheckCount,
		&level, &score, &confChecked,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.MBArtistID = mbID.String
	a.Ignored = ignored == 1
	a.ConfidenceLevel = match.Level(level.String)
	if score.Valid {
		v := score.Float64
		a.ConfidenceScore = &v
	}
	a.LastCheckedAt = parseNullableTime(lastChecked)
	a.ConfidenceCheckedAt = parseNullableTime(confChecked)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)

	return &a, nil
}

// scanRelease scans a database row into a Release struct.
func scanRelease(row interface{ Scan(...any) error }) (*Release, error) {
	var r Release
	var notified int
	var createdAt string

	err := row.Scan(
		&r.ID, &r.ArtistID, &r.MBReleaseGroupID, &r.Title,
		&r.ReleaseDate, &r.ReleaseType, &notified, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.Notified = notified == 1
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func collectArtists(rows *sql.Rows) ([]Artist, error) {
	var artists []Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artist row: %w", err)
		}
		artists = append(artists, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artist rows: %w", err)
	}
	return artists, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
