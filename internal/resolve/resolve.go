// Package resolve picks the right catalog identity for a local artist name
// by comparing the candidates' discographies against the albums actually on
// disk.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"github.com/sydlexius/freshet/internal/match"
	"github.com/sydlexius/freshet/internal/musicbrainz"
)

// Method records how a resolution was reached.
type Method string

const (
	// MethodAlbumMatch means the winner was chosen by discography overlap.
	MethodAlbumMatch Method = "album_match"
	// MethodFirstResult means no candidate cleared the confidence bar and
	// the search's top hit was taken on faith.
	MethodFirstResult Method = "first_result"
)

// Catalog is the slice of the MusicBrainz client the resolver needs.
type Catalog interface {
	SearchArtists(ctx context.Context, name string, limit int) ([]musicbrainz.ArtistCandidate, error)
	ReleaseGroups(ctx context.Context, artistID string, since *time.Time) ([]musicbrainz.ReleaseGroup, error)
}

// Resolution is the outcome of disambiguating one artist name.
type Resolution struct {
	MBID   string
	Name   string
	Level  match.Level
	Score  float64
	Method Method
}

// Config holds resolver tunables.
type Config struct {
	// Candidates is how many search hits to evaluate. Defaults to 5.
	Candidates int
	// MinSimilarity is the per-album match threshold. Defaults to 0.6.
	MinSimilarity float64
	// MinConfidence is the score a candidate must reach to win on album
	// evidence. Below it the top search hit is used instead. Defaults to 0.3.
	MinConfidence float64
}

func (c *Config) applyDefaults() {
	if c.Candidates <= 0 {
		c.Candidates = 5
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = 0.6
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.3
	}
}

// Resolver disambiguates artist names against the catalog.
type Resolver struct {
	catalog Catalog
	logger  *slog.Logger
	cfg     Config
}

// New creates a resolver.
func New(catalog Catalog, cfg Config, logger *slog.Logger) *Resolver {
	cfg.applyDefaults()
	return &Resolver{
		catalog: catalog,
		logger:  logger.With(slog.String("component", "resolve")),
		cfg:     cfg,
	}
}

// Resolve searches the catalog for name and scores each candidate by how
// well its discography covers the local albums. The best candidate wins if
// it clears the confidence bar; otherwise the search's top hit is returned
// with whatever score it earned. A nil resolution means the catalog had no
// candidates at all. Failures fetching one candidate's discography skip
// that candidate rather than aborting the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, name string, localAlbums []string) (*Resolution, error) {
	candidates, err := r.catalog.SearchArtists(ctx, name, r.cfg.Candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		r.logger.Info("no catalog candidates", slog.String("artist", name))
		return nil, nil
	}

	// Without local albums there is no evidence to weigh; take the search's
	// top hit at low confidence.
	if len(localAlbums) == 0 {
		first := candidates[0]
		r.logger.Info("no local albums, taking top search hit",
			slog.String("artist", name),
			slog.String("mbid", first.ID))
		return &Resolution{
			MBID:   first.ID,
			Name:   first.Name,
			Level:  match.LevelLow,
			Method: MethodFirstResult,
		}, nil
	}

	var best *Resolution
	scores := make(map[string]float64, len(candidates))
	for _, cand := range candidates {
		score, err := r.scoreCandidate(ctx, cand.ID, localAlbums)
		if err != nil {
			r.logger.Warn("skipping candidate",
				slog.String("artist", name),
				slog.String("candidate", cand.ID),
				slog.Any("error", err))
			continue
		}
		scores[cand.ID] = score
		if best == nil || score > best.Score {
			best = &Resolution{
				MBID:   cand.ID,
				Name:   cand.Name,
				Level:  match.LevelForScore(score),
				Score:  score,
				Method: MethodAlbumMatch,
			}
		}
	}

	if best != nil && best.Score >= r.cfg.MinConfidence {
		r.logger.Info("resolved by album match",
			slog.String("artist", name),
			slog.String("mbid", best.MBID),
			slog.Float64("score", best.Score))
		return best, nil
	}

	// No candidate earned trust from the discography. Fall back to the
	// search's relevance ordering at low confidence, keeping whatever score
	// the top hit did earn so the revalidation queue sees it.
	first := candidates[0]
	res := &Resolution{
		MBID:   first.ID,
		Name:   first.Name,
		Score:  scores[first.ID],
		Level:  match.LevelLow,
		Method: MethodFirstResult,
	}
	r.logger.Info("falling back to top search hit",
		slog.String("artist", name),
		slog.String("mbid", res.MBID),
		slog.Float64("score", res.Score))
	return res, nil
}

// Revalidate rescores an already-assigned catalog identity against the
// current local albums.
func (r *Resolver) Revalidate(ctx context.Context, mbid string, localAlbums []string) (float64, match.Level, error) {
	score, err := r.scoreCandidate(ctx, mbid, localAlbums)
	if err != nil {
		return 0, match.LevelNone, err
	}
	return score, match.LevelForScore(score), nil
}

func (r *Resolver) scoreCandidate(ctx context.Context, artistID string, localAlbums []string) (float64, error) {
	groups, err := r.catalog.ReleaseGroups(ctx, artistID, nil)
	if err != nil {
		return 0, err
	}
	titles := make([]string, 0, len(groups))
	for _, g := range groups {
		titles = append(titles, g.Title)
	}
	_, confidence := match.FindBestMatches(localAlbums, titles, r.cfg.MinSimilarity)
	return confidence, nil
}
