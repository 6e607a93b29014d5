// Package schedule orchestrates the check pipeline: discover artists from
// the library, resolve and revalidate their catalog identities, poll the
// catalog for recent releases, and announce what is new.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sydlexius/freshet/internal/artist"
	"github.com/sydlexius/freshet/internal/beets"
	"github.com/sydlexius/freshet/internal/match"
	"github.com/sydlexius/freshet/internal/musicbrainz"
	"github.com/sydlexius/freshet/internal/notify"
	"github.com/sydlexius/freshet/internal/resolve"
	"github.com/sydlexius/freshet/internal/scanner"
)

// Catalog is the slice of the MusicBrainz client the pipeline needs beyond
// what the resolver already wraps.
type Catalog interface {
	RecentReleases(ctx context.Context, artistID string, windowDays int) ([]musicbrainz.ReleaseGroup, error)
}

// Resolver disambiguates and rescores artist identities.
type Resolver interface {
	Resolve(ctx context.Context, name string, localAlbums []string) (*resolve.Resolution, error)
	Revalidate(ctx context.Context, mbid string, localAlbums []string) (float64, match.Level, error)
}

// BeetsReader is the optional beets lookup surface. Nil disables it.
type BeetsReader interface {
	ArtistMBID(ctx context.Context, name string) (string, error)
	AlbumsForArtist(ctx context.Context, name string) ([]string, error)
}

// AlbumLister provides the local albums for an artist.
type AlbumLister interface {
	Albums(artistName string) ([]string, error)
	Run(ctx context.Context) (*scanner.Result, error)
}

// Config holds pipeline batch limits.
type Config struct {
	// DailyCheckLimit caps release checks and resolution attempts per run.
	DailyCheckLimit int
	// ConfidenceCheckLimit caps revalidations per run.
	ConfidenceCheckLimit int
	// MinConfidence is the floor below which a revalidated identity gets
	// re-resolved from scratch.
	MinConfidence float64
	// ReleaseWindowDays bounds how far back release checks look.
	ReleaseWindowDays int
}

func (c *Config) applyDefaults() {
	if c.DailyCheckLimit <= 0 {
		c.DailyCheckLimit = 50
	}
	if c.ConfidenceCheckLimit <= 0 {
		c.ConfidenceCheckLimit = 10
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.3
	}
	if c.ReleaseWindowDays <= 0 {
		c.ReleaseWindowDays = 30
	}
}

// RunStats summarizes one pipeline run.
type RunStats struct {
	NewArtists    int
	Resolved      int
	Revalidated   int
	Checked       int
	CheckFailures int
	NewReleases   int
	Notified      int
	Duration      time.Duration
}

// Runner executes the pipeline.
type Runner struct {
	artists     *artist.Service
	scanner     AlbumLister
	beets       BeetsReader
	resolver    Resolver
	catalog     Catalog
	notifier    notify.Service
	healthcheck *notify.HealthCheck
	logger      *slog.Logger
	cfg         Config
}

// NewRunner wires the pipeline. beets may be nil when no beets database is
// configured; healthcheck may be nil when no ping URL is configured.
func NewRunner(
	artists *artist.Service,
	scan AlbumLister,
	beetsReader BeetsReader,
	resolver Resolver,
	catalog Catalog,
	notifier notify.Service,
	healthcheck *notify.HealthCheck,
	cfg Config,
	logger *slog.Logger,
) *Runner {
	cfg.applyDefaults()
	return &Runner{
		artists:     artists,
		scanner:     scan,
		beets:       beetsReader,
		resolver:    resolver,
		catalog:     catalog,
		notifier:    notifier,
		healthcheck: healthcheck,
		logger:      logger.With(slog.String("component", "schedule")),
		cfg:         cfg,
	}
}

// Run executes one full pipeline pass. Individual artist failures are
// logged and skipped; only infrastructure failures (store, scan) abort
// the run.
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	_ = r.healthcheck.Start(ctx)

	stats, err := r.run(ctx)
	if err != nil {
		_ = r.healthcheck.Fail(ctx)
		return nil, err
	}
	stats.Duration = time.Since(start)
	_ = r.healthcheck.Success(ctx)

	r.logger.Info("run complete",
		slog.Int("new_artists", stats.NewArtists),
		slog.Int("resolved", stats.Resolved),
		slog.Int("revalidated", stats.Revalidated),
		slog.Int("checked", stats.Checked),
		slog.Int("check_failures", stats.CheckFailures),
		slog.Int("new_releases", stats.NewReleases),
		slog.Int("notified", stats.Notified),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

func (r *Runner) run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	scanResult, err := r.scanner.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning library: %w", err)
	}
	stats.NewArtists = scanResult.NewArtists

	if err := r.resolveNew(ctx, stats); err != nil {
		return nil, err
	}
	if err := r.revalidate(ctx, stats); err != nil {
		return nil, err
	}
	if err := r.checkReleases(ctx, stats); err != nil {
		return nil, err
	}
	if err := r.notifyPending(ctx, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// resolveNew assigns catalog identities to artists that have none, trying
// beets first and falling back to catalog search.
func (r *Runner) resolveNew(ctx context.Context, stats *RunStats) error {
	batch, err := r.artists.Unresolved(ctx, r.cfg.DailyCheckLimit)
	if err != nil {
		return err
	}

	for _, a := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		albums := r.localAlbums(ctx, a.Name)

		if mbid := r.beetsMBID(ctx, a.Name); mbid != "" {
			score, level, err := r.resolver.Revalidate(ctx, mbid, albums)
			if err != nil {
				r.logger.Warn("scoring beets identity failed",
					slog.String("artist", a.Name), slog.Any("error", err))
				r.recordCheck(ctx, a.ID)
				continue
			}
			if err := r.artists.UpdateConfidence(ctx, a.ID, level, score, mbid); err != nil {
				return err
			}
			stats.Resolved++
			r.recordCheck(ctx, a.ID)
			continue
		}

		res, err := r.resolver.Resolve(ctx, a.Name, albums)
		if err != nil {
			r.logger.Warn("resolving artist failed",
				slog.String("artist", a.Name), slog.Any("error", err))
			r.recordCheck(ctx, a.ID)
			continue
		}
		if res == nil {
			r.logger.Info("artist not found in catalog", slog.String("artist", a.Name))
			r.recordCheck(ctx, a.ID)
			continue
		}
		if err := r.artists.UpdateConfidence(ctx, a.ID, res.Level, res.Score, res.MBID); err != nil {
			return err
		}
		stats.Resolved++
		r.recordCheck(ctx, a.ID)
	}
	return nil
}

// revalidate rescores a batch of assigned identities and re-resolves the
// ones that have fallen below the confidence floor.
func (r *Runner) revalidate(ctx context.Context, stats *RunStats) error {
	batch, err := r.artists.ForRevalidation(ctx, r.cfg.ConfidenceCheckLimit)
	if err != nil {
		return err
	}

	for _, a := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		albums := r.localAlbums(ctx, a.Name)
		score, level, err := r.resolver.Revalidate(ctx, a.MBArtistID, albums)
		if err != nil {
			r.logger.Warn("revalidation failed",
				slog.String("artist", a.Name), slog.Any("error", err))
			continue
		}

		if score < r.cfg.MinConfidence {
			res, err := r.resolver.Resolve(ctx, a.Name, albums)
			if err != nil {
				r.logger.Warn("repair resolution failed",
					slog.String("artist", a.Name), slog.Any("error", err))
			} else if res != nil && res.MBID != a.MBArtistID && res.Score > score {
				r.logger.Info("repaired catalog identity",
					slog.String("artist", a.Name),
					slog.String("old_mbid", a.MBArtistID),
					slog.String("new_mbid", res.MBID),
					slog.Float64("score", res.Score))
				if err := r.artists.UpdateConfidence(ctx, a.ID, res.Level, res.Score, res.MBID); err != nil {
					return err
				}
				stats.Revalidated++
				continue
			}
		}

		if err := r.artists.UpdateConfidence(ctx, a.ID, level, score, ""); err != nil {
			return err
		}
		stats.Revalidated++
	}
	return nil
}

// checkReleases polls the catalog for each artist in the check batch and
// records anything inside the release window. The check is recorded on
// failure too, so a broken artist rotates to the back of the queue.
func (r *Runner) checkReleases(ctx context.Context, stats *RunStats) error {
	batch, err := r.artists.ForCheck(ctx, r.cfg.DailyCheckLimit)
	if err != nil {
		return err
	}

	for _, a := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		groups, err := r.catalog.RecentReleases(ctx, a.MBArtistID, r.cfg.ReleaseWindowDays)
		if err != nil {
			r.logger.Warn("release check failed",
				slog.String("artist", a.Name), slog.Any("error", err))
			stats.CheckFailures++
			r.recordCheck(ctx, a.ID)
			continue
		}

		for _, g := range groups {
			isNew, err := r.artists.AddRelease(ctx, &artist.Release{
				ArtistID:         a.ID,
				MBReleaseGroupID: g.ID,
				Title:            g.Title,
				ReleaseDate:      g.RawDate,
				ReleaseType:      g.Type,
			})
			if err != nil {
				return err
			}
			if isNew {
				stats.NewReleases++
				r.logger.Info("new release discovered",
					slog.String("artist", a.Name),
					slog.String("title", g.Title),
					slog.String("date", g.RawDate))
			}
		}

		stats.Checked++
		r.recordCheck(ctx, a.ID)
	}
	return nil
}

// notifyPending announces unnotified releases. A release is only marked
// notified after its announcement was actually delivered.
func (r *Runner) notifyPending(ctx context.Context, stats *RunStats) error {
	pending, err := r.artists.UnnotifiedReleases(ctx)
	if err != nil {
		return err
	}

	var announced []string
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.notifier.NotifyRelease(ctx, p.ArtistName, p.Title, p.ReleaseDate, p.ReleaseType); err != nil {
			r.logger.Warn("notification failed",
				slog.String("artist", p.ArtistName),
				slog.String("title", p.Title),
				slog.Any("error", err))
			continue
		}
		if err := r.artists.MarkNotified(ctx, p.ReleaseID); err != nil {
			return err
		}
		announced = append(announced, p.ArtistName+": "+p.Title)
		stats.Notified++
	}

	if len(announced) > 1 {
		if err := r.notifier.NotifySummary(ctx, announced); err != nil {
			r.logger.Warn("summary notification failed", slog.Any("error", err))
		}
	}
	return nil
}

func (r *Runner) localAlbums(ctx context.Context, name string) []string {
	albums, err := r.scanner.Albums(name)
	if err != nil {
		r.logger.Warn("listing local albums failed",
			slog.String("artist", name), slog.Any("error", err))
	}
	if len(albums) > 0 || r.beets == nil {
		return albums
	}
	beetsAlbums, err := r.beets.AlbumsForArtist(ctx, name)
	if err != nil {
		r.logger.Warn("listing beets albums failed",
			slog.String("artist", name), slog.Any("error", err))
		return albums
	}
	return beetsAlbums
}

func (r *Runner) beetsMBID(ctx context.Context, name string) string {
	if r.beets == nil {
		return ""
	}
	mbid, err := r.beets.ArtistMBID(ctx, name)
	if err != nil {
		r.logger.Warn("beets lookup failed",
			slog.String("artist", name), slog.Any("error", err))
		return ""
	}
	return mbid
}

func (r *Runner) recordCheck(ctx context.Context, id string) {
	if err := r.artists.RecordCheck(ctx, id); err != nil {
		r.logger.Error("recording check failed",
			slog.String("artist_id", id), slog.Any("error", err))
	}
}

// interface satisfaction checks
var (
	_ BeetsReader = (*beets.Reader)(nil)
	_ AlbumLister = (*scanner.Service)(nil)
	_ Resolver    = (*resolve.Resolver)(nil)
	_ Catalog     = (*musicbrainz.Client)(nil)
)
