package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sydlexius/freshet/internal/artist"
	"github.com/sydlexius/freshet/internal/beets"
	"github.com/sydlexius/freshet/internal/config"
	"github.com/sydlexius/freshet/internal/database"
	"github.com/sydlexius/freshet/internal/logging"
	"github.com/sydlexius/freshet/internal/maintenance"
	"github.com/sydlexius/freshet/internal/musicbrainz"
	"github.com/sydlexius/freshet/internal/notify"
	"github.com/sydlexius/freshet/internal/resolve"
	"github.com/sydlexius/freshet/internal/scanner"
	"github.com/sydlexius/freshet/internal/schedule"
	"github.com/sydlexius/freshet/internal/version"
	"github.com/sydlexius/freshet/internal/watcher"
)

const usage = `freshet - new music release notifications

Usage:
  freshet [command]

Commands:
  (none)        run one check pipeline pass and exit
  daemon        run continuously on the configured interval
  ignore NAME   stop checking an artist
  unignore NAME resume checking an artist
  list-ignored  show ignored artists
  stats         show store statistics
  optimize      run database maintenance now
  test-notify   send a test notification
  version       print version information
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired services shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	artists  *artist.Service
	notifier notify.Service
	closers  []io.Closer
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	_ = a.db.Close()
}

func run() error {
	cmd := ""
	args := []string{}
	if len(os.Args) > 1 {
		cmd = os.Args[1]
		args = os.Args[2:]
	}

	switch cmd {
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	case "version", "-v", "--version":
		fmt.Printf("freshet %s (%s)\n", version.Version, version.Commit)
		return nil
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "":
		return runOnce(ctx, a)
	case "daemon":
		return runDaemon(ctx, a)
	case "ignore":
		return setIgnored(ctx, a, args, true)
	case "unignore":
		return setIgnored(ctx, a, args, false)
	case "list-ignored":
		return listIgnored(ctx, a)
	case "stats":
		return showStats(ctx, a)
	case "optimize":
		return optimize(ctx, a)
	case "test-notify":
		return a.notifier.TestNotification(ctx)
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func setup() (*app, error) {
	configPath := os.Getenv("FR_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser := logging.New(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		artists: artist.NewService(db),
		notifier: notify.NewService(notify.Config{
			Topic: cfg.Ntfy.Topic,
			Token: cfg.Ntfy.Token,
		}),
	}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser)
	}
	return a, nil
}

// buildRunner wires the full pipeline on top of the shared services.
func buildRunner(a *app) (*schedule.Runner, error) {
	client := musicbrainz.New(musicbrainz.Config{
		BaseURL:              a.cfg.MusicBrainz.BaseURL,
		Contact:              a.cfg.MusicBrainz.Contact,
		RateLimitInterval:    a.cfg.MusicBrainz.RateLimitInterval(),
		MaxRetries:           a.cfg.MusicBrainz.MaxRetries,
		InitialBackoff:       time.Duration(a.cfg.MusicBrainz.InitialBackoff) * time.Second,
		MaxBackoff:           time.Duration(a.cfg.MusicBrainz.MaxBackoff) * time.Second,
		ConnectionTimeout:    time.Duration(a.cfg.MusicBrainz.ConnectionTimeout) * time.Second,
		ExcludedReleaseTypes: a.cfg.MusicBrainz.ExcludedReleaseTypes,
		IncludedReleaseTypes: a.cfg.MusicBrainz.IncludedReleaseTypes,
	}, a.logger)

	resolver := resolve.New(client, resolve.Config{
		Candidates:    a.cfg.MusicBrainz.SearchLimit,
		MinSimilarity: a.cfg.Matching.MinSimilarity,
		MinConfidence: a.cfg.Matching.MinConfidence,
	}, a.logger)

	scan := scanner.NewService(a.artists, a.logger, a.cfg.Library.Path, a.cfg.Library.Exclusions)

	var beetsReader schedule.BeetsReader
	if a.cfg.Beets.Path != "" {
		r, err := beets.Open(a.cfg.Beets.Path, a.logger)
		if err != nil {
			return nil, fmt.Errorf("opening beets database: %w", err)
		}
		a.closers = append(a.closers, r)
		beetsReader = r
	}

	var healthcheck *notify.HealthCheck
	if a.cfg.HealthCheck.URL != "" {
		healthcheck = notify.NewHealthCheck(a.cfg.HealthCheck.URL,
			time.Duration(a.cfg.HealthCheck.TimeoutSeconds)*time.Second)
	}

	return schedule.NewRunner(
		a.artists, scan, beetsReader, resolver, client, a.notifier, healthcheck,
		schedule.Config{
			DailyCheckLimit:      a.cfg.Scheduler.DailyCheckLimit,
			ConfidenceCheckLimit: a.cfg.Scheduler.ConfidenceCheckLimit,
			MinConfidence:        a.cfg.Matching.MinConfidence,
			ReleaseWindowDays:    a.cfg.MusicBrainz.ReleaseWindowDays,
		}, a.logger), nil
}

func runOnce(ctx context.Context, a *app) error {
	runner, err := buildRunner(a)
	if err != nil {
		return err
	}
	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("checked %d artists, %d new releases, %d notified (%s)\n",
		stats.Checked, stats.NewReleases, stats.Notified, stats.Duration.Round(time.Second))
	return nil
}

func runDaemon(ctx context.Context, a *app) error {
	runner, err := buildRunner(a)
	if err != nil {
		return err
	}

	interval := time.Duration(a.cfg.Scheduler.IntervalHours) * time.Hour
	sched := schedule.NewScheduler(runner, interval, a.logger)

	w := watcher.NewService(sched.Kick, a.logger, a.cfg.Library.Path)
	go func() {
		if err := w.Start(ctx); err != nil {
			a.logger.Error("filesystem watcher failed", slog.Any("error", err))
		}
	}()

	if a.cfg.Maintenance.Enabled {
		maint := maintenance.NewService(a.db, a.cfg.Database.Path, a.logger)
		go maint.StartScheduler(ctx,
			time.Duration(a.cfg.Maintenance.IntervalHours)*time.Hour)
	}

	sched.Start(ctx)
	return nil
}

// setIgnored handles `ignore [-y] TERM...` and `unignore [-y] TERM...`.
// Terms match artist names by substring; multiple matches need confirmation
// unless -y was given.
func setIgnored(ctx context.Context, a *app, args []string, ignored bool) error {
	verb := "ignore"
	if !ignored {
		verb = "unignore"
	}

	yes := false
	var terms []string
	for _, arg := range args {
		if arg == "-y" || arg == "--yes" {
			yes = true
			continue
		}
		terms = append(terms, arg)
	}
	if len(terms) == 0 {
		return fmt.Errorf("usage: freshet %s [-y] TERM...", verb)
	}

	var targets []artist.Artist
	for _, term := range terms {
		matches, err := a.artists.SearchByName(ctx, term)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Printf("no artists match %q\n", term)
			continue
		}
		targets = append(targets, matches...)
	}
	if len(targets) == 0 {
		return nil
	}

	if !yes && len(targets) > 1 {
		fmt.Printf("will %s %d artists:\n", verb, len(targets))
		for _, t := range targets {
			fmt.Printf("  %s\n", t.Name)
		}
		fmt.Print("proceed? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" && answer != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}

	for _, t := range targets {
		if err := a.artists.SetIgnored(ctx, t.Name, ignored); err != nil {
			return err
		}
		if ignored {
			fmt.Printf("ignoring %s\n", t.Name)
		} else {
			fmt.Printf("resumed checking %s\n", t.Name)
		}
	}
	return nil
}

func listIgnored(ctx context.Context, a *app) error {
	artists, err := a.artists.Ignored(ctx)
	if err != nil {
		return err
	}
	if len(artists) == 0 {
		fmt.Println("no ignored artists")
		return nil
	}
	for _, ar := range artists {
		fmt.Println(ar.Name)
	}
	return nil
}

func showStats(ctx context.Context, a *app) error {
	st, err := a.artists.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("artists:    %d total, %d active, %d ignored, %d resolved\n",
		st.TotalArtists, st.ActiveArtists, st.IgnoredArtists, st.ResolvedArtists)
	fmt.Printf("releases:   %d total, %d awaiting notification\n",
		st.TotalReleases, st.UnnotifiedReleases)

	if a.cfg.Beets.Path != "" {
		r, err := beets.Open(a.cfg.Beets.Path, a.logger)
		if err != nil {
			return fmt.Errorf("opening beets database: %w", err)
		}
		defer r.Close() //nolint:errcheck
		cov, err := r.Coverage(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("beets:      %d artists, %d with catalog ids\n",
			cov.TotalArtists, cov.ArtistsWithMBID)
	}
	return nil
}

func optimize(ctx context.Context, a *app) error {
	maint := maintenance.NewService(a.db, a.cfg.Database.Path, a.logger)
	if err := maint.Optimize(ctx); err != nil {
		return err
	}
	st, err := maint.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("db size: %d bytes, wal: %d bytes\n", st.DBFileSize, st.WALFileSize)
	return nil
}
