// Package musicbrainz is a rate-limited, retrying client for the MusicBrainz
// web service, covering exactly the two calls freshet needs: artist search
// and release-group browse.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sydlexius/freshet/internal/version"
)

const pageSize = 25

// Config holds client tunables. Zero values fall back to the documented
// MusicBrainz etiquette defaults.
type Config struct {
	BaseURL              string
	Contact              string
	RateLimitInterval    time.Duration
	MaxRetries           int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	ConnectionTimeout    time.Duration
	ExcludedReleaseTypes []string
	IncludedReleaseTypes []string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://musicbrainz.org/ws/2"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RateLimitInterval <= 0 {
		c.RateLimitInterval = 1100 * time.Millisecond
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 5 * time.Minute
	}
}

// Client talks to the MusicBrainz API. It assumes a single caller: the rate
// limiter serializes outbound requests to one per configured interval.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	cfg        Config
	excluded   map[string]bool
	included   map[string]bool

	// Injectable for deterministic retry/timeout tests.
	now    func() time.Time
	sleep  func(time.Duration)
	jitter func() float64
}

// New creates a MusicBrainz client.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()

	excluded := make(map[string]bool, len(cfg.ExcludedReleaseTypes))
	for _, t := range cfg.ExcludedReleaseTypes {
		excluded[t] = true
	}
	included := make(map[string]bool, len(cfg.IncludedReleaseTypes))
	for _, t := range cfg.IncludedReleaseTypes {
		included[t] = true
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:  rate.NewLimiter(rate.Every(cfg.RateLimitInterval), 1),
		logger:   logger.With(slog.String("component", "musicbrainz")),
		cfg:      cfg,
		excluded: excluded,
		included: included,
		now:      time.Now,
		sleep:    time.Sleep,
		jitter:   func() float64 { return 0.1 + 0.2*rand.Float64() },
	}
}

// SearchArtists searches the catalog for artists matching the given name,
// in relevance order. Zero hits is an empty slice, not an error.
func (c *Client) SearchArtists(ctx context.Context, name string, limit int) ([]ArtistCandidate, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"query": {name},
		"fmt":   {"json"},
		"limit": {strconv.Itoa(limit)},
	}
	reqURL := c.cfg.BaseURL + "/artist?" + params.Encode()

	deadline := c.now().Add(c.cfg.ConnectionTimeout)
	body, err := c.doRequest(ctx, reqURL, deadline)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	candidates := make([]ArtistCandidate, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		candidates = append(candidates, ArtistCandidate{
			ID:             a.ID,
			Name:           a.Name,
			SortName:       a.SortName,
			Type:           a.Type,
			Disambiguation: a.Disambiguation,
			Country:        a.Country,
			Score:          a.Score,
		})
	}
	return candidates, nil
}

// ReleaseGroups fetches every release group for an artist, paginating until
// the API returns a short page. Entries without a parseable release date are
// dropped. When since is non-nil, only releases dated at or after it are
// returned; future dates always pass.
func (c *Client) ReleaseGroups(ctx context.Context, artistID string, since *time.Time) ([]ReleaseGroup, error) {
	deadline := c.now().Add(c.cfg.ConnectionTimeout)

	var results []ReleaseGroup
	offset := 0
	for {
		params := url.Values{
			"artist": {artistID},
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(pageSize)},
			"fmt":    {"json"},
		}
		reqURL := c.cfg.BaseURL + "/release-group?" + params.Encode()

		body, err := c.doRequest(ctx, reqURL, deadline)
		if err != nil {
			return nil, err
		}

		var resp browseResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing release group response: %w", err)
		}

		for _, rg := range resp.ReleaseGroups {
			if rg.FirstReleaseDate == "" {
				continue
			}
			date, ok := ParseReleaseDate(rg.FirstReleaseDate)
			if !ok {
				c.logger.Debug("dropping release group with unparseable date",
					slog.String("id", rg.ID),
					slog.String("date", rg.FirstReleaseDate))
				continue
			}
			if since != nil && date.Before(*since) {
				continue
			}
			if c.typeFiltered(rg.PrimaryType) {
				continue
			}
			results = append(results, ReleaseGroup{
				ID:      rg.ID,
				Title:   rg.Title,
				Type:    rg.PrimaryType,
				Date:    date,
				RawDate: rg.FirstReleaseDate,
			})
		}

		if len(resp.ReleaseGroups) < pageSize {
			break
		}
		offset += pageSize
	}

	return results, nil
}

// RecentReleases returns the artist's release groups from the last
// windowDays days, plus anything dated in the future.
func (c *Client) RecentReleases(ctx context.Context, artistID string, windowDays int) ([]ReleaseGroup, error) {
	since := c.now().AddDate(0, 0, -windowDays)
	return c.ReleaseGroups(ctx, artistID, &since)
}

// typeFiltered applies the configured release-type filters: an exclude set
// wins over an include set.
func (c *Client) typeFiltered(releaseType string) bool {
	if len(c.excluded) > 0 {
		return c.excluded[releaseType]
	}
	if len(c.included) > 0 {
		return !c.included[releaseType]
	}
	return false
}

// Retry states. One logical operation moves Attempting -> Backoff ->
// Attempting until Success, Exhausted (attempt budget spent), or TimedOut
// (wall clock spent).
type retryState int

const (
	stateAttempting retryState = iota
	stateBackoff
	stateExhausted
	stateTimedOut
)

// doRequest executes one HTTP GET under the retry state machine. The
// deadline is shared across every page of a paginated operation.
func (c *Client) doRequest(ctx context.Context, reqURL string, deadline time.Time) ([]byte, error) {
	start := c.now()
	state := stateAttempting
	attempt := 0
	var lastErr error

	for {
		switch state {
		case stateAttempting:
			if !c.now().Before(deadline) {
				state = stateTimedOut
				continue
			}

			body, err := c.get(ctx, reqURL)
			if err == nil {
				return body, nil
			}
			if !retryable(err) {
				return nil, err
			}

			lastErr = err
			attempt++
			c.logger.Warn("musicbrainz request failed",
				slog.Int("attempt", attempt),
				slog.String("url", reqURL),
				slog.Any("error", err))

			if attempt >= c.cfg.MaxRetries {
				state = stateExhausted
			} else {
				state = stateBackoff
			}

		case stateBackoff:
			delay := c.backoff(attempt - 1)
			remaining := deadline.Sub(c.now())
			if delay >= remaining {
				// Sleep only the remaining slack, then report the timeout
				// rather than overshooting the ceiling.
				if remaining > 0 {
					c.sleep(remaining)
				}
				state = stateTimedOut
				continue
			}
			c.sleep(delay)
			state = stateAttempting

		case stateExhausted:
			return nil, lastErr

		case stateTimedOut:
			return nil, &ConnectionTimeoutError{
				Elapsed: c.now().Sub(start),
				Limit:   c.cfg.ConnectionTimeout,
			}
		}
	}
}

// backoff computes the exponential delay after a failed attempt (0-based),
// capped at MaxBackoff, plus 10-30% random jitter.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.InitialBackoff
	for i := 0; i < attempt && delay < c.cfg.MaxBackoff; i++ {
		delay *= 2
	}
	delay = min(delay, c.cfg.MaxBackoff)
	return delay + time.Duration(c.jitter()*float64(delay))
}

// get performs a single rate-limited HTTP attempt and classifies the outcome.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransientError{Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

func (c *Client) userAgent() string {
	if c.cfg.Contact != "" {
		return fmt.Sprintf("Freshet/%s (%s)", version.Version, c.cfg.Contact)
	}
	return fmt.Sprintf("Freshet/%s (https://github.com/sydlexius/freshet)", version.Version)
}
