package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestClient builds a client pointed at the test server with fast timing.
func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:           baseURL,
		RateLimitInterval: time.Millisecond,
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
		ConnectionTimeout: 30 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, testLogger())
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/artist":
			if r.URL.Query().Get("query") == "nonexistent-artist-xyz" {
				w.Write([]byte(`{"created":"","count":0,"offset":0,"artists":[]}`))
				return
			}
			w.Write(loadFixture(t, "search_bjork.json"))

		case r.URL.Path == "/release-group":
			w.Write(loadFixture(t, "release_groups_bjork.json"))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSearchArtists(t *testing.T) {
	srv := newCatalogServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	candidates, err := c.SearchArtists(context.Background(), "Björk", 5)
	if err != nil {
		t.Fatalf("SearchArtists: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != "87c5dedd-371d-4a53-9f7f-80522fb7f3cb" {
		t.Errorf("unexpected first candidate ID: %s", candidates[0].ID)
	}
	if candidates[0].Score != 100 || candidates[1].Score != 62 {
		t.Errorf("candidates out of relevance order: %+v", candidates)
	}
	if candidates[0].Disambiguation != "Icelandic singer-songwriter" {
		t.Errorf("unexpected disambiguation: %s", candidates[0].Disambiguation)
	}
}

func TestSearchArtistsEmpty(t *testing.T) {
	srv := newCatalogServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	candidates, err := c.SearchArtists(context.Background(), "nonexistent-artist-xyz", 5)
	if err != nil {
		t.Fatalf("expected no error for zero hits, got %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected empty result, got %d candidates", len(candidates))
	}
}

func TestReleaseGroupsDropsUnparseableDates(t *testing.T) {
	srv := newCatalogServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	groups, err := c.ReleaseGroups(context.Background(), "87c5dedd", nil)
	if err != nil {
		t.Fatalf("ReleaseGroups: %v", err)
	}
	// Fixture has 6 entries; one has no date and one has an unparseable date.
	if len(groups) != 4 {
		t.Fatalf("expected 4 release groups, got %d: %v", len(groups), groups)
	}
	for _, g := range groups {
		if g.Date.IsZero() {
			t.Errorf("release group %s has zero parsed date", g.ID)
		}
	}
	// Partial dates survive in raw form.
	if groups[1].RawDate != "1997-09" || groups[2].RawDate != "2001" {
		t.Errorf("partial raw dates not preserved: %+v", groups)
	}
}

func TestReleaseGroupsSinceFilter(t *testing.T) {
	srv := newCatalogServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	since := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	groups, err := c.ReleaseGroups(context.Background(), "87c5dedd", &since)
	if err != nil {
		t.Fatalf("ReleaseGroups: %v", err)
	}
	// Vespertine (2001) and Live Box (2002) remain.
	if len(groups) != 2 {
		t.Fatalf("expected 2 release groups since 2000, got %d: %v", len(groups), groups)
	}
}

func TestReleaseGroupsTypeFilters(t *testing.T) {
	srv := newCatalogServer(t)
	defer srv.Close()

	exclude := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.ExcludedReleaseTypes = []string{"Live"}
	})
	groups, err := exclude.ReleaseGroups(context.Background(), "87c5dedd", nil)
	if err != nil {
		t.Fatalf("ReleaseGroups: %v", err)
	}
	for _, g := range groups {
		if g.Type == "Live" {
			t.Errorf("excluded type Live leaked through: %+v", g)
		}
	}
	if len(groups) != 3 {
		t.Errorf("expected 3 release groups with Live excluded, got %d", len(groups))
	}

	include := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.IncludedReleaseTypes = []string{"Album"}
	})
	groups, err = include.ReleaseGroups(context.Background(), "87c5dedd", nil)
	if err != nil {
		t.Fatalf("ReleaseGroups: %v", err)
	}
	if len(groups) != 3 {
		t.Errorf("expected 3 Album release groups, got %d", len(groups))
	}
	for _, g := range groups {
		if g.Type != "Album" {
			t.Errorf("non-included type leaked through: %+v", g)
		}
	}
}

func TestReleaseGroupsPaginationTerminates(t *testing.T) {
	var pagesServed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		count := pageSize // full first page
		if offset >= pageSize {
			count = 3 // short second page terminates the loop
		}
		fmt.Fprint(w, `{"release-group-count":28,"release-group-offset":`+strconv.Itoa(offset)+`,"release-groups":[`)
		for i := 0; i < count; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":"rg-%d-%d","title":"Album %d","primary-type":"Album","first-release-date":"2020-01-02"}`, offset, i, offset+i)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	groups, err := c.ReleaseGroups(context.Background(), "some-artist", nil)
	if err != nil {
		t.Fatalf("ReleaseGroups: %v", err)
	}
	if pagesServed != 2 {
		t.Errorf("expected exactly 2 pages fetched, got %d", pagesServed)
	}
	if len(groups) != pageSize+3 {
		t.Errorf("expected %d release groups, got %d", pageSize+3, len(groups))
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	srv := newCatalogServer(t)
	defer srv.Close()

	const interval = 50 * time.Millisecond
	c := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.RateLimitInterval = interval
	})

	start := time.Now()
	for range 3 {
		if _, err := c.SearchArtists(context.Background(), "Björk", 5); err != nil {
			t.Fatalf("SearchArtists: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("3 calls took %s, want at least %s", elapsed, 2*interval)
	}
}

func TestRetryExhaustsAttemptsOnTransientFailure(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.MaxRetries = 3
	})

	_, err := c.SearchArtists(context.Background(), "Björk", 5)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransientError, got %T: %v", err, err)
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestNonRetryableStatusFailsImmediately(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.SearchArtists(context.Background(), "Björk", 5)
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %T: %v", err, err)
	}
	if re.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", re.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

// The timeout-vs-backoff race, driven deterministically with a fake clock:
// the final backoff would overshoot the ceiling, so the client sleeps only
// the remaining slack and reports ConnectionTimeoutError.
func TestConnectionTimeoutTruncatesFinalBackoff(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.MaxRetries = 5
		cfg.InitialBackoff = 8 * time.Second
		cfg.MaxBackoff = 60 * time.Second
		cfg.ConnectionTimeout = 10 * time.Second
	})

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.sleep = func(d time.Duration) { now = now.Add(d) }
	c.jitter = func() float64 { return 0.1 }

	start := now
	_, err := c.SearchArtists(context.Background(), "Björk", 5)

	var cte *ConnectionTimeoutError
	if !errors.As(err, &cte) {
		t.Fatalf("expected ConnectionTimeoutError, got %T: %v", err, err)
	}
	// Attempt 1 fails, backoff 8s*1.1=8.8s fits; attempt 2 fails, backoff
	// 16s*1.1 exceeds the 1.2s slack, so the clock stops exactly at the
	// ceiling.
	if attempts != 2 {
		t.Errorf("expected 2 attempts before timeout, got %d", attempts)
	}
	if elapsed := now.Sub(start); elapsed != 10*time.Second {
		t.Errorf("expected elapsed to land exactly on the 10s ceiling, got %s", elapsed)
	}
}

func TestParseReleaseDate(t *testing.T) {
	cases := []struct {
		input string
		ok    bool
		want  time.Time
	}{
		{"2023-05-01", true, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2023-05", true, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2023", true, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"", false, time.Time{}},
		{"05-01-2023", false, time.Time{}},
	}
	for _, c := range cases {
		got, ok := ParseReleaseDate(c.input)
		if ok != c.ok {
			t.Errorf("ParseReleaseDate(%q) ok = %v, want %v", c.input, ok, c.ok)
			continue
		}
		if ok && !got.Equal(c.want) {
			t.Errorf("ParseReleaseDate(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}
