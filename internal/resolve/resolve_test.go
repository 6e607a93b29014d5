package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sydlexius/freshet/internal/match"
	"github.com/sydlexius/freshet/internal/musicbrainz"
)

type fakeCatalog struct {
	candidates []musicbrainz.ArtistCandidate
	searchErr  error

	// discographies maps artist id to release group titles. A missing id
	// yields discographyErr if set, otherwise an empty discography.
	discographies  map[string][]string
	discographyErr map[string]error
}

func (f *fakeCatalog) SearchArtists(_ context.Context, _ string, _ int) ([]musicbrainz.ArtistCandidate, error) {
	return f.candidates, f.searchErr
}

func (f *fakeCatalog) ReleaseGroups(_ context.Context, artistID string, _ *time.Time) ([]musicbrainz.ReleaseGroup, error) {
	if err := f.discographyErr[artistID]; err != nil {
		return nil, err
	}
	titles := f.discographies[artistID]
	groups := make([]musicbrainz.ReleaseGroup, 0, len(titles))
	for _, title := range titles {
		groups = append(groups, musicbrainz.ReleaseGroup{ID: "rg-" + title, Title: title})
	}
	return groups, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidate(id, name string) musicbrainz.ArtistCandidate {
	return musicbrainz.ArtistCandidate{ID: id, Name: name}
}

func TestResolvePicksDiscographyOverlap(t *testing.T) {
	catalog := &fakeCatalog{
		candidates: []musicbrainz.ArtistCandidate{
			candidate("mbid-tribute", "Dread Zeppelin"),
			candidate("mbid-real", "Led Zeppelin"),
		},
		discographies: map[string][]string{
			"mbid-tribute": {"Un-Led-Ed", "5,000,000"},
			"mbid-real":    {"Led Zeppelin IV", "Houses of the Holy", "Physical Graffiti"},
		},
	}
	r := New(catalog, Config{}, testLogger())

	res, err := r.Resolve(context.Background(), "Led Zeppelin",
		[]string{"Houses of the Holy", "Physical Graffiti"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil {
		t.Fatal("expected a resolution")
	}
	if res.MBID != "mbid-real" {
		t.Errorf("MBID = %q, want the candidate whose discography matches", res.MBID)
	}
	if res.Method != MethodAlbumMatch {
		t.Errorf("Method = %q, want %q", res.Method, MethodAlbumMatch)
	}
	if res.Score < 0.9 {
		t.Errorf("Score = %v, want near-perfect for exact album overlap", res.Score)
	}
	if res.Level != match.LevelHigh {
		t.Errorf("Level = %q, want %q", res.Level, match.LevelHigh)
	}
}

func TestResolveFallsBackToFirstResult(t *testing.T) {
	catalog := &fakeCatalog{
		candidates: []musicbrainz.ArtistCandidate{
			candidate("mbid-top", "Low"),
			candidate("mbid-other", "Low Roar"),
		},
		discographies: map[string][]string{
			"mbid-top":   {"Something Else Entirely"},
			"mbid-other": {"Also Unrelated"},
		},
	}
	r := New(catalog, Config{}, testLogger())

	res, err := r.Resolve(context.Background(), "Low", []string{"Rare Demo Collection"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil {
		t.Fatal("expected a resolution")
	}
	if res.MBID != "mbid-top" {
		t.Errorf("MBID = %q, want the top search hit", res.MBID)
	}
	if res.Method != MethodFirstResult {
		t.Errorf("Method = %q, want %q", res.Method, MethodFirstResult)
	}
	if res.Level != match.LevelLow {
		t.Errorf("Level = %q, want %q for a fallback pick", res.Level, match.LevelLow)
	}
}

func TestResolveNoLocalAlbumsTakesTopHit(t *testing.T) {
	catalog := &fakeCatalog{
		candidates: []musicbrainz.ArtistCandidate{
			candidate("mbid-top", "Burial"),
			candidate("mbid-other", "Burial Chamber Trio"),
		},
	}
	r := New(catalog, Config{}, testLogger())

	res, err := r.Resolve(context.Background(), "Burial", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil || res.MBID != "mbid-top" {
		t.Fatalf("res = %+v, want top search hit", res)
	}
	if res.Method != MethodFirstResult || res.Level != match.LevelLow {
		t.Errorf("Method/Level = %q/%q, want first-result at low", res.Method, res.Level)
	}
}

func TestResolveNoCandidates(t *testing.T) {
	r := New(&fakeCatalog{}, Config{}, testLogger())

	res, err := r.Resolve(context.Background(), "Nonexistent Band", []string{"An Album"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil resolution, got %+v", res)
	}
}

func TestResolveSearchError(t *testing.T) {
	wantErr := errors.New("catalog down")
	r := New(&fakeCatalog{searchErr: wantErr}, Config{}, testLogger())

	_, err := r.Resolve(context.Background(), "Anyone", nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want search error surfaced", err)
	}
}

func TestResolveSkipsFailingCandidate(t *testing.T) {
	catalog := &fakeCatalog{
		candidates: []musicbrainz.ArtistCandidate{
			candidate("mbid-broken", "Broken"),
			candidate("mbid-good", "Good"),
		},
		discographies: map[string][]string{
			"mbid-good": {"The Album", "The Other Album"},
		},
		discographyErr: map[string]error{
			"mbid-broken": errors.New("HTTP 500"),
		},
	}
	r := New(catalog, Config{}, testLogger())

	res, err := r.Resolve(context.Background(), "Good", []string{"The Album", "The Other Album"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res == nil || res.MBID != "mbid-good" {
		t.Fatalf("res = %+v, want the surviving candidate", res)
	}
	if res.Method != MethodAlbumMatch {
		t.Errorf("Method = %q, want %q", res.Method, MethodAlbumMatch)
	}
}

func TestRevalidate(t *testing.T) {
	catalog := &fakeCatalog{
		discographies: map[string][]string{
			"mbid-x": {"First", "Second", "Third"},
		},
	}
	r := New(catalog, Config{}, testLogger())

	score, level, err := r.Revalidate(context.Background(), "mbid-x", []string{"First", "Second", "Third"})
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if score < 0.9 {
		t.Errorf("score = %v, want near-perfect", score)
	}
	if level != match.LevelHigh {
		t.Errorf("level = %q, want %q", level, match.LevelHigh)
	}

	score, level, err = r.Revalidate(context.Background(), "mbid-x", []string{"Unrelated Bootleg"})
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if score != 0 {
		t.Errorf("score = %v, want 0 for no overlap", score)
	}
	if level != match.LevelNone {
		t.Errorf("level = %q, want %q", level, match.LevelNone)
	}
}

func TestRevalidateError(t *testing.T) {
	wantErr := errors.New("timeout")
	catalog := &fakeCatalog{
		discographyErr: map[string]error{"mbid-x": wantErr},
	}
	r := New(catalog, Config{}, testLogger())

	_, _, err := r.Revalidate(context.Background(), "mbid-x", []string{"A"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want discography error surfaced", err)
	}
}
