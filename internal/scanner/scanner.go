// Package scanner walks the music library directory layout: one directory
// per artist, one subdirectory per album.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sydlexius/freshet/internal/artist"
)

// Result summarizes one library scan.
type Result struct {
	TotalDirectories int
	NewArtists       int
	StartedAt        time.Time
	CompletedAt      time.Time
}

// Service discovers artists from the library filesystem and registers new
// ones in the store.
type Service struct {
	artistService *artist.Service
	logger        *slog.Logger
	libraryPath   string
	exclusions    map[string]bool
}

// NewService creates a scanner service. Exclusions are directory names to
// skip, compared case-insensitively.
func NewService(artistService *artist.Service, logger *slog.Logger, libraryPath string, exclusions []string) *Service {
	excMap := make(map[string]bool, len(exclusions))
	for _, e := range exclusions {
		excMap[strings.ToLower(e)] = true
	}
	return &Service{
		artistService: artistService,
		logger:        logger.With(slog.String("component", "scanner")),
		libraryPath:   libraryPath,
		exclusions:    excMap,
	}
}

// ArtistDirs lists the artist directory names in the library, skipping
// hidden directories, plain files, and configured exclusions.
func (s *Service) ArtistDirs() ([]string, error) {
	entries, err := os.ReadDir(s.libraryPath)
	if err != nil {
		return nil, fmt.Errorf("reading library directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if s.exclusions[strings.ToLower(name)] {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Albums lists the album directory names under one artist directory. A
// missing artist directory is not an error; it returns an empty list.
func (s *Service) Albums(artistName string) ([]string, error) {
	dir := filepath.Join(s.libraryPath, artistName)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading artist directory: %w", err)
	}

	var albums []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		albums = append(albums, entry.Name())
	}
	return albums, nil
}

// Run scans the library and registers artists not yet in the store.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	result := &Result{StartedAt: time.Now().UTC()}

	dirs, err := s.ArtistDirs()
	if err != nil {
		return nil, err
	}
	result.TotalDirectories = len(dirs)

	for _, name := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		existing, err := s.artistService.GetByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("looking up artist %q: %w", name, err)
		}
		if existing != nil {
			continue
		}

		if err := s.artistService.Create(ctx, &artist.Artist{Name: name}); err != nil {
			return nil, fmt.Errorf("registering artist %q: %w", name, err)
		}
		result.NewArtists++
		s.logger.Debug("new artist discovered", slog.String("name", name))
	}

	result.CompletedAt = time.Now().UTC()
	s.logger.Info("library scan complete",
		slog.Int("directories", result.TotalDirectories),
		slog.Int("new_artists", result.NewArtists))
	return result, nil
}
