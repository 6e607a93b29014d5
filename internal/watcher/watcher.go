// Package watcher watches the library root for artist directory changes and
// triggers pipeline runs in response.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Service watches the library root directory for subdirectory creation,
// removal, and renames, coalescing bursts of events into a single trigger.
type Service struct {
	trigger     func()
	logger      *slog.Logger
	libraryPath string
	debounce    time.Duration
}

// NewService creates a filesystem watcher. trigger is called after changes
// settle; it must be safe to call from the watcher goroutine.
func NewService(trigger func(), logger *slog.Logger, libraryPath string) *Service {
	return &Service{
		trigger:     trigger,
		logger:      logger.With(slog.String("component", "fs-watcher")),
		libraryPath: libraryPath,
		debounce:    5 * time.Second,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Start blocks until ctx is canceled, watching the library root and firing
// the trigger after relevant changes settle.
func (s *Service) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(s.libraryPath); err != nil {
		return err
	}
	s.logger.Info("filesystem watcher started", slog.String("path", s.libraryPath))

	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !s.relevant(ev) {
				continue
			}
			s.logger.Debug("library change detected",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name))
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(s.debounce)
			pending = true

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("fsnotify error", slog.Any("error", err))

		case <-debounceTimer.C:
			if pending {
				pending = false
				s.logger.Info("library changes settled, triggering run")
				s.trigger()
			}
		}
	}
}

// relevant filters to create, remove, and rename events on non-hidden
// entries directly under the library root.
func (s *Service) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	return !strings.HasPrefix(name, ".")
}
