// Package notify delivers new-release announcements over ntfy and reports
// run liveness to a healthcheck endpoint.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sydlexius/freshet/internal/version"
)

// Service is the notification surface the scheduler talks to.
type Service interface {
	NotifyRelease(ctx context.Context, artistName, title, releaseDate, releaseType string) error
	NotifySummary(ctx context.Context, releases []string) error
	TestNotification(ctx context.Context) error
}

// summaryLimit caps how many releases a summary lists before truncating.
const summaryLimit = 5

// Config holds notifier settings. An empty Topic disables delivery.
type Config struct {
	Topic   string
	Token   string
	Timeout time.Duration
}

// NewService builds a notification service backed by ntfy when configured.
// When no topic is configured, a noop implementation is returned.
func NewService(cfg Config) Service {
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		token:    strings.TrimSpace(cfg.Token),
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	token    string
	client   *http.Client
}

func (n *ntfyService) NotifyRelease(ctx context.Context, artistName, title, releaseDate, releaseType string) error {
	artistName = strings.TrimSpace(artistName)
	title = strings.TrimSpace(title)
	if releaseType == "" {
		releaseType = "release"
	}
	message := fmt.Sprintf("%s: %s (%s)", artistName, title, strings.ToLower(releaseType))
	if releaseDate != "" {
		message += " out " + releaseDate
	}
	data := payload{
		title:    "New release: " + artistName,
		message:  message,
		tags:     []string{"freshet", "release"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySummary(ctx context.Context, releases []string) error {
	if len(releases) == 0 {
		return nil
	}
	lines := releases
	var extra int
	if len(lines) > summaryLimit {
		extra = len(lines) - summaryLimit
		lines = lines[:summaryLimit]
	}
	message := strings.Join(lines, "\n")
	if extra > 0 {
		message += fmt.Sprintf("\n...and %d more", extra)
	}
	data := payload{
		title:   fmt.Sprintf("%d new releases", len(releases)),
		message: message,
		tags:    []string{"freshet", "summary"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Freshet test",
		message: "Notifications are working.",
		tags:    []string{"freshet", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", "Freshet/"+version.Version)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRelease(context.Context, string, string, string, string) error { return nil }
func (noopService) NotifySummary(context.Context, []string) error                       { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
