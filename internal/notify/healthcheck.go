package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HealthCheck pings a healthchecks.io-style endpoint around each run:
// Start before, Success after a clean run, Fail on error. A zero-value
// HealthCheck (no URL) is a no-op.
type HealthCheck struct {
	url    string
	client *http.Client
}

// NewHealthCheck creates a healthcheck pinger for the given base ping URL.
func NewHealthCheck(url string, timeout time.Duration) *HealthCheck {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthCheck{
		url:    strings.TrimRight(strings.TrimSpace(url), "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Start signals the beginning of a run.
func (h *HealthCheck) Start(ctx context.Context) error {
	return h.ping(ctx, "/start")
}

// Success signals a completed run.
func (h *HealthCheck) Success(ctx context.Context) error {
	return h.ping(ctx, "")
}

// Fail signals a failed run.
func (h *HealthCheck) Fail(ctx context.Context) error {
	return h.ping(ctx, "/fail")
}

func (h *HealthCheck) ping(ctx context.Context, suffix string) error {
	if h == nil || h.url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url+suffix, nil)
	if err != nil {
		return fmt.Errorf("build healthcheck request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinging healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("healthcheck returned %d", resp.StatusCode)
	}
	return nil
}
