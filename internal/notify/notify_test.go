package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewServiceReturnsNoopWithoutTopic(t *testing.T) {
	svc := NewService(Config{})
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("service = %T, want noop without a topic", svc)
	}
	if err := svc.NotifyRelease(context.Background(), "A", "B", "2026", "Album"); err != nil {
		t.Fatalf("noop NotifyRelease: %v", err)
	}
}

func TestNotifyRelease(t *testing.T) {
	var gotTitle, gotPriority, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService(Config{Topic: srv.URL, Token: "tk_secret"})
	err := svc.NotifyRelease(context.Background(), "Björk", "Fossora II", "2026-10-01", "Album")
	if err != nil {
		t.Fatalf("NotifyRelease: %v", err)
	}

	if gotTitle != "New release: Björk" {
		t.Errorf("Title = %q", gotTitle)
	}
	if gotPriority != "high" {
		t.Errorf("Priority = %q, want high", gotPriority)
	}
	if gotAuth != "Bearer tk_secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody != "Björk: Fossora II (album) out 2026-10-01" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestNotifyReleaseServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewService(Config{Topic: srv.URL})
	err := svc.NotifyRelease(context.Background(), "A", "B", "", "")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestNotifySummary(t *testing.T) {
	var gotTitle, gotBody string
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotTitle = r.Header.Get("Title")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService(Config{Topic: srv.URL})
	ctx := context.Background()

	if err := svc.NotifySummary(ctx, []string{"A: One", "B: Two"}); err != nil {
		t.Fatalf("NotifySummary: %v", err)
	}
	if gotTitle != "2 new releases" {
		t.Errorf("Title = %q", gotTitle)
	}
	if gotBody != "A: One\nB: Two" {
		t.Errorf("body = %q", gotBody)
	}

	// Nothing to say, nothing sent.
	if err := svc.NotifySummary(ctx, nil); err != nil {
		t.Fatalf("NotifySummary(empty): %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want empty summary suppressed", calls)
	}
}

func TestNotifySummaryTruncates(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService(Config{Topic: srv.URL})
	releases := []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"}
	if err := svc.NotifySummary(context.Background(), releases); err != nil {
		t.Fatalf("NotifySummary: %v", err)
	}
	if gotBody != "r1\nr2\nr3\nr4\nr5\n...and 2 more" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestHealthCheckPings(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hc := NewHealthCheck(srv.URL+"/ping/uuid-1", 0)
	ctx := context.Background()

	if err := hc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := hc.Success(ctx); err != nil {
		t.Fatalf("Success: %v", err)
	}
	if err := hc.Fail(ctx); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	want := []string{"/ping/uuid-1/start", "/ping/uuid-1", "/ping/uuid-1/fail"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestHealthCheckDisabled(t *testing.T) {
	hc := NewHealthCheck("", 0)
	if err := hc.Start(context.Background()); err != nil {
		t.Fatalf("disabled Start: %v", err)
	}
	var nilHC *HealthCheck
	if err := nilHC.Success(context.Background()); err != nil {
		t.Fatalf("nil Success: %v", err)
	}
}
