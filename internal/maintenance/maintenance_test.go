package maintenance

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sydlexius/freshet/internal/database"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freshet.db")
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db, path, testLogger())
}

func TestOptimize(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if err := svc.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LastOptimizeAt == nil {
		t.Error("expected LastOptimizeAt to be set after Optimize")
	}
}

func TestVacuum(t *testing.T) {
	svc := setupService(t)
	if err := svc.Vacuum(context.Background()); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}

func TestStatus(t *testing.T) {
	svc := setupService(t)

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.DBFileSize <= 0 {
		t.Errorf("DBFileSize = %d, want > 0", st.DBFileSize)
	}
	if st.PageCount <= 0 {
		t.Errorf("PageCount = %d, want > 0", st.PageCount)
	}
	if st.PageSize <= 0 {
		t.Errorf("PageSize = %d, want > 0", st.PageSize)
	}
	if st.LastOptimizeAt != nil {
		t.Error("expected nil LastOptimizeAt before any optimize")
	}
}
