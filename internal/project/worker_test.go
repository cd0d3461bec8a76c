package project

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/export"
	"github.com/uttgeorge/textcut/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupWorker(t *testing.T) (*Service, Repository, *Worker, *store.Store) {
	t.Helper()
	database, repo := setupTestDB(t)
	t.Cleanup(func() { database.Close() })

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	svc := NewService(repo, nil)
	w := NewWorker(svc, repo, st, discardLogger())
	return svc, repo, w, st
}

func TestWorker_ProcessExport(t *testing.T) {
	svc, repo, w, st := setupWorker(t)
	ctx := context.Background()

	p := readyProject(t, svc)
	ops := []edl.Operation{edl.DeleteSegments{SegmentIDs: []int{2}}}
	if err := svc.SaveEDL(ctx, p.ID, 1, ops); err != nil {
		t.Fatalf("SaveEDL() error = %v", err)
	}
	e, err := svc.RequestExport(ctx, p.ID, export.FormatEDL)
	if err != nil {
		t.Fatalf("RequestExport() error = %v", err)
	}

	w.processNextExport(ctx)

	got, err := svc.GetExport(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExport() error = %v", err)
	}
	if got.Status != ExportStatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", got.Status, got.ErrorMessage)
	}
	if got.FileSize == 0 {
		t.Error("file_size = 0 after completion")
	}
	if got.ExpiresAt.IsZero() {
		t.Error("expires_at not set")
	}

	data, err := os.ReadFile(st.Resolve(got.FilePath))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.HasPrefix(string(data), "TITLE: Demo Project") {
		t.Errorf("artifact does not start with a TITLE line: %q", data)
	}

	pending, err := repo.ListPendingExports(ctx)
	if err != nil {
		t.Fatalf("ListPendingExports() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending exports = %d after processing, want 0", len(pending))
	}
}

func TestWorker_ArtifactPathsUniquePerExport(t *testing.T) {
	svc, repo, w, st := setupWorker(t)
	ctx := context.Background()

	p := readyProject(t, svc)
	first, err := svc.RequestExport(ctx, p.ID, export.FormatEDL)
	if err != nil {
		t.Fatalf("RequestExport() error = %v", err)
	}
	second, err := svc.RequestExport(ctx, p.ID, export.FormatEDL)
	if err != nil {
		t.Fatalf("RequestExport() error = %v", err)
	}

	w.processNextExport(ctx)
	w.processNextExport(ctx)

	a, err := svc.GetExport(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetExport(first) error = %v", err)
	}
	b, err := svc.GetExport(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetExport(second) error = %v", err)
	}
	if a.FilePath == b.FilePath {
		t.Fatalf("both exports share file_path %q", a.FilePath)
	}

	// Expiring one export must not remove the other's artifact.
	if err := repo.CompleteExport(ctx, first.ID, a.FilePath, a.FileSize, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("CompleteExport() error = %v", err)
	}
	w.evictExpired(ctx)

	if _, err := os.Stat(st.Resolve(a.FilePath)); !os.IsNotExist(err) {
		t.Errorf("expired artifact still on disk: %v", err)
	}
	if _, err := os.Stat(st.Resolve(b.FilePath)); err != nil {
		t.Errorf("live artifact removed: %v", err)
	}
}

func TestWorker_UnsupportedFormatFails(t *testing.T) {
	svc, _, w, _ := setupWorker(t)
	ctx := context.Background()

	p := readyProject(t, svc)
	// Bypass the service-side format check to exercise the worker's
	// failure handling.
	e := &Export{
		ID:        NewID(),
		ProjectID: p.ID,
		Format:    "mp4",
		Status:    ExportStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.repo.CreateExport(ctx, e); err != nil {
		t.Fatalf("CreateExport() error = %v", err)
	}

	w.processNextExport(ctx)

	got, err := svc.GetExport(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExport() error = %v", err)
	}
	if got.Status != ExportStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("error_message is empty for a failed export")
	}
}

func TestWorker_EvictExpired(t *testing.T) {
	svc, repo, w, st := setupWorker(t)
	ctx := context.Background()

	p := readyProject(t, svc)
	e, err := svc.RequestExport(ctx, p.ID, export.FormatEDL)
	if err != nil {
		t.Fatalf("RequestExport() error = %v", err)
	}
	w.processNextExport(ctx)

	got, err := svc.GetExport(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExport() error = %v", err)
	}
	artifact := st.Resolve(got.FilePath)

	// Backdate the expiry so the janitor sees it as stale.
	if err := repo.CompleteExport(ctx, e.ID, got.FilePath, got.FileSize, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("CompleteExport() error = %v", err)
	}

	w.evictExpired(ctx)

	if _, err := svc.GetExport(ctx, e.ID); err == nil {
		t.Error("expired export record still present")
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("expired artifact still on disk: %v", err)
	}
}
