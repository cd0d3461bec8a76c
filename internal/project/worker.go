package project

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/uttgeorge/textcut/internal/export"
	"github.com/uttgeorge/textcut/internal/store"
)

// Worker drains pending export records in the background and evicts
// expired artifacts. One export is processed per poll tick; export
// generation is cheap enough that no parallelism is warranted.
type Worker struct {
	service      *Service
	repo         Repository
	store        *store.Store
	logger       *slog.Logger
	pollInterval time.Duration
	janitorEvery time.Duration
	running      atomic.Bool
}

func NewWorker(service *Service, repo Repository, st *store.Store, logger *slog.Logger) *Worker {
	return &Worker{
		service:      service,
		repo:         repo,
		store:        st,
		logger:       logger,
		pollInterval: 2 * time.Second,
		janitorEvery: 1 * time.Hour,
	}
}

func (w *Worker) Start(ctx context.Context) {
	if w.running.Swap(true) {
		return
	}

	w.logger.Info("export worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	janitor := time.NewTicker(w.janitorEvery)
	defer janitor.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("export worker stopping")
			w.running.Store(false)
			return
		case <-ticker.C:
			w.processNextExport(ctx)
		case <-janitor.C:
			w.evictExpired(ctx)
		}
	}
}

func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

func (w *Worker) processNextExport(ctx context.Context) {
	pending, err := w.repo.ListPendingExports(ctx)
	if err != nil {
		w.logger.Error("failed to list pending exports", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	e := pending[0]
	w.logger.Info("processing export", "export_id", e.ID, "project_id", e.ProjectID, "format", e.Format)

	if err := w.repo.UpdateExportStatus(ctx, e.ID, ExportStatusProcessing, ""); err != nil {
		w.logger.Error("failed to mark export processing", "export_id", e.ID, "error", err)
		return
	}

	if err := w.generate(ctx, e); err != nil {
		w.logger.Error("export failed", "export_id", e.ID, "error", err)
		w.repo.UpdateExportStatus(ctx, e.ID, ExportStatusFailed, err.Error())
	}
}

func (w *Worker) generate(ctx context.Context, e *Export) error {
	p, err := w.service.GetProject(ctx, e.ProjectID)
	if err != nil {
		return err
	}
	kept, err := w.service.KeptRanges(ctx, e.ProjectID)
	if err != nil {
		return err
	}

	data, err := export.Generate(e.Format, export.Job{
		ProjectName: p.Name,
		VideoPath:   p.VideoPath,
		Duration:    p.Duration,
		KeptRanges:  kept,
		FrameRate:   p.FrameRate,
	})
	if err != nil {
		return err
	}

	// The export id keeps artifact paths unique per record; exports of
	// the same project and format must never share a file, or eviction
	// of one would orphan the other.
	filename := export.SanitizeName(p.Name, 80) + "_" + e.ID + export.FileExtension(e.Format)
	locator, absPath, err := w.store.ExportOutput(e.ProjectID, filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(absPath, data, 0644); err != nil {
		return err
	}

	expiresAt := time.Now().UTC().Add(ExportTTL)
	if err := w.repo.CompleteExport(ctx, e.ID, locator, int64(len(data)), expiresAt); err != nil {
		return err
	}
	w.logger.Info("export completed", "export_id", e.ID, "file", locator, "bytes", len(data))
	return nil
}

func (w *Worker) evictExpired(ctx context.Context) {
	paths, err := w.repo.DeleteExpiredExports(ctx, time.Now())
	if err != nil {
		w.logger.Error("failed to evict expired exports", "error", err)
		return
	}
	for _, p := range paths {
		if err := os.Remove(w.store.Resolve(p)); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("failed to remove expired artifact", "path", p, "error", err)
		}
	}
	if len(paths) > 0 {
		w.logger.Info("evicted expired exports", "count", len(paths))
	}
}
