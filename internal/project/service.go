package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/export"
	"github.com/uttgeorge/textcut/internal/transcript"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNoTranscript    = errors.New("project has no transcript")
	ErrNotReady        = errors.New("project is not ready")
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateProject(ctx context.Context, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	now := time.Now().UTC()
	p := &Project{
		ID:        NewID(),
		Name:      name,
		Status:    StatusUploaded,
		FrameRate: 30,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("project created", "project_id", p.ID, "name", name)
	}
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteProject(ctx, id)
}

// AttachTranscript stores the transcription result, runs silence
// detection over it, and moves the project to ready.
func (s *Service) AttachTranscript(ctx context.Context, projectID, videoPath string, t *transcript.Transcript, frameRate int) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	if frameRate <= 0 {
		frameRate = 30
	}

	t.ProjectID = projectID
	t.Silences = transcript.DetectSilences(t.Segments, t.Duration, transcript.DefaultMinSilence)

	if err := s.repo.UpdateProjectVideo(ctx, projectID, videoPath, t.Duration, frameRate); err != nil {
		return err
	}
	if err := s.repo.SaveTranscript(ctx, t); err != nil {
		return err
	}
	return s.repo.UpdateProjectStatus(ctx, projectID, StatusReady, "")
}

func (s *Service) GetTranscript(ctx context.Context, projectID string) (*transcript.Transcript, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	t, err := s.repo.GetTranscript(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTranscript
	}
	return t, nil
}

// GetEDL returns the latest saved log; a project with no saves gets an
// empty version-0 log rather than an error.
func (s *Service) GetEDL(ctx context.Context, projectID string) (*edl.Log, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	log, err := s.repo.GetLatestEDL(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		return &edl.Log{Version: 0}, nil
	}
	return log, nil
}

// SaveEDL is the strict entry point: unknown segment ids are rejected
// here, unlike the permissive resolution used when rendering. The
// version must be exactly one past the stored maximum.
func (s *Service) SaveEDL(ctx context.Context, projectID string, version int, ops []edl.Operation) error {
	t, err := s.GetTranscript(ctx, projectID)
	if err != nil {
		return err
	}
	if err := edl.ValidateOps(t.Segments, ops); err != nil {
		return err
	}
	if err := s.repo.AppendEDL(ctx, projectID, version, ops); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("edl saved", "project_id", projectID, "version", version, "operations", len(ops))
	}
	return nil
}

// SilenceDeletion builds a delete_silences operation covering every
// detected silence at or above the threshold. The caller still saves
// it through SaveEDL with the next version.
func (s *Service) SilenceDeletion(ctx context.Context, projectID string, threshold float64) (edl.DeleteSilences, error) {
	t, err := s.GetTranscript(ctx, projectID)
	if err != nil {
		return edl.DeleteSilences{}, err
	}
	if threshold <= 0 {
		threshold = transcript.DefaultMinSilence
	}

	op := edl.DeleteSilences{Threshold: threshold, Created: time.Now().UTC()}
	for _, sil := range t.Silences {
		if sil.Duration >= threshold {
			op.TimeRanges = append(op.TimeRanges, edl.TimeRange{Start: sil.Start, End: sil.End})
		}
	}
	return op, nil
}

// KeptRanges resolves the latest log against the transcript into the
// ordered ranges of source material that survive the edit.
func (s *Service) KeptRanges(ctx context.Context, projectID string) ([]edl.TimeRange, error) {
	t, err := s.GetTranscript(ctx, projectID)
	if err != nil {
		return nil, err
	}
	log, err := s.GetEDL(ctx, projectID)
	if err != nil {
		return nil, err
	}
	deleted := edl.ResolveDeletedRanges(t.Segments, log.Operations)
	return edl.KeptRanges(t.Duration, deleted), nil
}

// RequestExport records a pending export for the worker to pick up.
func (s *Service) RequestExport(ctx context.Context, projectID, format string) (*Export, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusReady {
		return nil, fmt.Errorf("%w: status is %s", ErrNotReady, p.Status)
	}
	if export.FileExtension(format) == "" {
		return nil, fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, format)
	}

	e := &Export{
		ID:        NewID(),
		ProjectID: projectID,
		Format:    format,
		Status:    ExportStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateExport(ctx, e); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("export requested", "export_id", e.ID, "project_id", projectID, "format", format)
	}
	return e, nil
}

func (s *Service) GetExport(ctx context.Context, id string) (*Export, error) {
	e, err := s.repo.GetExport(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("export not found")
	}
	return e, nil
}

func (s *Service) ListExports(ctx context.Context, projectID string) ([]*Export, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListExports(ctx, projectID)
}
