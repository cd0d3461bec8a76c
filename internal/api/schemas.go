package api

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/project"
	"github.com/uttgeorge/textcut/internal/transcript"
)

var validate = validator.New()

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type ProjectResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	VideoPath    string  `json:"video_path,omitempty"`
	Duration     float64 `json:"duration"`
	FrameRate    int     `json:"frame_rate"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// EDL operations cross the wire verbatim as their tagged JSON envelope;
// decoding and tag validation happen in the edl package.
type SaveEDLRequest struct {
	Version    int             `json:"version" validate:"required,min=1"`
	Operations json.RawMessage `json:"operations" validate:"required"`
}

type EDLResponse struct {
	Version    int             `json:"version"`
	Operations json.RawMessage `json:"operations"`
	UpdatedAt  string          `json:"updated_at,omitempty"`
}

// AttachTranscriptRequest registers externally produced transcription
// output for a project. Duration may be omitted when the video locator
// resolves to probe-able media.
type AttachTranscriptRequest struct {
	VideoPath string               `json:"video_path" validate:"required"`
	FrameRate int                  `json:"frame_rate" validate:"omitempty,min=1,max=240"`
	Duration  float64              `json:"duration" validate:"omitempty,gt=0"`
	Language  string               `json:"language"`
	Segments  []transcript.Segment `json:"segments" validate:"required,min=1"`
}

type SilencePreviewRequest struct {
	Threshold float64 `json:"threshold" validate:"omitempty,gt=0"`
}

type CreateExportRequest struct {
	Format string `json:"format" validate:"required,oneof=fcpxml premiere_xml edl"`
}

type ExportResponse struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Format       string `json:"format"`
	Status       string `json:"status"`
	FilePath     string `json:"file_path,omitempty"`
	FileSize     int64  `json:"file_size"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

type ExportsResponse struct {
	Exports []ExportResponse `json:"exports"`
}

type AgentEditRequest struct {
	Instruction string `json:"instruction" validate:"required,min=1,max=4000"`
}

type AgentEditResponse struct {
	Reply        string          `json:"reply"`
	Finished     bool            `json:"finished"`
	Outcome      string          `json:"outcome"`
	OutputVideo  string          `json:"output_video,omitempty"`
	SuggestionID string          `json:"suggestion_id,omitempty"`
	Timeline     json.RawMessage `json:"timeline,omitempty"`
}

type AcceptSuggestionRequest struct {
	SuggestionID string `json:"suggestion_id" validate:"required"`
	Version      int    `json:"version" validate:"required,min=1"`
}

type RenderResponse struct {
	OutputVideo string `json:"output_video"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Status:       p.Status,
		VideoPath:    p.VideoPath,
		Duration:     p.Duration,
		FrameRate:    p.FrameRate,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
}

func ExportToResponse(e *project.Export) ExportResponse {
	resp := ExportResponse{
		ID:           e.ID,
		ProjectID:    e.ProjectID,
		Format:       e.Format,
		Status:       e.Status,
		FilePath:     e.FilePath,
		FileSize:     e.FileSize,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
	if !e.ExpiresAt.IsZero() {
		resp.ExpiresAt = e.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

func EDLToResponse(log *edl.Log) (EDLResponse, error) {
	ops, err := edl.MarshalOperations(log.Operations)
	if err != nil {
		return EDLResponse{}, err
	}
	resp := EDLResponse{Version: log.Version, Operations: ops}
	if !log.UpdatedAt.IsZero() {
		resp.UpdatedAt = log.UpdatedAt.Format(time.RFC3339)
	}
	return resp, nil
}
