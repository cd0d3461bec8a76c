package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/uttgeorge/textcut/internal/agent"
	"github.com/uttgeorge/textcut/internal/config"
	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/export"
	"github.com/uttgeorge/textcut/internal/project"
	"github.com/uttgeorge/textcut/internal/render"
	"github.com/uttgeorge/textcut/internal/transcript"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	suggestions := newSuggestionCache()

	r.Get("/health", healthHandler(cfg))

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", createProjectHandler(cfg))
		r.Get("/", listProjectsHandler(cfg))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getProjectHandler(cfg))
			r.Delete("/", deleteProjectHandler(cfg))
			r.Get("/transcript", getTranscriptHandler(cfg))
			r.Put("/transcript", attachTranscriptHandler(cfg))
			r.Get("/edl", getEDLHandler(cfg))
			r.Put("/edl", saveEDLHandler(cfg))
			r.Post("/silences", silencePreviewHandler(cfg))
			r.Post("/exports", createExportHandler(cfg))
			r.Get("/exports", listExportsHandler(cfg))
			r.Post("/render", renderProjectHandler(cfg))
			r.Get("/renders/{filename}", downloadRenderHandler(cfg))
			r.Post("/agent", agentEditHandler(cfg, suggestions))
			r.Post("/agent/accept", acceptSuggestionHandler(cfg, suggestions))
		})
	})

	r.Get("/exports/{id}", getExportHandler(cfg))
	r.Get("/exports/{id}/download", downloadExportHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

// writeServiceError maps domain errors onto HTTP statuses. Unmapped
// errors become opaque 500s; their detail stays in the logs.
func writeServiceError(w http.ResponseWriter, cfg ServerConfig, err error) {
	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
	case errors.Is(err, project.ErrNoTranscript):
		WriteError(w, http.StatusNotFound, "project has no transcript", "NO_TRANSCRIPT")
	case errors.Is(err, project.ErrNotReady):
		WriteError(w, http.StatusConflict, "project is not ready", "NOT_READY")
	case errors.Is(err, edl.ErrVersionConflict):
		WriteError(w, http.StatusConflict, err.Error(), "VERSION_CONFLICT")
	case errors.Is(err, edl.ErrUnknownSegment), errors.Is(err, edl.ErrUnknownOperation):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_OPERATIONS")
	case errors.Is(err, export.ErrUnsupportedFormat):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		cfg.Logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		p, err := cfg.Service.CreateProject(r.Context(), req.Name)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ProjectToResponse(p))
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Service.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getTranscriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := cfg.Service.GetTranscript(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, t)
	}
}

// attachTranscriptHandler registers transcription output produced by
// an external STT pipeline and moves the project to ready. When no
// duration is supplied the source media is probed for one.
func attachTranscriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AttachTranscriptRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		duration := req.Duration
		if duration == 0 {
			last := req.Segments[len(req.Segments)-1]
			duration = last.End
			if cfg.Prober != nil {
				if probed, err := cfg.Prober.Duration(r.Context(), cfg.Store.Resolve(req.VideoPath)); err == nil {
					duration = probed
				} else {
					cfg.Logger.Warn("duration probe failed, using last segment end",
						"video", req.VideoPath, "error", err)
				}
			}
		}

		projectID := chi.URLParam(r, "id")
		t := &transcript.Transcript{
			Duration: duration,
			Language: req.Language,
			Segments: req.Segments,
		}
		if err := cfg.Service.AttachTranscript(r.Context(), projectID, req.VideoPath, t, req.FrameRate); err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		p, err := cfg.Service.GetProject(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func getEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log, err := cfg.Service.GetEDL(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		resp, err := EDLToResponse(log)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func saveEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveEDLRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		ops, err := edl.UnmarshalOperations(req.Operations)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		projectID := chi.URLParam(r, "id")
		if err := cfg.Service.SaveEDL(r.Context(), projectID, req.Version, ops); err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		log, err := cfg.Service.GetEDL(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		resp, err := EDLToResponse(log)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// silencePreviewHandler returns the delete_silences operation for a
// threshold without saving it, so a client can show the cut before
// committing it as the next version.
func silencePreviewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SilencePreviewRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		op, err := cfg.Service.SilenceDeletion(r.Context(), chi.URLParam(r, "id"), req.Threshold)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		ops, err := edl.MarshalOperations([]edl.Operation{op})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, json.RawMessage(ops))
	}
}

func createExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateExportRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		e, err := cfg.Service.RequestExport(r.Context(), chi.URLParam(r, "id"), req.Format)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, ExportToResponse(e))
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exports, err := cfg.Service.ListExports(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		resp := ExportsResponse{Exports: make([]ExportResponse, len(exports))}
		for i, e := range exports {
			resp.Exports[i] = ExportToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := cfg.Service.GetExport(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, ExportToResponse(e))
	}
}

func downloadExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := cfg.Service.GetExport(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		if e.Status != project.ExportStatusCompleted || e.FilePath == "" {
			WriteError(w, http.StatusConflict, "export is not completed", "NOT_READY")
			return
		}
		http.ServeFile(w, r, cfg.Store.Resolve(e.FilePath))
	}
}

// renderProjectHandler renders the output video described by the
// latest saved EDL. A Timeline operation is authoritative when one
// exists; otherwise the kept ranges of the delete-style operations
// play in source order.
func renderProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Transcoder == nil {
			WriteError(w, http.StatusServiceUnavailable, "rendering is not configured", "RENDER_DISABLED")
			return
		}

		projectID := chi.URLParam(r, "id")
		p, err := cfg.Service.GetProject(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		t, err := cfg.Service.GetTranscript(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		log, err := cfg.Service.GetEDL(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		clips := edl.LatestTimeline(log.Operations)
		if clips == nil {
			deleted := edl.ResolveDeletedRanges(t.Segments, log.Operations)
			for _, kept := range edl.KeptRanges(t.Duration, deleted) {
				clips = append(clips, edl.Clip{Start: kept.Start, End: kept.End})
			}
		}

		timeline := render.BuildTimeline(clips, t.Segments)
		if len(timeline) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "nothing to render", "EMPTY_TIMELINE")
			return
		}
		plan := render.CompilePlan(timeline)

		filename := fmt.Sprintf("output_%d_%s.mp4", time.Now().Unix(), uuid.NewString()[:8])
		locator, outPath, err := cfg.Store.RenderOutput(projectID, filename)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if err := cfg.Transcoder.Render(r.Context(), plan, cfg.Store.Resolve(p.VideoPath), outPath); err != nil {
			cfg.Logger.Error("render failed", "project_id", projectID, "error", err)
			WriteError(w, http.StatusBadGateway, "rendering failed", "RENDER_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, RenderResponse{OutputVideo: locator})
	}
}

func downloadRenderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")
		filename := chi.URLParam(r, "filename")
		if strings.Contains(filename, "/") || strings.Contains(filename, "..") {
			WriteError(w, http.StatusBadRequest, "invalid filename", "BAD_REQUEST")
			return
		}
		if _, err := cfg.Service.GetProject(r.Context(), projectID); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		http.ServeFile(w, r, cfg.Store.Resolve(cfg.Store.Locator("renders", projectID, filename)))
	}
}

func agentEditHandler(cfg ServerConfig, suggestions *suggestionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Agent == nil {
			WriteError(w, http.StatusServiceUnavailable, "AI editing is not configured", "AI_DISABLED")
			return
		}

		var req AgentEditRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		projectID := chi.URLParam(r, "id")
		p, err := cfg.Service.GetProject(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		t, err := cfg.Service.GetTranscript(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		result := cfg.Agent.Run(r.Context(), agent.Request{
			ProjectID:   projectID,
			Instruction: req.Instruction,
			VideoPath:   p.VideoPath,
			Segments:    t.Segments,
			Duration:    t.Duration,
		})

		resp := AgentEditResponse{
			Reply:       result.Reply,
			Finished:    result.Finished,
			Outcome:     string(result.Outcome),
			OutputVideo: result.OutputVideo,
		}
		if len(result.Timeline) > 0 {
			resp.SuggestionID = suggestions.Put(projectID, result.Timeline)
			if timeline, err := json.Marshal(result.Timeline); err == nil {
				resp.Timeline = timeline
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// acceptSuggestionHandler commits a proposed timeline as the next EDL
// version via the same strict save path as a manual edit.
func acceptSuggestionHandler(cfg ServerConfig, suggestions *suggestionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AcceptSuggestionRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		projectID := chi.URLParam(r, "id")
		clips, ok := suggestions.Take(projectID, req.SuggestionID)
		if !ok {
			WriteError(w, http.StatusNotFound, "suggestion not found or expired", "NOT_FOUND")
			return
		}

		op := edl.Timeline{Clips: clips, Created: time.Now().UTC()}
		if err := cfg.Service.SaveEDL(r.Context(), projectID, req.Version, []edl.Operation{op}); err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		log, err := cfg.Service.GetEDL(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		resp, err := EDLToResponse(log)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
