package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uttgeorge/textcut/internal/agent"
	"github.com/uttgeorge/textcut/internal/db"
	"github.com/uttgeorge/textcut/internal/llm"
	"github.com/uttgeorge/textcut/internal/project"
	"github.com/uttgeorge/textcut/internal/render"
	"github.com/uttgeorge/textcut/internal/store"
	"github.com/uttgeorge/textcut/internal/transcript"
)

func testServerConfig(t *testing.T) ServerConfig {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	repo := project.NewRepository(database.Conn())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ServerConfig{
		Service:    project.NewService(repo, logger),
		Repository: repo,
		Store:      st,
		Logger:     logger,
		StartTime:  time.Now(),
	}
}

func createReadyProject(t *testing.T, cfg ServerConfig) string {
	t.Helper()
	ctx := context.Background()

	p, err := cfg.Service.CreateProject(ctx, "Demo")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	tr := &transcript.Transcript{
		Duration: 10,
		Segments: []transcript.Segment{
			{ID: 1, Start: 0, End: 2, Text: "hello"},
			{ID: 2, Start: 5, End: 8, Text: "world"},
		},
	}
	if err := cfg.Service.AttachTranscript(ctx, p.ID, "storage/uploads/v.mp4", tr, 30); err != nil {
		t.Fatalf("AttachTranscript() error = %v", err)
	}
	return p.ID
}

func doRequest(router *chi.Mux, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return body
}

func TestHealthHandler(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestCreateAndGetProject(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodPost, "/projects", CreateProjectRequest{Name: "My Cut"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("created project has no id")
	}

	rr = doRequest(router, http.MethodGet, "/projects/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rr.Code)
	}

	rr = doRequest(router, http.MethodGet, "/projects/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing project status = %d, want 404", rr.Code)
	}
}

func TestAttachTranscript(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodPost, "/projects", CreateProjectRequest{Name: "Raw"})
	id, _ := decodeJSONBody(t, rr)["id"].(string)

	req := AttachTranscriptRequest{
		VideoPath: "storage/uploads/raw.mp4",
		Language:  "en",
		Segments: []transcript.Segment{
			{ID: 1, Start: 0, End: 2, Text: "hello"},
			{ID: 2, Start: 5, End: 8, Text: "world"},
		},
	}
	rr = doRequest(router, http.MethodPut, "/projects/"+id+"/transcript", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("attach status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ready" {
		t.Errorf("status = %v, want ready", body["status"])
	}
	// No prober configured: duration falls back to the last segment end.
	if d, _ := body["duration"].(float64); d != 8 {
		t.Errorf("duration = %v, want 8", body["duration"])
	}

	rr = doRequest(router, http.MethodGet, "/projects/"+id+"/transcript", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get transcript status = %d, want 200", rr.Code)
	}
}

func TestCreateProject_ValidationError(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(router, http.MethodPost, "/projects", map[string]string{"name": ""})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestEDLSaveAndConflict(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	ops := json.RawMessage(`[{"type":"delete_segments","segment_ids":[2],"created_at":"2026-08-30T00:00:00Z"}]`)

	rr := doRequest(router, http.MethodPut, "/projects/"+id+"/edl", SaveEDLRequest{Version: 1, Operations: ops})
	if rr.Code != http.StatusOK {
		t.Fatalf("save v1 status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}

	// Same version again: optimistic concurrency rejects it.
	rr = doRequest(router, http.MethodPut, "/projects/"+id+"/edl", SaveEDLRequest{Version: 1, Operations: ops})
	if rr.Code != http.StatusConflict {
		t.Errorf("save v1 again status = %d, want 409", rr.Code)
	}

	// Unknown segment id: semantic validation failure.
	bad := json.RawMessage(`[{"type":"delete_segments","segment_ids":[99],"created_at":"2026-08-30T00:00:00Z"}]`)
	rr = doRequest(router, http.MethodPut, "/projects/"+id+"/edl", SaveEDLRequest{Version: 2, Operations: bad})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown segment status = %d, want 422", rr.Code)
	}

	// Unknown operation type: envelope validation failure.
	unknown := json.RawMessage(`[{"type":"explode","created_at":"2026-08-30T00:00:00Z"}]`)
	rr = doRequest(router, http.MethodPut, "/projects/"+id+"/edl", SaveEDLRequest{Version: 2, Operations: unknown})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown op status = %d, want 422", rr.Code)
	}

	rr = doRequest(router, http.MethodGet, "/projects/"+id+"/edl", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get edl status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if v, _ := body["version"].(float64); v != 1 {
		t.Errorf("version = %v, want 1", body["version"])
	}
}

func TestGetEDL_EmptyProject(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	rr := doRequest(router, http.MethodGet, "/projects/"+id+"/edl", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if v, _ := body["version"].(float64); v != 0 {
		t.Errorf("version = %v, want 0", body["version"])
	}
}

func TestExportLifecycleEndpoints(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	rr := doRequest(router, http.MethodPost, "/projects/"+id+"/exports", CreateExportRequest{Format: "edl"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("create export status = %d, want 202 (%s)", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	exportID, _ := body["id"].(string)

	rr = doRequest(router, http.MethodGet, "/exports/"+exportID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get export status = %d, want 200", rr.Code)
	}

	// Pending export has no artifact yet.
	rr = doRequest(router, http.MethodGet, "/exports/"+exportID+"/download", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("download pending status = %d, want 409", rr.Code)
	}

	rr = doRequest(router, http.MethodPost, "/projects/"+id+"/exports", CreateExportRequest{Format: "mp4"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unsupported format status = %d, want 400", rr.Code)
	}

	rr = doRequest(router, http.MethodGet, "/projects/"+id+"/exports", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list exports status = %d, want 200", rr.Code)
	}
}

func TestAgentEndpoint_Disabled(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	rr := doRequest(router, http.MethodPost, "/projects/"+id+"/agent", AgentEditRequest{Instruction: "cut it down"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

// fixedClient always proposes the same timeline, then finishes.
type fixedClient struct {
	calls int
}

func (c *fixedClient) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	c.calls++
	var call llm.ToolCall
	if c.calls == 1 {
		call = llm.ToolCall{
			ID:   "t1",
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      "create_timeline",
				Arguments: `{"clips":[{"segment_id":1}]}`,
			},
		}
	} else {
		call = llm.ToolCall{
			ID:   "t2",
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      "finish_editing",
				Arguments: `{"summary":"kept the greeting"}`,
			},
		}
	}
	return &llm.ChatResponse{Choices: []llm.Choice{{
		Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
	}}}, nil
}

func TestAgentEndpoint_SuggestAndAccept(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.Agent = agent.New(agent.Config{
		Client:     &fixedClient{},
		Transcoder: &render.StubTranscoder{},
		Store:      cfg.Store,
		Model:      "test-model",
		Logger:     cfg.Logger,
	})
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	rr := doRequest(router, http.MethodPost, "/projects/"+id+"/agent", AgentEditRequest{Instruction: "keep the greeting"})
	if rr.Code != http.StatusOK {
		t.Fatalf("agent status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["finished"] != true {
		t.Errorf("finished = %v, want true", body["finished"])
	}
	suggestionID, _ := body["suggestion_id"].(string)
	if suggestionID == "" {
		t.Fatal("suggestion_id missing")
	}

	rr = doRequest(router, http.MethodPost, "/projects/"+id+"/agent/accept",
		AcceptSuggestionRequest{SuggestionID: suggestionID, Version: 1})
	if rr.Code != http.StatusOK {
		t.Fatalf("accept status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	accepted := decodeJSONBody(t, rr)
	if v, _ := accepted["version"].(float64); v != 1 {
		t.Errorf("accepted version = %v, want 1", accepted["version"])
	}

	// A suggestion is single-use.
	rr = doRequest(router, http.MethodPost, "/projects/"+id+"/agent/accept",
		AcceptSuggestionRequest{SuggestionID: suggestionID, Version: 2})
	if rr.Code != http.StatusNotFound {
		t.Errorf("reuse status = %d, want 404", rr.Code)
	}
}

func TestRenderProject_UsesSavedTimeline(t *testing.T) {
	cfg := testServerConfig(t)
	stub := &render.StubTranscoder{}
	cfg.Transcoder = stub
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	// A delete op followed by a timeline op: the timeline wins.
	ops := json.RawMessage(`[
		{"type":"delete_segments","segment_ids":[2],"created_at":"2026-08-30T00:00:00Z"},
		{"type":"timeline","clips":[{"segment_id":2},{"segment_id":1,"repeat":2}],"created_at":"2026-08-30T00:01:00Z"}
	]`)
	rr := doRequest(router, http.MethodPut, "/projects/"+id+"/edl", SaveEDLRequest{Version: 1, Operations: ops})
	if rr.Code != http.StatusOK {
		t.Fatalf("save edl status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}

	rr = doRequest(router, http.MethodPost, "/projects/"+id+"/render", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("render status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	out, _ := body["output_video"].(string)
	if out == "" || !bytes.HasPrefix([]byte(out), []byte("storage/renders/"+id+"/output_")) {
		t.Errorf("output_video = %q, want storage/renders/%s/output_ prefix", out, id)
	}

	if len(stub.Calls) != 1 {
		t.Fatalf("transcoder calls = %d, want 1", len(stub.Calls))
	}
	want := []render.Instance{
		{Start: 5, End: 8, Speed: 1},
		{Start: 0, End: 2, Speed: 1},
		{Start: 0, End: 2, Speed: 1},
	}
	got := stub.Calls[0].Instances
	if len(got) != len(want) {
		t.Fatalf("instances = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instance[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRenderProject_KeptRangesFallback(t *testing.T) {
	cfg := testServerConfig(t)
	stub := &render.StubTranscoder{}
	cfg.Transcoder = stub
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	ops := json.RawMessage(`[{"type":"delete_segments","segment_ids":[2],"created_at":"2026-08-30T00:00:00Z"}]`)
	rr := doRequest(router, http.MethodPut, "/projects/"+id+"/edl", SaveEDLRequest{Version: 1, Operations: ops})
	if rr.Code != http.StatusOK {
		t.Fatalf("save edl status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}

	rr = doRequest(router, http.MethodPost, "/projects/"+id+"/render", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("render status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if len(stub.Calls) != 1 {
		t.Fatalf("transcoder calls = %d, want 1", len(stub.Calls))
	}
	// Segment 2 (5-8) deleted out of a 10s source: 0-5 and 8-10 remain.
	want := []render.Instance{
		{Start: 0, End: 5, Speed: 1},
		{Start: 8, End: 10, Speed: 1},
	}
	got := stub.Calls[0].Instances
	if len(got) != len(want) {
		t.Fatalf("instances = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instance[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRenderProject_Disabled(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	rr := doRequest(router, http.MethodPost, "/projects/"+id+"/render", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestDownloadRender_RejectsTraversal(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	id := createReadyProject(t, cfg)

	rr := doRequest(router, http.MethodGet, fmt.Sprintf("/projects/%s/renders/%s", id, "a..b.mp4"), nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
