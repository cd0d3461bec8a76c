// Package agent runs the bounded tool-calling loop that turns a
// natural-language editing instruction into a clip timeline and,
// when the model finishes, a rendered output video.
//
// The loop is explicit: one model call per iteration, one mutable
// current timeline, one iteration counter. Exactly one timeline is
// current at a time; create_timeline replaces it wholesale. The loop
// never retries a failed model call or render itself; retry policy
// belongs to whatever schedules the invocation.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/llm"
	"github.com/uttgeorge/textcut/internal/render"
	"github.com/uttgeorge/textcut/internal/store"
	"github.com/uttgeorge/textcut/internal/transcript"
)

// MaxIterations is the hard cap on model calls per invocation.
const MaxIterations = 10

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeReplied: the model answered in text without requesting a
	// tool; no render was attempted.
	OutcomeReplied Outcome = "replied"
	// OutcomeRendered: finish_editing succeeded and an output video
	// exists.
	OutcomeRendered Outcome = "rendered"
	// OutcomeRenderFailed: the transcoder exited non-zero; no output
	// artifact is valid.
	OutcomeRenderFailed Outcome = "render_failed"
	// OutcomeMaxIterations: the iteration cap was reached without a
	// terminal tool call.
	OutcomeMaxIterations Outcome = "max_iterations"
	// OutcomeCancelled: the caller's context was cancelled mid-loop.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeError: a model call failed or tool arguments were
	// malformed; the invocation aborted.
	OutcomeError Outcome = "error"
)

// Result crosses the agent's public boundary; raw internal errors do
// not.
type Result struct {
	Reply       string
	Timeline    []edl.Clip
	OutputVideo string
	Finished    bool
	Outcome     Outcome
	Iterations  int
}

// Request is one editing invocation for one project.
type Request struct {
	ProjectID   string
	Instruction string
	VideoPath   string // logical media locator of the source
	Segments    []transcript.Segment
	Duration    float64
	History     []llm.Message // prior conversation turns, oldest first
}

type Agent struct {
	client     llm.Client
	transcoder render.Transcoder
	store      *store.Store
	logger     *slog.Logger

	model       string
	temperature float64
	maxTokens   int
}

type Config struct {
	Client     llm.Client
	Transcoder render.Transcoder
	Store      *store.Store
	Logger     *slog.Logger

	Model       string
	Temperature float64
	MaxTokens   int
}

func New(cfg Config) *Agent {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &Agent{
		client:      cfg.Client,
		transcoder:  cfg.Transcoder,
		store:       cfg.Store,
		logger:      cfg.Logger,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Run executes the editing loop until a terminal outcome. It honors
// ctx cancellation between and during model/render calls.
func (a *Agent) Run(ctx context.Context, req Request) Result {
	logger := a.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("project_id", req.ProjectID)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(req.Segments, req.Duration)},
	}
	history := req.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Instruction})

	var timeline []edl.Clip

	for iteration := 1; iteration <= MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return Result{
				Reply:      "editing cancelled",
				Timeline:   timeline,
				Outcome:    OutcomeCancelled,
				Iterations: iteration - 1,
			}
		}

		logger.Debug("agent iteration", "iteration", iteration)

		resp, err := a.client.ChatCompletion(ctx, llm.ChatRequest{
			Model:       a.model,
			Messages:    messages,
			Tools:       editingTools,
			ToolChoice:  "auto",
			Temperature: a.temperature,
			MaxTokens:   a.maxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return Result{
					Reply:      "editing cancelled",
					Timeline:   timeline,
					Outcome:    OutcomeCancelled,
					Iterations: iteration,
				}
			}
			logger.Error("model call failed", "iteration", iteration, "error", err)
			return Result{
				Reply:      "the editing assistant is unavailable right now",
				Timeline:   timeline,
				Outcome:    OutcomeError,
				Iterations: iteration,
			}
		}

		assistant := resp.First()

		// No tool requested: the model's text is the final reply.
		if len(assistant.ToolCalls) == 0 {
			reply := assistant.Content
			if reply == "" {
				reply = "done"
			}
			return Result{
				Reply:      reply,
				Timeline:   timeline,
				Outcome:    OutcomeReplied,
				Iterations: iteration,
			}
		}

		var toolResults []llm.Message
		for _, call := range assistant.ToolCalls {
			switch call.Function.Name {
			case toolCreateTimeline:
				var args createTimelineArgs
				if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
					logger.Error("malformed create_timeline arguments", "error", err)
					return Result{
						Reply:      "the editing assistant produced an invalid timeline request",
						Timeline:   timeline,
						Outcome:    OutcomeError,
						Iterations: iteration,
					}
				}

				timeline = render.BuildTimeline(args.Clips, req.Segments)
				logger.Info("timeline created", "clips", len(timeline))
				toolResults = append(toolResults, toolResult(call.ID, map[string]any{
					"success":         true,
					"timeline_length": len(timeline),
					"total_duration":  render.TotalDuration(timeline),
					"message":         fmt.Sprintf("timeline created with %d clips", len(timeline)),
				}))

			case toolFinishEditing:
				var args finishEditingArgs
				if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
					logger.Error("malformed finish_editing arguments", "error", err)
					return Result{
						Reply:      "the editing assistant produced an invalid finish request",
						Timeline:   timeline,
						Outcome:    OutcomeError,
						Iterations: iteration,
					}
				}

				if len(timeline) == 0 {
					// Not terminal: tell the model and keep looping.
					toolResults = append(toolResults, toolResult(call.ID, map[string]any{
						"success": false,
						"error":   "the timeline is empty; create a timeline first",
					}))
					continue
				}

				locator, err := a.renderTimeline(ctx, req, timeline)
				if err != nil {
					if ctx.Err() != nil {
						return Result{
							Reply:      "editing cancelled",
							Timeline:   timeline,
							Outcome:    OutcomeCancelled,
							Iterations: iteration,
						}
					}
					logger.Error("render failed", "error", err)
					return Result{
						Reply:      "rendering the edited video failed",
						Timeline:   timeline,
						Outcome:    OutcomeRenderFailed,
						Iterations: iteration,
					}
				}

				summary := args.Summary
				if summary == "" {
					summary = "editing complete"
				}
				logger.Info("render finished", "output", locator)
				return Result{
					Reply:       summary + "\n\nThe video has been rendered.",
					Timeline:    timeline,
					OutputVideo: locator,
					Finished:    true,
					Outcome:     OutcomeRendered,
					Iterations:  iteration,
				}

			default:
				toolResults = append(toolResults, toolResult(call.ID, map[string]any{
					"error": fmt.Sprintf("unknown tool: %s", call.Function.Name),
				}))
			}
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   assistant.Content,
			ToolCalls: assistant.ToolCalls,
		})
		messages = append(messages, toolResults...)
	}

	logger.Warn("agent reached iteration cap")
	return Result{
		Reply:      "reached the maximum number of editing iterations",
		Timeline:   timeline,
		Outcome:    OutcomeMaxIterations,
		Iterations: MaxIterations,
	}
}

// renderTimeline compiles the current timeline and hands it to the
// transcoder. Output names embed a timestamp and uuid so concurrent
// renders of the same project cannot collide.
func (a *Agent) renderTimeline(ctx context.Context, req Request, timeline []edl.Clip) (string, error) {
	plan := render.CompilePlan(timeline)

	filename := fmt.Sprintf("output_%d_%s.mp4", time.Now().Unix(), uuid.NewString()[:8])
	locator, outPath, err := a.store.RenderOutput(req.ProjectID, filename)
	if err != nil {
		return "", err
	}

	sourcePath := a.store.Resolve(req.VideoPath)
	if err := a.transcoder.Render(ctx, plan, sourcePath, outPath); err != nil {
		return "", err
	}
	return locator, nil
}

func toolResult(callID string, payload map[string]any) llm.Message {
	body, _ := json.Marshal(payload)
	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: callID,
		Content:    string(body),
	}
}
