package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/llm"
	"github.com/uttgeorge/textcut/internal/transcript"
)

const (
	toolCreateTimeline = "create_timeline"
	toolFinishEditing  = "finish_editing"

	// maxPromptSegments caps how much source material is described to
	// the model in the system prompt.
	maxPromptSegments = 100

	// maxHistoryTurns caps how many prior conversation turns are
	// replayed into a new run.
	maxHistoryTurns = 10
)

// editingTools is the fixed two-tool schema the agent exposes to the
// model: build a timeline, or finish and render.
var editingTools = []llm.Tool{
	{
		Type: "function",
		Function: llm.ToolFunction{
			Name: toolCreateTimeline,
			Description: "Create the editing timeline. Arrange any combination of time ranges " +
				"into a new video, either by referencing a source segment_id or by giving " +
				"explicit start/end times in seconds. Calling this again replaces the timeline.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"clips": {
						"type": "array",
						"description": "Clips in playback order.",
						"items": {
							"type": "object",
							"properties": {
								"segment_id": {"type": "integer", "description": "Source segment to reference; its time range is used when given."},
								"start": {"type": "number", "description": "Start time in seconds; any point in the source."},
								"end": {"type": "number", "description": "End time in seconds."},
								"text": {"type": "string", "description": "Display text for the clip."},
								"repeat": {"type": "integer", "description": "Play count, default 1."},
								"speed": {"type": "number", "description": "Playback speed, default 1.0."}
							},
							"required": []
						}
					}
				},
				"required": ["clips"]
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        toolFinishEditing,
			Description: "Finish editing and render the output video. Call once the timeline is complete.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"summary": {"type": "string", "description": "Summary of the edit."}
				},
				"required": ["summary"]
			}`),
		},
	},
}

type createTimelineArgs struct {
	Clips []edl.Clip `json:"clips"`
}

type finishEditingArgs struct {
	Summary string `json:"summary"`
}

// systemPrompt describes the source material and editing rules. The
// model sees at most the first maxPromptSegments segments.
func systemPrompt(segments []transcript.Segment, totalDuration float64) string {
	type promptSegment struct {
		ID       int     `json:"id"`
		Start    float64 `json:"start"`
		End      float64 `json:"end"`
		Duration float64 `json:"duration"`
		Text     string  `json:"text"`
	}

	described := segments
	if len(described) > maxPromptSegments {
		described = described[:maxPromptSegments]
	}

	info := make([]promptSegment, 0, len(described))
	for _, s := range described {
		info = append(info, promptSegment{
			ID:       s.ID,
			Start:    round2(s.Start),
			End:      round2(s.End),
			Duration: round2(s.End - s.Start),
			Text:     s.Text,
		})
	}
	infoJSON, _ := json.MarshalIndent(info, "", "  ")

	var b strings.Builder
	b.WriteString("You are a professional video editing assistant.\n\n")
	b.WriteString("## Core concepts\n")
	b.WriteString("- Source material: the original video's transcribed segments, each with a stable id, time range, and text. Editing never modifies the source.\n")
	b.WriteString("- Timeline: the edit you create; an ordered list of time ranges selected from the source.\n\n")
	b.WriteString("## Your task\n")
	b.WriteString("Analyse the source material and build a timeline matching the user's request. You may select any time range (not only segment boundaries), combine ranges, repeat a range, or change playback speed.\n\n")
	fmt.Fprintf(&b, "## Source material\n- Total duration: %.1f seconds\n- Segments: %d\n\n", totalDuration, len(segments))
	fmt.Fprintf(&b, "## Segments (reference; any time range may be selected)\n```json\n%s\n```\n\n", infoJSON)
	b.WriteString("## Tools\n")
	b.WriteString("1. create_timeline: build the timeline; reference segments by segment_id or give explicit start/end seconds; repeat and speed are optional.\n")
	b.WriteString("2. finish_editing: render the finished timeline to a video.\n\n")
	b.WriteString("## Rules\n")
	b.WriteString("1. Act directly; do not ask for confirmation.\n")
	b.WriteString("2. Choose clips by meaning, never at random.\n")
	b.WriteString("3. Clips play in the order listed.\n")
	b.WriteString("4. Times may be fractional seconds (e.g. 10.5).\n")
	return b.String()
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
