// Package edl models the edit decision list: an append-only, versioned
// sequence of edit operations, and the range algebra that resolves those
// operations into a canonical kept/deleted partition of the source
// timeline. Source media is never mutated; operations only describe
// which time ranges to keep and how to arrange them.
package edl

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeRange is a half-open span of source time in seconds. End is
// always greater than Start for a valid range.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

// Clip is one entry in an explicit playback timeline. When SegmentID is
// set it is the authoritative source of Start/End; explicit values on
// the clip are ignored in that case.
type Clip struct {
	SegmentID *int    `json:"segment_id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text,omitempty"`
	Repeat    int     `json:"repeat,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

// RepeatCount returns the effective repeat count, defaulting to 1.
func (c Clip) RepeatCount() int {
	if c.Repeat < 1 {
		return 1
	}
	return c.Repeat
}

// SpeedFactor returns the effective playback speed, defaulting to 1.0.
func (c Clip) SpeedFactor() float64 {
	if c.Speed <= 0 {
		return 1.0
	}
	return c.Speed
}

// Operation type tags as stored in the JSON envelope.
const (
	TypeDeleteSegments = "delete_segments"
	TypeDeleteWords    = "delete_words"
	TypeDeleteSilences = "delete_silences"
	TypeTimeline       = "timeline"
)

// Operation is the closed set of edit operations. The four concrete
// types below are the only implementations; switches over them handle
// every case without a default "unknown type" branch.
type Operation interface {
	OpType() string
	CreatedAt() time.Time
	isOperation()
}

// DeleteSegments removes whole transcribed segments by id.
type DeleteSegments struct {
	SegmentIDs []int
	Created    time.Time
}

func (o DeleteSegments) OpType() string       { return TypeDeleteSegments }
func (o DeleteSegments) CreatedAt() time.Time { return o.Created }
func (DeleteSegments) isOperation()           {}

// WordSelection names words inside one segment by index.
type WordSelection struct {
	SegmentID   int   `json:"segment_id"`
	WordIndices []int `json:"word_indices"`
}

// DeleteWords removes individual words from segments.
type DeleteWords struct {
	Items   []WordSelection
	Created time.Time
}

func (o DeleteWords) OpType() string       { return TypeDeleteWords }
func (o DeleteWords) CreatedAt() time.Time { return o.Created }
func (DeleteWords) isOperation()           {}

// DeleteSilences removes detected silence ranges at or above a
// threshold. The ranges are stored verbatim.
type DeleteSilences struct {
	Threshold  float64
	TimeRanges []TimeRange
	Created    time.Time
}

func (o DeleteSilences) OpType() string       { return TypeDeleteSilences }
func (o DeleteSilences) CreatedAt() time.Time { return o.Created }
func (DeleteSilences) isOperation()           {}

// Timeline is the full-replacement operation: an explicit ordered clip
// list that supersedes delete-style editing for rendering.
type Timeline struct {
	Clips   []Clip
	Created time.Time
}

func (o Timeline) OpType() string       { return TypeTimeline }
func (o Timeline) CreatedAt() time.Time { return o.Created }
func (Timeline) isOperation()           {}

// envelope is the tagged wire form of an operation.
type envelope struct {
	Type       string          `json:"type"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	SegmentIDs []int           `json:"segment_ids,omitempty"`
	Items      []WordSelection `json:"items,omitempty"`
	Threshold  float64         `json:"threshold,omitempty"`
	TimeRanges []TimeRange     `json:"time_ranges,omitempty"`
	Clips      []Clip          `json:"clips,omitempty"`
}

// MarshalOperations encodes operations into their tagged JSON form.
func MarshalOperations(ops []Operation) ([]byte, error) {
	envs := make([]envelope, 0, len(ops))
	for _, op := range ops {
		env := envelope{Type: op.OpType()}
		if created := op.CreatedAt(); !created.IsZero() {
			t := created.UTC()
			env.CreatedAt = &t
		}
		switch o := op.(type) {
		case DeleteSegments:
			env.SegmentIDs = o.SegmentIDs
		case DeleteWords:
			env.Items = o.Items
		case DeleteSilences:
			env.Threshold = o.Threshold
			env.TimeRanges = o.TimeRanges
		case Timeline:
			env.Clips = o.Clips
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalOperations decodes a tagged JSON operation list. An unknown
// type tag is a validation error, not a silently skipped entry.
func UnmarshalOperations(data []byte) ([]Operation, error) {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}

	ops := make([]Operation, 0, len(envs))
	for i, env := range envs {
		var created time.Time
		if env.CreatedAt != nil {
			created = *env.CreatedAt
		}
		switch env.Type {
		case TypeDeleteSegments:
			ops = append(ops, DeleteSegments{SegmentIDs: env.SegmentIDs, Created: created})
		case TypeDeleteWords:
			ops = append(ops, DeleteWords{Items: env.Items, Created: created})
		case TypeDeleteSilences:
			ops = append(ops, DeleteSilences{Threshold: env.Threshold, TimeRanges: env.TimeRanges, Created: created})
		case TypeTimeline:
			ops = append(ops, Timeline{Clips: env.Clips, Created: created})
		default:
			return nil, fmt.Errorf("operation %d: %w: %q", i, ErrUnknownOperation, env.Type)
		}
	}
	return ops, nil
}
