// Package transcript defines the transcript data model consumed by the
// editing core: speech segments with word-level timing, and the silences
// derived from the gaps around them. Transcripts are produced once per
// media upload by an external speech pipeline and are read-only inputs.
package transcript

import "sort"

// DefaultMinSilence is the minimum gap treated as a silence, in seconds.
const DefaultMinSilence = 0.5

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type Segment struct {
	ID      int     `json:"id"`
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Words   []Word  `json:"words"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

type Silence struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

type Transcript struct {
	ProjectID string    `json:"project_id"`
	Duration  float64   `json:"duration"`
	Language  string    `json:"language"`
	Segments  []Segment `json:"segments"`
	Silences  []Silence `json:"silences"`
}

// SegmentMap indexes segments by id. Segment ids are unique and stable
// for the lifetime of one transcript.
func SegmentMap(segments []Segment) map[int]Segment {
	m := make(map[int]Segment, len(segments))
	for _, s := range segments {
		m[s.ID] = s
	}
	return m
}

// DetectSilences finds the gaps before the first segment, between
// segments, and after the last one, keeping only gaps of at least
// minDuration seconds.
func DetectSilences(segments []Segment, duration, minDuration float64) []Silence {
	if minDuration <= 0 {
		minDuration = DefaultMinSilence
	}
	if len(segments) == 0 {
		return nil
	}

	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var silences []Silence

	if first := ordered[0].Start; first >= minDuration {
		silences = append(silences, Silence{Start: 0, End: first, Duration: first})
	}

	for i := 0; i < len(ordered)-1; i++ {
		gap := ordered[i+1].Start - ordered[i].End
		if gap >= minDuration {
			silences = append(silences, Silence{
				Start:    ordered[i].End,
				End:      ordered[i+1].Start,
				Duration: gap,
			})
		}
	}

	if last := ordered[len(ordered)-1].End; duration-last >= minDuration {
		silences = append(silences, Silence{
			Start:    last,
			End:      duration,
			Duration: duration - last,
		})
	}

	return silences
}
