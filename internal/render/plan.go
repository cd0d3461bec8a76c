// Package render compiles an explicit clip timeline into a transcoder
// render plan and drives the external ffmpeg process that assembles the
// output. The compiler works on keep semantics: the timeline says what
// to play and in which order, never what to remove.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/uttgeorge/textcut/internal/edl"
	"github.com/uttgeorge/textcut/internal/transcript"
)

// BuildTimeline resolves proposed clips against the known segments.
// A clip referencing a known segment takes that segment's time range
// and text; a clip referencing an unknown segment is dropped; a clip
// with only start/end is accepted as a custom range when end > start.
func BuildTimeline(proposed []edl.Clip, segments []transcript.Segment) []edl.Clip {
	segMap := transcript.SegmentMap(segments)

	var timeline []edl.Clip
	for _, clip := range proposed {
		if clip.SegmentID != nil {
			seg, ok := segMap[*clip.SegmentID]
			if !ok {
				continue
			}
			id := seg.ID
			timeline = append(timeline, edl.Clip{
				SegmentID: &id,
				Start:     seg.Start,
				End:       seg.End,
				Text:      seg.Text,
				Repeat:    clip.RepeatCount(),
				Speed:     clip.SpeedFactor(),
			})
			continue
		}

		if clip.End > clip.Start {
			text := clip.Text
			if text == "" {
				text = fmt.Sprintf("%.1fs - %.1fs", clip.Start, clip.End)
			}
			timeline = append(timeline, edl.Clip{
				Start:  clip.Start,
				End:    clip.End,
				Text:   text,
				Repeat: clip.RepeatCount(),
				Speed:  clip.SpeedFactor(),
			})
		}
	}
	return timeline
}

// TotalDuration is the output running time of a timeline: each clip
// contributes (end-start) * repeat / speed seconds.
func TotalDuration(timeline []edl.Clip) float64 {
	var total float64
	for _, c := range timeline {
		total += (c.End - c.Start) * float64(c.RepeatCount()) / c.SpeedFactor()
	}
	return total
}

// Instance is one trim+speed unit of the render plan. Repeats of a
// clip become separate instances so the transcoder can treat every
// instance independently.
type Instance struct {
	Start float64
	End   float64
	Speed float64
}

// Plan is the compiled, transcoder-ready description of a timeline.
type Plan struct {
	Instances []Instance
}

// CompilePlan expands each clip to its repeat instances, preserving
// clip order with each clip's repeats contiguous.
func CompilePlan(timeline []edl.Clip) Plan {
	var plan Plan
	for _, clip := range timeline {
		for i := 0; i < clip.RepeatCount(); i++ {
			plan.Instances = append(plan.Instances, Instance{
				Start: clip.Start,
				End:   clip.End,
				Speed: clip.SpeedFactor(),
			})
		}
	}
	return plan
}

// FilterComplex renders the plan as an ffmpeg filter_complex graph.
// Each instance trims video and audio to its range, resets timestamps
// at the trim boundary, and applies the speed transform to both
// streams (inverse factor on video PTS, direct factor on audio tempo)
// so they stay synchronized; all instances concatenate into one
// video+audio pair labelled [outv]/[outa].
func (p Plan) FilterComplex() string {
	var b strings.Builder
	var concatInputs []string

	for idx, inst := range p.Instances {
		fmt.Fprintf(&b, "[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d];",
			ffnum(inst.Start), ffnum(inst.End), idx)
		fmt.Fprintf(&b, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];",
			ffnum(inst.Start), ffnum(inst.End), idx)

		if inst.Speed != 1.0 {
			fmt.Fprintf(&b, "[v%d]setpts=%s*PTS[v%ds];", idx, ffnum(1/inst.Speed), idx)
			fmt.Fprintf(&b, "[a%d]atempo=%s[a%ds];", idx, ffnum(inst.Speed), idx)
			concatInputs = append(concatInputs, fmt.Sprintf("[v%ds][a%ds]", idx, idx))
		} else {
			concatInputs = append(concatInputs, fmt.Sprintf("[v%d][a%d]", idx, idx))
		}
	}

	fmt.Fprintf(&b, "%sconcat=n=%d:v=1:a=1[outv][outa]",
		strings.Join(concatInputs, ""), len(p.Instances))
	return b.String()
}

// ffnum formats a float the way ffmpeg filter arguments expect:
// shortest exact decimal, no exponent for ordinary magnitudes.
func ffnum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
