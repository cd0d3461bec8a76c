package edl

import (
	"sort"

	"github.com/uttgeorge/textcut/internal/transcript"
)

// ResolveDeletedRanges turns a sequence of operations into a sorted,
// non-overlapping list of deleted time ranges. Segment and word deletes
// look up their spans in the transcript; ids not present in segments
// are ignored here (the direct save path validates them separately,
// the agent path stays permissive). Silence deletes contribute their
// listed ranges verbatim. Timeline operations carry keep semantics and
// contribute no deleted ranges.
func ResolveDeletedRanges(segments []transcript.Segment, ops []Operation) []TimeRange {
	segMap := transcript.SegmentMap(segments)

	var deleted []TimeRange
	for _, op := range ops {
		switch o := op.(type) {
		case DeleteSegments:
			for _, id := range o.SegmentIDs {
				if seg, ok := segMap[id]; ok {
					deleted = append(deleted, TimeRange{Start: seg.Start, End: seg.End})
				}
			}
		case DeleteWords:
			for _, item := range o.Items {
				seg, ok := segMap[item.SegmentID]
				if !ok {
					continue
				}
				for _, idx := range item.WordIndices {
					if idx >= 0 && idx < len(seg.Words) {
						w := seg.Words[idx]
						deleted = append(deleted, TimeRange{Start: w.Start, End: w.End})
					}
				}
			}
		case DeleteSilences:
			deleted = append(deleted, o.TimeRanges...)
		case Timeline:
			// keep semantics, handled by the render path
		}
	}

	return MergeRanges(deleted)
}

// MergeRanges sorts ranges by start and merges overlapping or touching
// neighbours in one sweep. Merging an already-merged list returns an
// equal list.
func MergeRanges(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// KeptRanges returns the ordered complement of the deleted ranges
// within [0, totalDuration]. Deleted ranges touching 0 or the total
// duration remove the lead or tail exactly, producing no empty range.
func KeptRanges(totalDuration float64, deleted []TimeRange) []TimeRange {
	if len(deleted) == 0 {
		return []TimeRange{{Start: 0, End: totalDuration}}
	}

	var kept []TimeRange
	current := 0.0
	for _, d := range MergeRanges(deleted) {
		if d.Start > current {
			kept = append(kept, TimeRange{Start: current, End: d.Start})
		}
		if d.End > current {
			current = d.End
		}
	}
	if current < totalDuration {
		kept = append(kept, TimeRange{Start: current, End: totalDuration})
	}
	return kept
}
