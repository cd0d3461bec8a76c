package edl

import (
	"errors"
	"fmt"
	"time"

	"github.com/uttgeorge/textcut/internal/transcript"
)

var (
	ErrVersionConflict  = errors.New("edl version conflict")
	ErrUnknownSegment   = errors.New("operation references unknown segment id")
	ErrUnknownOperation = errors.New("unknown operation type")
)

// Log is one saved version of a project's edit decision list.
// Versions start at 1 and each save appends a new version; operations
// within a version are never edited in place.
type Log struct {
	Version    int
	Operations []Operation
	UpdatedAt  time.Time
}

// CheckNextVersion enforces the optimistic-concurrency rule: a save is
// accepted only when the proposed version is exactly current+1.
func CheckNextVersion(current, proposed int) error {
	if proposed != current+1 {
		return fmt.Errorf("%w: current version is %d, proposed %d", ErrVersionConflict, current, proposed)
	}
	return nil
}

// ValidateOps is the strict counterpart to the permissive range
// algebra: it rejects operations referencing segment or word positions
// that do not exist in the transcript. The direct EDL save path uses
// it; the agent path does not.
func ValidateOps(segments []transcript.Segment, ops []Operation) error {
	segMap := transcript.SegmentMap(segments)

	for _, op := range ops {
		switch o := op.(type) {
		case DeleteSegments:
			for _, id := range o.SegmentIDs {
				if _, ok := segMap[id]; !ok {
					return fmt.Errorf("%w: %d", ErrUnknownSegment, id)
				}
			}
		case DeleteWords:
			for _, item := range o.Items {
				seg, ok := segMap[item.SegmentID]
				if !ok {
					return fmt.Errorf("%w: %d", ErrUnknownSegment, item.SegmentID)
				}
				for _, idx := range item.WordIndices {
					if idx < 0 || idx >= len(seg.Words) {
						return fmt.Errorf("segment %d: word index %d out of range", item.SegmentID, idx)
					}
				}
			}
		case DeleteSilences, Timeline:
			// ranges and clips are validated structurally on decode
		}
	}
	return nil
}

// LatestTimeline returns the clip list of the most recent Timeline
// operation in the log, or nil when the log holds only delete-style
// operations.
func LatestTimeline(ops []Operation) []Clip {
	for i := len(ops) - 1; i >= 0; i-- {
		if tl, ok := ops[i].(Timeline); ok {
			return tl.Clips
		}
	}
	return nil
}
