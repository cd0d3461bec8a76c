package export

import (
	"fmt"
	"strings"

	"github.com/uttgeorge/textcut/internal/timecode"
)

// GenerateEDL builds a CMX3600-style edit decision list. Each kept
// range becomes one video cut ("C") event on reel 001: source in/out
// are the range's own timecodes, record in/out accumulate a running
// timeline position starting at zero. Only single-reel video cuts are
// produced; no audio-only or dissolve events.
func GenerateEDL(job Job) []byte {
	lines := []string{
		fmt.Sprintf("TITLE: %s", job.ProjectName),
		"FCM: NON-DROP FRAME",
		"",
	}

	recordPos := 0.0
	for i, r := range job.KeptRanges {
		srcIn := timecode.FromSeconds(r.Start, job.FrameRate)
		srcOut := timecode.FromSeconds(r.End, job.FrameRate)
		recIn := timecode.FromSeconds(recordPos, job.FrameRate)
		recOut := timecode.FromSeconds(recordPos+r.Duration(), job.FrameRate)

		lines = append(lines, fmt.Sprintf("%03d  001      V     C        %s %s %s %s",
			i+1, srcIn, srcOut, recIn, recOut))

		recordPos += r.Duration()
	}

	return []byte(strings.Join(lines, "\n"))
}
