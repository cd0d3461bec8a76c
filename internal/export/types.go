// Package export serializes a resolved kept-range timeline into
// interchange files for professional editing tools: Final Cut Pro XML,
// Premiere-style XML, and CMX3600 EDL. Every generator is a pure
// function from its job description to file bytes; persistence belongs
// to the caller.
package export

import (
	"errors"
	"fmt"

	"github.com/uttgeorge/textcut/internal/edl"
)

const (
	FormatFCPXML      = "fcpxml"
	FormatPremiereXML = "premiere_xml"
	FormatEDL         = "edl"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Job carries everything a generator needs. KeptRanges must already be
// resolved (sorted, non-overlapping) by the edl package.
type Job struct {
	ProjectName string
	VideoPath   string
	Duration    float64
	KeptRanges  []edl.TimeRange
	FrameRate   int
}

// FileExtension returns the artifact extension for a format, including
// the leading dot.
func FileExtension(format string) string {
	switch format {
	case FormatFCPXML:
		return ".fcpxml"
	case FormatPremiereXML:
		return ".xml"
	case FormatEDL:
		return ".edl"
	default:
		return ""
	}
}

// Generate dispatches to the format-specific generator.
func Generate(format string, job Job) ([]byte, error) {
	if job.FrameRate <= 0 {
		job.FrameRate = 30
	}

	switch format {
	case FormatFCPXML:
		return GenerateFCPXML(job)
	case FormatPremiereXML:
		return GeneratePremiereXML(job)
	case FormatEDL:
		return GenerateEDL(job), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
