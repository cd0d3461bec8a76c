package export

import (
	"encoding/xml"
	"fmt"
)

// Premiere-style xmeml is frame-indexed: clipitem boundaries are frame
// counts computed by truncating seconds * timebase, in contrast to
// FCPXML's seconds-valued fields.

type xmemlDoc struct {
	XMLName  xml.Name      `xml:"xmeml"`
	Version  string        `xml:"version,attr"`
	Sequence xmemlSequence `xml:"sequence"`
}

type xmemlSequence struct {
	Name     string     `xml:"name"`
	Duration int        `xml:"duration"`
	Rate     xmemlRate  `xml:"rate"`
	Media    xmemlMedia `xml:"media"`
}

type xmemlRate struct {
	Timebase int    `xml:"timebase"`
	NTSC     string `xml:"ntsc"`
}

type xmemlMedia struct {
	Video xmemlVideo `xml:"video"`
}

type xmemlVideo struct {
	Track xmemlTrack `xml:"track"`
}

type xmemlTrack struct {
	ClipItems []xmemlClipItem `xml:"clipitem"`
}

type xmemlClipItem struct {
	ID    string    `xml:"id,attr"`
	Name  string    `xml:"name"`
	Start int       `xml:"start"`
	End   int       `xml:"end"`
	In    int       `xml:"in"`
	Out   int       `xml:"out"`
	File  xmemlFile `xml:"file"`
}

type xmemlFile struct {
	ID      string `xml:"id,attr"`
	PathURL string `xml:"pathurl"`
}

// GeneratePremiereXML builds an xmeml version 5 document with one
// video track and one clipitem per kept range.
func GeneratePremiereXML(job Job) ([]byte, error) {
	doc := xmemlDoc{
		Version: "5",
		Sequence: xmemlSequence{
			Name:     job.ProjectName,
			Duration: int(job.Duration * float64(job.FrameRate)),
			Rate: xmemlRate{
				Timebase: job.FrameRate,
				NTSC:     "FALSE",
			},
		},
	}

	track := &doc.Sequence.Media.Video.Track
	for i, r := range job.KeptRanges {
		start := int(r.Start * float64(job.FrameRate))
		end := int(r.End * float64(job.FrameRate))
		track.ClipItems = append(track.ClipItems, xmemlClipItem{
			ID:    fmt.Sprintf("clipitem-%d", i+1),
			Name:  fmt.Sprintf("Clip %d", i+1),
			Start: start,
			End:   end,
			In:    start,
			Out:   end,
			File: xmemlFile{
				ID:      "file-1",
				PathURL: job.VideoPath,
			},
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal premiere xml: %w", err)
	}

	out := []byte(xml.Header)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
