package export

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// FCPXML uses rational/seconds-valued time attributes with an "s"
// suffix. Values are emitted directly from the kept range's seconds
// with no frame rounding at the XML level.

type fcpxmlDoc struct {
	XMLName   xml.Name     `xml:"fcpxml"`
	Version   string       `xml:"version,attr"`
	Resources fcpResources `xml:"resources"`
	Library   fcpLibrary   `xml:"library"`
}

type fcpResources struct {
	Format fcpFormat `xml:"format"`
	Asset  fcpAsset  `xml:"asset"`
}

type fcpFormat struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr"`
	FrameDuration string `xml:"frameDuration,attr"`
	Width         string `xml:"width,attr"`
	Height        string `xml:"height,attr"`
}

type fcpAsset struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Src      string `xml:"src,attr"`
	Duration string `xml:"duration,attr"`
	HasVideo string `xml:"hasVideo,attr"`
	HasAudio string `xml:"hasAudio,attr"`
}

type fcpLibrary struct {
	Event fcpEvent `xml:"event"`
}

type fcpEvent struct {
	Name    string     `xml:"name,attr"`
	Project fcpProject `xml:"project"`
}

type fcpProject struct {
	Name     string      `xml:"name,attr"`
	Sequence fcpSequence `xml:"sequence"`
}

type fcpSequence struct {
	Format string   `xml:"format,attr"`
	Spine  fcpSpine `xml:"spine"`
}

type fcpSpine struct {
	Clips []fcpClip `xml:"clip"`
}

type fcpClip struct {
	Name     string   `xml:"name,attr"`
	Offset   string   `xml:"offset,attr"`
	Duration string   `xml:"duration,attr"`
	Start    string   `xml:"start,attr"`
	Video    fcpVideo `xml:"video"`
}

type fcpVideo struct {
	Ref      string `xml:"ref,attr"`
	Offset   string `xml:"offset,attr"`
	Duration string `xml:"duration,attr"`
}

// GenerateFCPXML builds a Final Cut Pro XML 1.10 document with one
// asset resource and one spine clip per kept range.
func GenerateFCPXML(job Job) ([]byte, error) {
	doc := fcpxmlDoc{
		Version: "1.10",
		Resources: fcpResources{
			Format: fcpFormat{
				ID:            "r1",
				Name:          fmt.Sprintf("FFVideoFormat%dp", job.FrameRate),
				FrameDuration: fmt.Sprintf("1/%ds", job.FrameRate),
				Width:         "1920",
				Height:        "1080",
			},
			Asset: fcpAsset{
				ID:       "r2",
				Name:     job.ProjectName,
				Src:      job.VideoPath,
				Duration: seconds(job.Duration),
				HasVideo: "1",
				HasAudio: "1",
			},
		},
		Library: fcpLibrary{
			Event: fcpEvent{
				Name: job.ProjectName,
				Project: fcpProject{
					Name: job.ProjectName,
					Sequence: fcpSequence{
						Format: "r1",
					},
				},
			},
		},
	}

	spine := &doc.Library.Event.Project.Sequence.Spine
	for i, r := range job.KeptRanges {
		spine.Clips = append(spine.Clips, fcpClip{
			Name:     fmt.Sprintf("Clip %d", i+1),
			Offset:   seconds(r.Start),
			Duration: seconds(r.Duration()),
			Start:    seconds(r.Start),
			Video: fcpVideo{
				Ref:      "r2",
				Offset:   seconds(r.Start),
				Duration: seconds(r.Duration()),
			},
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fcpxml: %w", err)
	}

	out := []byte(xml.Header + "<!DOCTYPE fcpxml>\n")
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// seconds formats a seconds value with the FCPXML "s" suffix, keeping
// the shortest exact decimal representation.
func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "s"
}
