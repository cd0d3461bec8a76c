// Package timecode converts between fractional seconds and the
// HH:MM:SS:FF timecode representation used by EDL interchange formats.
//
// Every component is truncated, never rounded, and each value is
// converted independently. Truncation error therefore does not
// accumulate across a sequence of timecodes, but a non-frame-aligned
// input does not survive a round trip exactly: it comes back truncated
// to the nearest 1/frameRate.
package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTimecode = errors.New("invalid timecode format")

// FromSeconds formats seconds as HH:MM:SS:FF at the given frame rate.
// The frame component is in 0..frameRate-1.
func FromSeconds(seconds float64, frameRate int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds / 3600)
	minutes := int(seconds/60) % 60
	secs := int(seconds) % 60
	frames := int((seconds - float64(int(seconds))) * float64(frameRate))
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}

// ToSeconds parses an HH:MM:SS:FF timecode back into seconds.
func ToSeconds(tc string, frameRate int) (float64, error) {
	parts := strings.Split(tc, ":")
	if len(parts) != 4 {
		return 0, ErrInvalidTimecode
	}

	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, ErrInvalidTimecode
		}
		vals[i] = v
	}

	if vals[1] > 59 || vals[2] > 59 {
		return 0, ErrInvalidTimecode
	}
	if frameRate > 0 && vals[3] >= frameRate {
		return 0, ErrInvalidTimecode
	}

	seconds := float64(vals[0])*3600 + float64(vals[1])*60 + float64(vals[2])
	if frameRate > 0 {
		seconds += float64(vals[3]) / float64(frameRate)
	}
	return seconds, nil
}
