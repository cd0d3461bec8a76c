package timecode

import (
	"math"
	"testing"
)

func TestFromSeconds(t *testing.T) {
	tests := []struct {
		name      string
		seconds   float64
		frameRate int
		want      string
	}{
		{"zero", 0, 30, "00:00:00:00"},
		{"whole seconds", 5, 30, "00:00:05:00"},
		{"minute boundary", 60, 30, "00:01:00:00"},
		{"hour boundary", 3600, 30, "01:00:00:00"},
		{"fractional truncates", 1.5, 30, "00:00:01:15"},
		{"fraction below one frame", 1.01, 30, "00:00:01:00"},
		{"max frame", 1.999, 30, "00:00:01:29"},
		{"24fps", 2.5, 24, "00:00:02:12"},
		{"mixed", 3725.4, 30, "01:02:05:11"},
		{"negative clamps", -1, 30, "00:00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromSeconds(tt.seconds, tt.frameRate); got != tt.want {
				t.Errorf("FromSeconds(%v, %d) = %s, want %s", tt.seconds, tt.frameRate, got, tt.want)
			}
		})
	}
}

func TestToSeconds(t *testing.T) {
	tests := []struct {
		name      string
		tc        string
		frameRate int
		want      float64
		wantErr   bool
	}{
		{"zero", "00:00:00:00", 30, 0, false},
		{"five seconds", "00:00:05:00", 30, 5, false},
		{"with frames", "00:00:01:15", 30, 1.5, false},
		{"hours", "01:02:05:11", 30, 3725 + 11.0/30.0, false},
		{"too few fields", "00:00:05", 30, 0, true},
		{"non numeric", "00:00:xx:00", 30, 0, true},
		{"minutes overflow", "00:61:00:00", 30, 0, true},
		{"frames overflow", "00:00:00:30", 30, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSeconds(tt.tc, tt.frameRate)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ToSeconds(%q) error = nil, want error", tt.tc)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToSeconds(%q) unexpected error: %v", tt.tc, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ToSeconds(%q) = %v, want %v", tt.tc, got, tt.want)
			}
		})
	}
}

// A round trip recovers the input truncated to the nearest 1/frameRate,
// not the exact input.
func TestRoundTripTruncation(t *testing.T) {
	const frameRate = 30
	inputs := []float64{0, 0.4, 1.5, 7.77, 59.999, 61.03, 3599.5, 3661.25}

	for _, in := range inputs {
		tc := FromSeconds(in, frameRate)
		out, err := ToSeconds(tc, frameRate)
		if err != nil {
			t.Fatalf("ToSeconds(%q) error: %v", tc, err)
		}

		truncated := math.Floor(in*frameRate) / frameRate
		if math.Abs(out-truncated) > 1e-6 {
			t.Errorf("round trip of %v = %v, want %v (truncated to 1/%d)", in, out, truncated, frameRate)
		}
		if out > in+1e-9 {
			t.Errorf("round trip of %v = %v, must never exceed input", in, out)
		}
	}
}
