package transcript

import (
	"math"
	"testing"
)

func seg(id int, start, end float64) Segment {
	return Segment{ID: id, Speaker: "SPEAKER_00", Start: start, End: end}
}

func TestDetectSilences(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		duration float64
		min      float64
		want     []Silence
	}{
		{
			name:     "no segments",
			segments: nil,
			duration: 10,
			min:      0.5,
			want:     nil,
		},
		{
			name:     "leading silence",
			segments: []Segment{seg(0, 2, 5)},
			duration: 5,
			min:      0.5,
			want:     []Silence{{Start: 0, End: 2, Duration: 2}},
		},
		{
			name:     "gap between segments",
			segments: []Segment{seg(0, 0, 2), seg(1, 5, 8)},
			duration: 8,
			min:      0.5,
			want:     []Silence{{Start: 2, End: 5, Duration: 3}},
		},
		{
			name:     "trailing silence",
			segments: []Segment{seg(0, 0, 4)},
			duration: 10,
			min:      0.5,
			want:     []Silence{{Start: 4, End: 10, Duration: 6}},
		},
		{
			name:     "gap below threshold ignored",
			segments: []Segment{seg(0, 0, 2), seg(1, 2.3, 5)},
			duration: 5,
			min:      0.5,
			want:     nil,
		},
		{
			name:     "unsorted input",
			segments: []Segment{seg(1, 5, 8), seg(0, 0, 2)},
			duration: 8,
			min:      0.5,
			want:     []Silence{{Start: 2, End: 5, Duration: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectSilences(tt.segments, tt.duration, tt.min)
			if len(got) != len(tt.want) {
				t.Fatalf("DetectSilences() returned %d silences, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if math.Abs(got[i].Start-tt.want[i].Start) > 1e-9 ||
					math.Abs(got[i].End-tt.want[i].End) > 1e-9 ||
					math.Abs(got[i].Duration-tt.want[i].Duration) > 1e-9 {
					t.Errorf("silence %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSegmentMap(t *testing.T) {
	segments := []Segment{seg(1, 0, 2), seg(2, 5, 8)}
	m := SegmentMap(segments)

	if len(m) != 2 {
		t.Fatalf("SegmentMap() len = %d, want 2", len(m))
	}
	if m[2].Start != 5 || m[2].End != 8 {
		t.Errorf("m[2] = %+v, want start 5 end 8", m[2])
	}
	if _, ok := m[3]; ok {
		t.Errorf("m[3] should not exist")
	}
}
