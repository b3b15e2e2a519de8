package segments

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fast(v float64) bool { return v >= 3.3 }

func anySpan(Span) bool { return true }

func TestDetectBlocks(t *testing.T) {
	tests := []struct {
		name     string
		speeds   []float64
		maxBreak int
		want     []Span
	}{
		{
			name:     "single dip keeps the block whole",
			speeds:   []float64{4, 4, 4, 1, 4, 4, 4},
			maxBreak: 15,
			want:     []Span{{Lo: 0, Hi: 6}},
		},
		{
			name:     "zero tolerance splits on the dip",
			speeds:   []float64{4, 4, 4, 1, 4, 4, 4},
			maxBreak: 0,
			want:     []Span{{Lo: 0, Hi: 2}, {Lo: 4, Hi: 6}},
		},
		{
			name:     "dips up to the limit are absorbed",
			speeds:   []float64{4, 1, 1, 4},
			maxBreak: 2,
			want:     []Span{{Lo: 0, Hi: 3}},
		},
		{
			name:     "dip longer than the limit closes the block",
			speeds:   []float64{4, 1, 1, 1, 4},
			maxBreak: 2,
			want:     []Span{{Lo: 0, Hi: 0}, {Lo: 4, Hi: 4}},
		},
		{
			name:     "trailing tentative points are trimmed at stream end",
			speeds:   []float64{1, 4, 4, 1, 1, 1},
			maxBreak: 15,
			want:     []Span{{Lo: 1, Hi: 2}},
		},
		{
			name:     "no effort",
			speeds:   []float64{1, 2, 3},
			maxBreak: 15,
			want:     nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectBlocks(tc.speeds, fast, anySpan, tc.maxBreak)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("DetectBlocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectBlocksAppliesValidity(t *testing.T) {
	speeds := []float64{4, 4, 1, 1, 4, 4, 4, 4}
	longOnly := func(s Span) bool { return s.Len() >= 3 }
	got := DetectBlocks(speeds, fast, longOnly, 1)
	want := []Span{{Lo: 4, Hi: 7}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("DetectBlocks mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockAccumulatorCloseTrimsTentativePoints(t *testing.T) {
	var acc blockAccumulator
	acc.open(2)
	acc.extend(3)
	acc.extendTentative(4)
	acc.extendTentative(5)

	got := acc.close()
	if got != (Span{Lo: 2, Hi: 3}) {
		t.Fatalf("close() = %+v, want {2 3}", got)
	}
	if acc.state != stateIdle || acc.gap != 0 {
		t.Fatalf("accumulator not reset after close: %+v", acc)
	}
}

// edgeStream has effort at indices 10..20 and the given distance at index 20,
// starting from 100 m at index 10.
func edgeStream(endDistance float64) Stream {
	points := make([]Point, 30)
	for i := range points {
		p := Point{T: i, SpeedMps: 1, DistanceKnown: true}
		switch {
		case i < 10:
			p.DistanceM = float64(i) * 10
		case i < 20:
			p.DistanceM = 100 + float64(i-10)*14
		case i == 20:
			p.DistanceM = endDistance
		default:
			p.DistanceM = endDistance + float64(i-20)
		}
		if i >= 10 && i <= 20 {
			p.SpeedMps = 4
		}
		points[i] = p
	}
	return Stream{Start: 0, Points: points}
}

func TestIntervalStrategyThresholdEdge(t *testing.T) {
	strategy := IntervalStrategy(DefaultDetectorConfig())

	exact := strategy.Detect(edgeStream(250))
	if diff := cmp.Diff([]Span{{Lo: 10, Hi: 20}}, exact); diff != "" {
		t.Fatalf("block of exactly 150 m should be kept (-want +got):\n%s", diff)
	}

	short := strategy.Detect(edgeStream(249))
	if len(short) != 0 {
		t.Fatalf("block of 149 m should be rejected, got %+v", short)
	}
}

func TestHillStrategySkipsEarlyClimbs(t *testing.T) {
	cfg := DefaultDetectorConfig()
	points := make([]Point, 40)
	for i := range points {
		elev := 100.0
		if i >= 10 && i < 30 {
			elev = 100 + float64(i-9)
		} else if i >= 30 {
			elev = 120
		}
		points[i] = Point{
			T:          i,
			DistanceM:  float64(i) * 5,
			SpeedMps:   5,
			ElevationM: f64(elev),
		}
		if i >= 10 && i < 30 {
			points[i].GradePct = 20
		}
	}
	stream := Stream{Points: points}

	if got := HillStrategy(cfg).Detect(stream); len(got) != 0 {
		t.Fatalf("climb inside the first kilometer should be dropped, got %+v", got)
	}

	cfg.HillMinStartDistM = 0
	got := HillStrategy(cfg).Detect(stream)
	if diff := cmp.Diff([]Span{{Lo: 10, Hi: 29}}, got); diff != "" {
		t.Fatalf("HillStrategy mismatch (-want +got):\n%s", diff)
	}
}
