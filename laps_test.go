package segments

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func speedLaps(speeds ...float64) []RecordedLap {
	laps := make([]RecordedLap, len(speeds))
	start := 0
	for i, v := range speeds {
		laps[i] = RecordedLap{
			LapIndex:          i + 1,
			StartSec:          start,
			EndSec:            start + 299,
			DistanceM:         v * 300,
			MovingDurationSec: 300,
			AverageSpeedMps:   v,
			Trigger:           "manual",
		}
		start += 300
	}
	return laps
}

func vamLaps(vams ...float64) []RecordedLap {
	laps := speedLaps(make([]float64, len(vams))...)
	for i, v := range vams {
		laps[i].AverageSpeedMps = 2.5
		laps[i].DistanceM = 2.5 * 3600
		laps[i].MovingDurationSec = 3600
		laps[i].ElevationGainM = v
	}
	return laps
}

func TestClassifyLapsScenarioC(t *testing.T) {
	labels := ClassifyLaps(speedLaps(3.0, 3.0, 5.0, 3.0, 3.0), KindInterval, DefaultDetectorConfig())
	want := []SegmentType{TypeWarmup, TypeWarmup, TypeWorkout, TypeCooldown, TypeCooldown}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyLaps(t *testing.T) {
	cfg := DefaultDetectorConfig()
	tests := []struct {
		name string
		laps []RecordedLap
		kind WorkoutKind
		want []SegmentType
	}{
		{
			name: "no laps",
			laps: nil,
			kind: KindInterval,
			want: nil,
		},
		{
			name: "single lap",
			laps: speedLaps(3.2),
			kind: KindInterval,
			want: []SegmentType{TypeRun},
		},
		{
			name: "uniform laps",
			laps: speedLaps(3.0, 3.05, 3.0),
			kind: KindInterval,
			want: []SegmentType{TypeRun, TypeRun, TypeRun},
		},
		{
			name: "warmup and cooldown around repeats",
			laps: speedLaps(3.0, 3.1, 5.0, 2.0, 5.0, 3.1, 3.0),
			kind: KindInterval,
			want: []SegmentType{TypeWarmup, TypeWarmup, TypeWorkout, TypeRest, TypeWorkout, TypeCooldown, TypeCooldown},
		},
		{
			name: "ambiguous lap between repeats falls back to z sign",
			laps: speedLaps(2.0, 5.0, 4.0, 5.0, 2.0),
			kind: KindInterval,
			want: []SegmentType{TypeRest, TypeWorkout, TypeRun, TypeWorkout, TypeRest},
		},
		{
			name: "interval cooldown starts after the last workout",
			laps: speedLaps(2.0, 6.0, 2.5, 0.0, 2.5),
			kind: KindInterval,
			want: []SegmentType{TypeWarmup, TypeWorkout, TypeCooldown, TypeRest, TypeCooldown},
		},
		{
			name: "hill cooldown starts after the last rest",
			laps: vamLaps(200, 600, 250, 0, 250),
			kind: KindHill,
			want: []SegmentType{TypeWarmup, TypeWorkout, TypeRest, TypeRest, TypeCooldown},
		},
		{
			name: "flat hill session",
			laps: vamLaps(10, 30, 20),
			kind: KindHill,
			want: []SegmentType{TypeRun, TypeRun, TypeRun},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyLaps(tc.laps, tc.kind, cfg)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ClassifyLaps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLapSegments(t *testing.T) {
	cfg := DefaultDetectorConfig()
	segs := LapSegments(speedLaps(3.0, 3.1, 5.0, 2.0, 5.0, 3.1, 3.0), KindInterval, cfg)
	if len(segs) != 7 {
		t.Fatalf("expected 7 segments, got %d", len(segs))
	}

	wantIndex := []int{1, 2, 1, 1, 2, 1, 2}
	for i, s := range segs {
		if s.LapIndex != i+1 {
			t.Fatalf("segment %d has lap index %d", i, s.LapIndex)
		}
		if s.Index != wantIndex[i] {
			t.Fatalf("segment %d (%s) has index %d, want %d", i, s.Type, s.Index, wantIndex[i])
		}
		if s.TotalDurationSec != 299 || s.MovingDurationSec != 300 {
			t.Fatalf("unexpected durations %+v", s)
		}
		if s.ElevationGainM != nil {
			t.Fatalf("interval laps should not carry climb metrics")
		}
	}
	if math.Abs(segs[2].AvgPaceSecPerKm-200) > 1e-9 {
		t.Fatalf("expected 200 s/km at 5 m/s, got %v", segs[2].AvgPaceSecPerKm)
	}
}

func TestLapSegmentsHillMetrics(t *testing.T) {
	segs := LapSegments(vamLaps(200, 600, 250, 0, 250), KindHill, DefaultDetectorConfig())
	work := segs[1]
	if work.Type != TypeWorkout {
		t.Fatalf("expected lap 2 WORKOUT, got %s", work.Type)
	}
	if work.VAMMPerHr == nil || math.Abs(*work.VAMMPerHr-600) > 1e-6 {
		t.Fatalf("expected VAM 600 m/h, got %v", work.VAMMPerHr)
	}
	if work.ElevationGainM == nil || *work.ElevationGainM != 600 {
		t.Fatalf("expected 600 m gain, got %v", work.ElevationGainM)
	}
	if work.AvgGradePct == nil || math.Abs(*work.AvgGradePct-600/9000.0*100) > 1e-9 {
		t.Fatalf("unexpected grade %v", work.AvgGradePct)
	}
}

func TestRecordedLapVAM(t *testing.T) {
	lap := RecordedLap{ElevationGainM: 50, MovingDurationSec: 300}
	if got := lap.VAM(); math.Abs(got-600) > 1e-9 {
		t.Fatalf("VAM() = %v, want 600", got)
	}
	if got := (RecordedLap{ElevationGainM: 50}).VAM(); got != 0 {
		t.Fatalf("VAM() with no moving time = %v, want 0", got)
	}
}

func TestRecordedLapAutoTriggered(t *testing.T) {
	for trigger, want := range map[string]bool{
		"manual":      false,
		"distance":    true,
		"time":        true,
		"position":    true,
		"session_end": false,
		"":            false,
	} {
		if got := (RecordedLap{Trigger: trigger}).AutoTriggered(); got != want {
			t.Fatalf("AutoTriggered(%q) = %v, want %v", trigger, got, want)
		}
	}
}
