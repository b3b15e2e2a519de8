package segments

import (
	"fmt"
	"math"
	"time"
)

const (
	secondsPerHour = 3600.0

	SourceLaps   = "laps"
	SourceStream = "stream"
)

// Activity is one recorded workout: its per-second samples and, when the device
// or app kept them, its recorded laps.
type Activity struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Sport       string        `json:"sport,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	Samples     []Sample      `json:"-"`
	Laps        []RecordedLap `json:"laps,omitempty"`
}

// AnalyzeOptions controls how an activity is segmented.
type AnalyzeOptions struct {
	// Kind selects the detection strategy. KindAuto infers it from the description.
	Kind WorkoutKind
	// Config overrides DefaultDetectorConfig when non-nil.
	Config *DetectorConfig
	// ForceLaps classifies recorded laps even when they were auto-triggered.
	ForceLaps bool
	// IgnoreLaps always segments the per-second stream.
	IgnoreLaps bool
}

// Analysis is the segmented timeline of one activity.
type Analysis struct {
	ActivityID string           `json:"activity_id"`
	Name       string           `json:"name,omitempty"`
	Kind       WorkoutKind      `json:"kind"`
	Source     string           `json:"source"`
	Config     DetectorConfig   `json:"config"`
	Stream     Stream           `json:"-"`
	Segments   []Segment        `json:"segments"`
	Structure  WorkoutStructure `json:"workout_structure"`
	Notes      string           `json:"notes"`
}

// AnalyzeFile decodes a FIT activity file and segments it.
func AnalyzeFile(path string, opts AnalyzeOptions) (*Analysis, error) {
	activity, err := LoadFIT(path)
	if err != nil {
		return nil, err
	}
	return Analyze(*activity, opts)
}

// Analyze segments one activity.
//
// Recorded laps are classified when at least two of them were closed by the athlete
// (or ForceLaps is set); otherwise the per-second stream is scanned with the strategy
// for the workout kind. Easy runs are split by distance without detection.
func Analyze(activity Activity, opts AnalyzeOptions) (*Analysis, error) {
	cfg := DefaultDetectorConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	kind := resolveKind(opts.Kind, activity.Description)
	switch kind {
	case KindEasy, KindInterval, KindHill:
	default:
		return nil, fmt.Errorf("unsupported workout kind %q", opts.Kind)
	}

	a := &Analysis{
		ActivityID: activity.ID,
		Name:       activity.Name,
		Kind:       kind,
		Source:     SourceStream,
		Config:     cfg,
		Stream:     Normalize(activity.Samples, cfg),
	}

	switch {
	case kind != KindEasy && !opts.IgnoreLaps && useRecordedLaps(activity.Laps, opts.ForceLaps):
		a.Source = SourceLaps
		a.Segments = LapSegments(activity.Laps, kind, cfg)
	case kind == KindEasy:
		a.Segments = numberLaps(SplitByDistance(a.Stream, a.Stream.Full(), TypeActivity, cfg))
	case kind == KindHill:
		a.Segments = BuildTimeline(a.Stream, HillStrategy(cfg), cfg)
	default:
		a.Segments = BuildTimeline(a.Stream, IntervalStrategy(cfg), cfg)
	}

	a.Structure = InferWorkoutStructure(a.Segments)
	a.Notes = BuildTimelineNotes(a)
	return a, nil
}

func useRecordedLaps(laps []RecordedLap, force bool) bool {
	if force {
		return len(laps) > 0
	}
	manual := 0
	for _, lap := range laps {
		if !lap.AutoTriggered() {
			manual++
		}
	}
	return manual >= 2
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func safePositive(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	return v
}

func safeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func valueOrNaN(p *float64) float64 {
	if p == nil || !isFinite(*p) {
		return math.NaN()
	}
	return *p
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func ptrOrNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func validUint8(v uint8) uint8 {
	if v == math.MaxUint8 {
		return 0
	}
	return v
}

func validUint16(v uint16) uint16 {
	if v == math.MaxUint16 {
		return 0
	}
	return v
}

func validUint32(v uint32) uint32 {
	if v == math.MaxUint32 {
		return 0
	}
	return v
}
