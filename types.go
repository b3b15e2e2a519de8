package segments

// SegmentType labels one portion of the workout timeline.
type SegmentType string

const (
	TypeWarmup     SegmentType = "WARMUP"
	TypeWorkout    SegmentType = "WORKOUT"
	TypeRest       SegmentType = "REST"
	TypeCooldown   SegmentType = "COOLDOWN"
	TypeHillRepeat SegmentType = "HILL_REPEAT"
	TypeSteady     SegmentType = "STEADY"
	TypeRun        SegmentType = "RUN"
	TypeActivity   SegmentType = "ACTIVITY"
)

// Sample is one recorded second of telemetry as delivered by a stream source.
// Nil pointers are missing readings.
type Sample struct {
	T          int      `json:"t"`
	DistanceM  float64  `json:"distance_total_m"`
	SpeedMps   *float64 `json:"speed_m_s,omitempty"`
	HeartRate  *float64 `json:"heart_rate,omitempty"`
	ElevationM *float64 `json:"elevation_m,omitempty"`
}

// RecordedLap is a lap summary recorded by the device or app, without per-second data.
type RecordedLap struct {
	LapIndex          int     `json:"lap_index"`
	StartSec          int     `json:"start_sec"`
	EndSec            int     `json:"end_sec"`
	DistanceM         float64 `json:"distance_m"`
	MovingDurationSec float64 `json:"moving_duration_sec"`
	AverageSpeedMps   float64 `json:"average_speed_m_s"`
	ElevationGainM    float64 `json:"elevation_gain_m"`
	Name              string  `json:"name,omitempty"`
	Trigger           string  `json:"trigger,omitempty"` // manual|distance|time|position|session_end|unknown
}

// VAM returns the lap's vertical ascent rate in meters per hour of moving time.
func (l RecordedLap) VAM() float64 {
	return safeDiv(l.ElevationGainM, l.MovingDurationSec) * secondsPerHour
}

// AutoTriggered reports whether the device closed the lap by itself (auto-lap).
func (l RecordedLap) AutoTriggered() bool {
	switch l.Trigger {
	case "distance", "time", "position":
		return true
	}
	return false
}

// Segment is one labeled, time-bounded portion of the output timeline.
//
// StartSec and EndSec are inclusive. DistanceM and TotalDurationSec are measured
// from the segment's entry point, the second preceding StartSec, so that a full
// timeline sums to the activity totals.
type Segment struct {
	Type              SegmentType `json:"type"`
	Index             int         `json:"index"`
	LapIndex          int         `json:"lap_index"`
	StartSec          int         `json:"start_sec"`
	EndSec            int         `json:"end_sec"`
	DistanceM         float64     `json:"distance_m"`
	MovingDurationSec int         `json:"moving_duration_sec"`
	TotalDurationSec  int         `json:"total_duration_sec"`
	AvgPaceSecPerKm   float64     `json:"avg_pace_sec_per_km"`
	AvgHeartRate      float64     `json:"avg_heart_rate"`
	ElevationGainM    *float64    `json:"elevation_gain_m,omitempty"`
	AvgGradePct       *float64    `json:"avg_grade_percent,omitempty"`
	VAMMPerHr         *float64    `json:"vam_m_per_hr,omitempty"`
}

// Span is an inclusive range of indices into a Stream's points.
type Span struct {
	Lo int
	Hi int
}

// Len returns the number of points covered by the span.
func (s Span) Len() int {
	if s.Hi < s.Lo {
		return 0
	}
	return s.Hi - s.Lo + 1
}

// Empty reports whether the span covers no points.
func (s Span) Empty() bool { return s.Hi < s.Lo }

// DisjointLaps makes recorded lap ranges closed and non-overlapping: a lap that
// ends on or after the next lap's first second is cut to the second before it.
func DisjointLaps(laps []RecordedLap) {
	for i := range laps {
		if i+1 < len(laps) && laps[i+1].StartSec <= laps[i].EndSec {
			laps[i].EndSec = laps[i+1].StartSec - 1
		}
		if laps[i].EndSec < laps[i].StartSec {
			laps[i].EndSec = laps[i].StartSec
		}
	}
}
