package segments

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

const workoutStructureSchemaVersion = "workout_structure_v1"

// WorkoutStructure is a compact reading of a segmented timeline: warmup, main set
// and cooldown blocks plus a one-line prescription.
type WorkoutStructure struct {
	SchemaVersion  string          `json:"schema_version"`
	CanonicalLabel string          `json:"canonical_label"`
	Blocks         []WorkoutBlock  `json:"blocks,omitempty"`
	MainSet        *MainSetSummary `json:"main_set,omitempty"`
}

// WorkoutBlock represents one contiguous run of segments with the same role.
type WorkoutBlock struct {
	BlockType       string  `json:"block_type"`
	StartLap        int     `json:"start_lap"`
	EndLap          int     `json:"end_lap"`
	StartSec        int     `json:"start_sec"`
	EndSec          int     `json:"end_sec"`
	DistanceM       float64 `json:"distance_m"`
	DurationSec     int     `json:"duration_sec"`
	AvgPaceSecPerKm float64 `json:"avg_pace_sec_per_km"`
	AvgHeartRate    float64 `json:"avg_heart_rate"`
}

// MainSetSummary captures the repeated efforts between warmup and cooldown.
type MainSetSummary struct {
	Effort            SegmentType  `json:"effort"`
	Reps              int          `json:"reps"`
	WorkDistanceM     float64      `json:"work_distance_m"`
	WorkDurationSec   float64      `json:"work_duration_sec"`
	WorkPaceSecPerKm  float64      `json:"work_pace_sec_per_km"`
	RestDurationSec   float64      `json:"rest_duration_sec"`
	RestDistanceM     float64      `json:"rest_distance_m"`
	ElevationGainM    float64      `json:"elevation_gain_m,omitempty"`
	PaceDriftPct      float64      `json:"pace_drift_pct"`
	HeartRateDriftBPM float64      `json:"heart_rate_drift_bpm"`
	Prescription      string       `json:"prescription"`
	RepsDetail        []MainSetRep `json:"reps_detail,omitempty"`
}

// MainSetRep stores rep-level execution metrics.
type MainSetRep struct {
	Rep              int     `json:"rep"`
	WorkLap          int     `json:"work_lap"`
	RestLap          int     `json:"rest_lap,omitempty"`
	WorkDistanceM    float64 `json:"work_distance_m"`
	WorkDurationSec  int     `json:"work_duration_sec"`
	WorkPaceSecPerKm float64 `json:"work_pace_sec_per_km"`
	RestDurationSec  int     `json:"rest_duration_sec,omitempty"`
	AvgHeartRate     float64 `json:"avg_heart_rate,omitempty"`
}

func isEffort(t SegmentType) bool {
	return t == TypeWorkout || t == TypeHillRepeat
}

// InferWorkoutStructure groups a timeline into blocks and describes its main set.
func InferWorkoutStructure(segs []Segment) WorkoutStructure {
	ws := WorkoutStructure{SchemaVersion: workoutStructureSchemaVersion}
	if len(segs) == 0 {
		ws.CanonicalLabel = "unable to infer workout structure (no segments)"
		return ws
	}

	mainStart, mainEnd := detectMainSetWindow(segs)
	role := func(i int) string {
		switch {
		case mainStart >= 0 && i >= mainStart && i <= mainEnd:
			return "main_set"
		case segs[i].Type == TypeWarmup:
			return "warmup"
		case segs[i].Type == TypeCooldown:
			return "cooldown"
		case segs[i].Type == TypeActivity:
			return "activity"
		default:
			return "steady"
		}
	}

	i := 0
	for i < len(segs) {
		r := role(i)
		j := i
		for j+1 < len(segs) && role(j+1) == r {
			j++
		}
		ws.Blocks = append(ws.Blocks, buildBlock(segs, r, i, j))
		i = j + 1
	}

	if mainStart >= 0 {
		summary := buildMainSetSummary(segs, mainStart, mainEnd)
		ws.MainSet = &summary
	}
	ws.CanonicalLabel = buildCanonicalStructureLabel(ws)
	return ws
}

// detectMainSetWindow spans the first to the last effort, plus the rest that
// directly follows the last one.
func detectMainSetWindow(segs []Segment) (int, int) {
	start, end := -1, -1
	for i, s := range segs {
		if isEffort(s.Type) {
			if start < 0 {
				start = i
			}
			end = i
		}
	}
	if start < 0 {
		return -1, -1
	}
	if end+1 < len(segs) && segs[end+1].Type == TypeRest {
		end++
	}
	return start, end
}

func buildMainSetSummary(segs []Segment, start, end int) MainSetSummary {
	var (
		work  []Segment
		rests []Segment
		reps  []MainSetRep
	)
	for i := start; i <= end; i++ {
		s := segs[i]
		switch {
		case isEffort(s.Type):
			work = append(work, s)
			reps = append(reps, MainSetRep{
				Rep:              len(work),
				WorkLap:          s.LapIndex,
				WorkDistanceM:    s.DistanceM,
				WorkDurationSec:  s.TotalDurationSec,
				WorkPaceSecPerKm: s.AvgPaceSecPerKm,
				AvgHeartRate:     s.AvgHeartRate,
			})
		case s.Type == TypeRest:
			rests = append(rests, s)
			if len(reps) > 0 && reps[len(reps)-1].RestLap == 0 {
				reps[len(reps)-1].RestLap = s.LapIndex
				reps[len(reps)-1].RestDurationSec = s.TotalDurationSec
			}
		}
	}

	summary := MainSetSummary{
		Effort:     work[0].Type,
		Reps:       len(work),
		RepsDetail: reps,
	}

	var workDist, workDur, workPace, restDur, restDist, gain []float64
	var workHR []float64
	for _, s := range work {
		workDist = append(workDist, s.DistanceM)
		workDur = append(workDur, float64(s.TotalDurationSec))
		if s.AvgPaceSecPerKm > 0 {
			workPace = append(workPace, s.AvgPaceSecPerKm)
		}
		if s.AvgHeartRate > 0 {
			workHR = append(workHR, s.AvgHeartRate)
		}
		if s.ElevationGainM != nil {
			gain = append(gain, *s.ElevationGainM)
		}
	}
	for _, s := range rests {
		restDur = append(restDur, float64(s.TotalDurationSec))
		restDist = append(restDist, s.DistanceM)
	}

	summary.WorkDistanceM = average(workDist)
	summary.WorkDurationSec = average(workDur)
	summary.WorkPaceSecPerKm = average(workPace)
	summary.RestDurationSec = average(restDur)
	summary.RestDistanceM = average(restDist)
	summary.ElevationGainM = average(gain)
	summary.PaceDriftPct = pctChange(firstValue(workPace), lastValue(workPace))
	if len(workHR) >= 2 {
		summary.HeartRateDriftBPM = lastValue(workHR) - firstValue(workHR)
	}
	summary.Prescription = prescription(summary)
	return summary
}

func prescription(m MainSetSummary) string {
	var b strings.Builder
	if m.Effort == TypeHillRepeat {
		fmt.Fprintf(&b, "%dx hill %s +%.0fm", m.Reps, shortDistance(m.WorkDistanceM), m.ElevationGainM)
	} else {
		fmt.Fprintf(&b, "%dx%s @%s/km", m.Reps, shortDistance(m.WorkDistanceM), clockDuration(m.WorkPaceSecPerKm))
	}
	if m.RestDurationSec > 0 {
		fmt.Fprintf(&b, " w/ %s rest", clockDuration(m.RestDurationSec))
	}
	return b.String()
}

func buildCanonicalStructureLabel(ws WorkoutStructure) string {
	if len(ws.Blocks) == 0 {
		return "unclassified session structure"
	}
	parts := make([]string, 0, 4)
	for _, b := range ws.Blocks {
		switch b.BlockType {
		case "warmup":
			parts = append(parts, fmt.Sprintf("warmup %s", kilometers(b.DistanceM)))
		case "main_set":
			if ws.MainSet != nil {
				parts = append(parts, ws.MainSet.Prescription)
			}
		case "cooldown":
			parts = append(parts, fmt.Sprintf("cooldown %s", kilometers(b.DistanceM)))
		case "activity":
			parts = append(parts, fmt.Sprintf("easy %s @%s/km", kilometers(b.DistanceM), clockDuration(b.AvgPaceSecPerKm)))
		}
	}
	if len(parts) == 0 {
		return "unclassified session structure"
	}
	return strings.Join(parts, " + ")
}

func buildBlock(segs []Segment, blockType string, start, end int) WorkoutBlock {
	block := WorkoutBlock{
		BlockType: blockType,
		StartLap:  segs[start].LapIndex,
		EndLap:    segs[end].LapIndex,
		StartSec:  segs[start].StartSec,
		EndSec:    segs[end].EndSec,
	}

	moving := 0
	sumHR, weightHR := 0.0, 0.0
	for i := start; i <= end; i++ {
		s := segs[i]
		block.DistanceM += s.DistanceM
		block.DurationSec += s.TotalDurationSec
		moving += s.MovingDurationSec
		if s.AvgHeartRate > 0 {
			sumHR += s.AvgHeartRate * float64(s.TotalDurationSec)
			weightHR += float64(s.TotalDurationSec)
		}
	}
	block.AvgPaceSecPerKm = paceSecPerKm(block.DistanceM, float64(moving))
	block.AvgHeartRate = safeDiv(sumHR, weightHR)
	return block
}

// shortDistance renders rep distances: meters rounded to 50 below a kilometer,
// otherwise kilometers with one decimal.
func shortDistance(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("%.0fm", roundToNearest(m, 50))
	}
	return kilometers(m)
}

func kilometers(m float64) string {
	return fmt.Sprintf("%.1fkm", m/1000)
}

// clockDuration formats seconds as m:ss.
func clockDuration(seconds float64) string {
	s := int(math.Round(seconds))
	if s <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func roundToNearest(v, step float64) float64 {
	if v == 0 || step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

// average is the mean of the finite values, 0 when there are none.
func average(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	return stat.Mean(finite, nil)
}

func pctChange(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return ((end / start) - 1.0) * 100.0
}

func firstValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[0]
}

func lastValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
