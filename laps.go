package segments

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ClassifyLaps labels recorded laps by how far each lap's metric sits from the
// session mean, in standard deviations. Interval sessions are scored on average
// speed and hill sessions on VAM.
//
// Laps labeled STEADY by score alone are resolved afterwards: before the first
// WORKOUT they become WARMUP, after the last WORKOUT (interval) or last
// WORKOUT/REST (hill) they become COOLDOWN, and any left over fall to RUN or REST
// by the sign of their score. The result has one label per lap.
func ClassifyLaps(laps []RecordedLap, kind WorkoutKind, cfg DetectorConfig) []SegmentType {
	switch len(laps) {
	case 0:
		return nil
	case 1:
		return []SegmentType{TypeRun}
	}

	values := make([]float64, len(laps))
	floor, workoutZ := cfg.LapSpeedStdFloor, cfg.LapSpeedWorkoutZ
	for i, lap := range laps {
		if kind == KindHill {
			values[i] = lap.VAM()
		} else {
			values[i] = lap.AverageSpeedMps
		}
	}
	if kind == KindHill {
		floor, workoutZ = cfg.LapVAMStdFloor, cfg.LapVAMWorkoutZ
	}

	labels := make([]SegmentType, len(laps))
	mean, variance := stat.PopMeanVariance(values, nil)
	std := math.Sqrt(variance)
	if std < floor {
		for i := range labels {
			labels[i] = TypeRun
		}
		return labels
	}

	z := make([]float64, len(values))
	for i, v := range values {
		z[i] = (v - mean) / std
		switch {
		case z[i] > workoutZ:
			labels[i] = TypeWorkout
		case z[i] < cfg.LapRestZ:
			labels[i] = TypeRest
		default:
			labels[i] = TypeSteady
		}
	}

	firstWork, lastWork := -1, -1
	for i, l := range labels {
		if l == TypeWorkout {
			if firstWork < 0 {
				firstWork = i
			}
			lastWork = i
		}
	}
	cooldownAfter := lastWork
	if kind == KindHill && firstWork >= 0 {
		for i := len(labels) - 1; i > lastWork; i-- {
			if labels[i] == TypeRest {
				cooldownAfter = i
				break
			}
		}
	}

	for i, l := range labels {
		if l != TypeSteady {
			continue
		}
		switch {
		case firstWork >= 0 && i < firstWork:
			labels[i] = TypeWarmup
		case firstWork >= 0 && i > cooldownAfter:
			labels[i] = TypeCooldown
		case z[i] > 0:
			labels[i] = TypeRun
		default:
			labels[i] = TypeRest
		}
	}
	return labels
}

// LapSegments converts recorded laps into timeline segments labeled by ClassifyLaps.
func LapSegments(laps []RecordedLap, kind WorkoutKind, cfg DetectorConfig) []Segment {
	labels := ClassifyLaps(laps, kind, cfg)
	if len(labels) == 0 {
		return nil
	}

	perType := make(map[SegmentType]int)
	out := make([]Segment, 0, len(laps))
	for i, lap := range laps {
		typ := labels[i]
		perType[typ]++
		seg := Segment{
			Type:              typ,
			Index:             perType[typ],
			LapIndex:          i + 1,
			StartSec:          lap.StartSec,
			EndSec:            lap.EndSec,
			DistanceM:         lap.DistanceM,
			MovingDurationSec: int(math.Round(lap.MovingDurationSec)),
			TotalDurationSec:  lap.EndSec - lap.StartSec,
		}
		if lap.AverageSpeedMps > 0 {
			seg.AvgPaceSecPerKm = 1000 / lap.AverageSpeedMps
		} else {
			seg.AvgPaceSecPerKm = paceSecPerKm(lap.DistanceM, lap.MovingDurationSec)
		}
		if kind == KindHill {
			gain := lap.ElevationGainM
			grade := safeDiv(gain, lap.DistanceM) * 100
			vam := lap.VAM()
			seg.ElevationGainM = &gain
			seg.AvgGradePct = &grade
			seg.VAMMPerHr = &vam
		}
		out = append(out, seg)
	}
	return out
}
