package segments

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tormoder/fit"
)

// LoadFIT opens and decodes a FIT activity file. The activity ID is the file name
// without its extension.
func LoadFIT(path string) (*Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()

	activity, err := DecodeFIT(f)
	if err != nil {
		return nil, err
	}
	activity.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return activity, nil
}

// DecodeFIT reads a FIT activity into per-second samples and recorded laps.
// Sample and lap times are whole seconds from the session start, or from the first
// record when the file has no session.
func DecodeFIT(r io.Reader) (*Activity, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	file, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}

	records := make([]*fit.RecordMsg, 0, len(file.Records))
	for _, rec := range file.Records {
		if rec != nil && !validTimeOrZero(rec.Timestamp).IsZero() {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	activity := &Activity{}
	if len(file.Sessions) > 0 && file.Sessions[0] != nil {
		session := file.Sessions[0]
		activity.Sport = strings.ToLower(fmt.Sprint(session.Sport))
		activity.StartTime = validTimeOrZero(session.StartTime)
	}
	if activity.StartTime.IsZero() && len(records) > 0 {
		activity.StartTime = records[0].Timestamp
	}
	if activity.StartTime.IsZero() {
		return activity, nil
	}

	offset := func(ts time.Time) int {
		return int(math.Round(ts.Sub(activity.StartTime).Seconds()))
	}

	activity.Samples = make([]Sample, 0, len(records))
	for _, rec := range records {
		if s, ok := sampleFromRecord(rec, offset(rec.Timestamp)); ok {
			activity.Samples = append(activity.Samples, s)
		}
	}

	for _, lap := range file.Laps {
		if lap == nil || validTimeOrZero(lap.StartTime).IsZero() {
			continue
		}
		activity.Laps = append(activity.Laps, lapFromFIT(lap, offset))
	}
	numberFITLaps(activity.Laps)
	return activity, nil
}

// sampleFromRecord converts one record. Records without a distance reading are
// dropped; the normalizer fills the second if its neighbours are close enough.
func sampleFromRecord(rec *fit.RecordMsg, t int) (Sample, bool) {
	d := rec.GetDistanceScaled()
	if !isFinite(d) || d < 0 {
		return Sample{}, false
	}
	s := Sample{T: t, DistanceM: d}
	if v, ok := extractSpeed(rec); ok {
		s.SpeedMps = &v
	}
	if hr := validUint8(rec.HeartRate); hr > 0 {
		v := float64(hr)
		s.HeartRate = &v
	}
	if v, ok := extractAltitude(rec); ok {
		s.ElevationM = &v
	}
	return s, true
}

func lapFromFIT(lap *fit.LapMsg, offset func(time.Time) int) RecordedLap {
	moving := safePositive(lap.GetTotalTimerTimeScaled())
	if moving == 0 {
		moving = safePositive(lap.GetTotalElapsedTimeScaled())
	}
	distance := float64(validUint32(lap.TotalDistance)) / 100.0

	speed := safePositive(lap.GetEnhancedAvgSpeedScaled())
	if speed == 0 {
		speed = safePositive(lap.GetAvgSpeedScaled())
	}
	if speed == 0 {
		speed = safeDiv(distance, moving)
	}

	start := offset(lap.StartTime)
	end := start + int(math.Round(moving))
	if ts := validTimeOrZero(lap.Timestamp); !ts.IsZero() {
		end = offset(ts)
	}

	return RecordedLap{
		StartSec:          start,
		EndSec:            end,
		DistanceM:         distance,
		MovingDurationSec: moving,
		AverageSpeedMps:   speed,
		ElevationGainM:    float64(validUint16(lap.TotalAscent)),
		Trigger:           lapTrigger(lap.LapTrigger),
	}
}

func numberFITLaps(laps []RecordedLap) {
	for i := range laps {
		laps[i].LapIndex = i + 1
		laps[i].Name = fmt.Sprintf("Lap %d", i+1)
	}
	DisjointLaps(laps)
}

func lapTrigger(t fit.LapTrigger) string {
	switch t {
	case fit.LapTriggerManual:
		return "manual"
	case fit.LapTriggerDistance:
		return "distance"
	case fit.LapTriggerTime:
		return "time"
	case fit.LapTriggerPositionStart, fit.LapTriggerPositionLap, fit.LapTriggerPositionWaypoint, fit.LapTriggerPositionMarked:
		return "position"
	case fit.LapTriggerSessionEnd:
		return "session_end"
	default:
		return "unknown"
	}
}

func extractSpeed(rec *fit.RecordMsg) (float64, bool) {
	speed := rec.GetEnhancedSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed, true
	}
	speed = rec.GetSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed, true
	}
	return 0, false
}

func extractAltitude(rec *fit.RecordMsg) (float64, bool) {
	alt := rec.GetEnhancedAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	alt = rec.GetAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	return 0, false
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}
