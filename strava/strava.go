// Package strava reads activities exported from the Strava API: the streams
// endpoint fetched with key_by_type=true and the detailed activity with its laps.
package strava

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	segments "github.com/lucasjlepore/workout-segments"
)

const (
	StreamsFile  = "streams.json"
	ActivityFile = "activity.json"
)

// ErrMissingStream is returned when a required stream (time or distance) is absent.
var ErrMissingStream = errors.New("strava: required stream missing")

// defaultLapName matches the names Strava gives to laps recorded on the device.
var defaultLapName = regexp.MustCompile(`^Lap \d+$`)

type stream struct {
	Data         []*float64 `json:"data"`
	SeriesType   string     `json:"series_type,omitempty"`
	OriginalSize int        `json:"original_size,omitempty"`
	Resolution   string     `json:"resolution,omitempty"`
}

// Streams holds the per-second series of one activity, index-aligned with Time.
// Optional series may be shorter than Time or contain nulls.
type Streams struct {
	Time           []int
	Distance       []*float64
	VelocitySmooth []*float64
	Heartrate      []*float64
	Altitude       []*float64
}

// DecodeStreams parses a key_by_type streams document.
func DecodeStreams(r io.Reader) (*Streams, error) {
	var raw map[string]stream
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode streams: %w", err)
	}

	timeStream, ok := raw["time"]
	if !ok {
		return nil, fmt.Errorf("%w: time", ErrMissingStream)
	}
	distance, ok := raw["distance"]
	if !ok {
		return nil, fmt.Errorf("%w: distance", ErrMissingStream)
	}

	s := &Streams{
		Time:           make([]int, len(timeStream.Data)),
		Distance:       distance.Data,
		VelocitySmooth: raw["velocity_smooth"].Data,
		Heartrate:      raw["heartrate"].Data,
		Altitude:       raw["altitude"].Data,
	}
	for i, v := range timeStream.Data {
		if v == nil {
			return nil, fmt.Errorf("decode streams: null time at index %d", i)
		}
		s.Time[i] = int(*v)
	}
	return s, nil
}

// Samples converts the streams to engine samples. Seconds without a distance
// reading are skipped.
func (s *Streams) Samples() []segments.Sample {
	out := make([]segments.Sample, 0, len(s.Time))
	for i, t := range s.Time {
		d := at(s.Distance, i)
		if d == nil {
			continue
		}
		out = append(out, segments.Sample{
			T:          t,
			DistanceM:  *d,
			SpeedMps:   at(s.VelocitySmooth, i),
			HeartRate:  at(s.Heartrate, i),
			ElevationM: at(s.Altitude, i),
		})
	}
	return out
}

// SecondAt maps a stream index to its second offset, clamping out-of-range indices.
func (s *Streams) SecondAt(i int) int {
	if len(s.Time) == 0 {
		return 0
	}
	if i < 0 {
		i = 0
	}
	if i >= len(s.Time) {
		i = len(s.Time) - 1
	}
	return s.Time[i]
}

func at(series []*float64, i int) *float64 {
	if i >= len(series) {
		return nil
	}
	return series[i]
}

// Lap is a lap as returned in the detailed activity.
type Lap struct {
	LapIndex           int     `json:"lap_index"`
	Name               string  `json:"name"`
	StartIndex         int     `json:"start_index"`
	EndIndex           int     `json:"end_index"`
	Distance           float64 `json:"distance"`
	MovingTime         float64 `json:"moving_time"`
	ElapsedTime        float64 `json:"elapsed_time"`
	AverageSpeed       float64 `json:"average_speed"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	Split              int     `json:"split"`
}

// Activity is the subset of the detailed activity the segmenter needs.
type Activity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	SportType   string    `json:"sport_type"`
	StartDate   time.Time `json:"start_date"`
	Laps        []Lap     `json:"laps"`
}

// DecodeActivity parses a detailed activity document.
func DecodeActivity(r io.Reader) (*Activity, error) {
	var a Activity
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return &a, nil
}

// RecordedLaps converts the activity's laps to second ranges on the given streams.
// Laps keeping Strava's default "Lap N" name were recorded on the device and are
// marked manual; renamed laps keep an unknown trigger.
func (a *Activity) RecordedLaps(s *Streams) []segments.RecordedLap {
	if len(a.Laps) == 0 {
		return nil
	}
	out := make([]segments.RecordedLap, 0, len(a.Laps))
	for i, lap := range a.Laps {
		index := lap.LapIndex
		if index == 0 {
			index = i + 1
		}
		speed := lap.AverageSpeed
		if speed == 0 && lap.MovingTime > 0 {
			speed = lap.Distance / lap.MovingTime
		}
		trigger := "unknown"
		if defaultLapName.MatchString(lap.Name) {
			trigger = "manual"
		}
		out = append(out, segments.RecordedLap{
			LapIndex:          index,
			StartSec:          s.SecondAt(lap.StartIndex),
			EndSec:            s.SecondAt(lap.EndIndex),
			DistanceM:         lap.Distance,
			MovingDurationSec: lap.MovingTime,
			AverageSpeedMps:   speed,
			ElevationGainM:    lap.TotalElevationGain,
			Name:              lap.Name,
			Trigger:           trigger,
		})
	}
	segments.DisjointLaps(out)
	return out
}

// ToActivity joins the activity detail with its streams.
func (a *Activity) ToActivity(s *Streams) segments.Activity {
	sport := a.SportType
	if sport == "" {
		sport = a.Type
	}
	return segments.Activity{
		ID:          strconv.FormatInt(a.ID, 10),
		Name:        a.Name,
		Description: a.Description,
		Sport:       sport,
		StartTime:   a.StartDate,
		Samples:     s.Samples(),
		Laps:        a.RecordedLaps(s),
	}
}

// LoadDir reads an exported activity directory: streams.json is required and
// activity.json is optional. Without activity.json the directory name is the ID.
func LoadDir(dir string) (*segments.Activity, error) {
	streams, err := readStreams(filepath.Join(dir, StreamsFile))
	if err != nil {
		return nil, err
	}

	detail := &Activity{}
	f, err := os.Open(filepath.Join(dir, ActivityFile))
	switch {
	case err == nil:
		defer f.Close()
		if detail, err = DecodeActivity(f); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("open activity: %w", err)
	}

	activity := detail.ToActivity(streams)
	if detail.ID == 0 {
		activity.ID = filepath.Base(filepath.Clean(dir))
	}
	return &activity, nil
}

func readStreams(path string) (*Streams, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open streams: %w", err)
	}
	defer f.Close()
	s, err := DecodeStreams(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
