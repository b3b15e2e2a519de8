package strava

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	segments "github.com/lucasjlepore/workout-segments"
)

const streamsJSON = `{
  "time": {"data": [0, 1, 2, 4, 5, 6], "series_type": "time", "original_size": 6, "resolution": "high"},
  "distance": {"data": [0, 3.1, 6.2, null, 15.5, 18.6], "series_type": "time"},
  "velocity_smooth": {"data": [0, 3.1, 3.1, 3.1, 3.1, 3.1]},
  "heartrate": {"data": [120, 121, null, 125]},
  "altitude": {"data": [10, 10.2, 10.4, 10.6, 10.8, 11]}
}`

const activityJSON = `{
  "id": 9876543210,
  "name": "Track Tuesday",
  "description": "6x400",
  "type": "Run",
  "sport_type": "TrailRun",
  "start_date": "2026-03-03T18:30:00Z",
  "laps": [
    {"lap_index": 1, "name": "Lap 1", "start_index": 0, "end_index": 2, "distance": 6.2, "moving_time": 2, "elapsed_time": 2, "average_speed": 3.1},
    {"lap_index": 2, "name": "Lap 2", "start_index": 2, "end_index": 5, "distance": 12.4, "moving_time": 4, "elapsed_time": 4, "average_speed": 0},
    {"lap_index": 3, "name": "Cooldown", "start_index": 5, "end_index": 9, "distance": 3.1, "moving_time": 1, "elapsed_time": 1, "average_speed": 3.1, "total_elevation_gain": 0.2}
  ]
}`

func TestDecodeStreams(t *testing.T) {
	t.Parallel()
	s, err := DecodeStreams(strings.NewReader(streamsJSON))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 4, 5, 6}, s.Time)
	assert.Nil(t, s.Distance[3])
	assert.Len(t, s.Heartrate, 4)

	samples := s.Samples()
	require.Len(t, samples, 5, "second without distance is skipped")
	assert.Equal(t, 5, samples[3].T)
	assert.Equal(t, 15.5, samples[3].DistanceM)
	assert.Nil(t, samples[2].HeartRate, "null heart rate stays missing")
	assert.Nil(t, samples[3].HeartRate, "heart rate beyond the series length is missing")
	require.NotNil(t, samples[4].ElevationM)
	assert.Equal(t, 11.0, *samples[4].ElevationM)
}

func TestDecodeStreamsRequiresTimeAndDistance(t *testing.T) {
	t.Parallel()
	for name, body := range map[string]string{
		"time":     `{"distance": {"data": [0, 1]}}`,
		"distance": `{"time": {"data": [0, 1]}}`,
	} {
		_, err := DecodeStreams(strings.NewReader(body))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrMissingStream), name)
		assert.Contains(t, err.Error(), name)
	}

	_, err := DecodeStreams(strings.NewReader(`{"time": [`))
	assert.ErrorContains(t, err, "decode streams")
}

func TestSecondAtClamps(t *testing.T) {
	t.Parallel()
	s := &Streams{Time: []int{0, 1, 3}}
	assert.Equal(t, 0, s.SecondAt(-4))
	assert.Equal(t, 3, s.SecondAt(2))
	assert.Equal(t, 3, s.SecondAt(10))
	assert.Equal(t, 0, (&Streams{}).SecondAt(1))
}

func TestActivityRecordedLaps(t *testing.T) {
	t.Parallel()
	s, err := DecodeStreams(strings.NewReader(streamsJSON))
	require.NoError(t, err)
	a, err := DecodeActivity(strings.NewReader(activityJSON))
	require.NoError(t, err)

	laps := a.RecordedLaps(s)
	require.Len(t, laps, 3)

	assert.Equal(t, 0, laps[0].StartSec)
	assert.Equal(t, 1, laps[0].EndSec, "shared boundary index belongs to the next lap")
	assert.Equal(t, "manual", laps[0].Trigger)

	assert.Equal(t, 2, laps[1].StartSec)
	assert.Equal(t, 5, laps[1].EndSec)
	assert.InDelta(t, 3.1, laps[1].AverageSpeedMps, 1e-9, "speed derived from distance and moving time")

	assert.Equal(t, 6, laps[2].StartSec)
	assert.Equal(t, 6, laps[2].EndSec, "end index is clamped to the stream")
	assert.Equal(t, "unknown", laps[2].Trigger)
	assert.False(t, laps[2].AutoTriggered())
	assert.Equal(t, 0.2, laps[2].ElevationGainM)
}

func TestActivityRecordedLapsWithoutLaps(t *testing.T) {
	t.Parallel()
	a := &Activity{}
	assert.Nil(t, a.RecordedLaps(&Streams{Time: []int{0}}))
}

func TestToActivity(t *testing.T) {
	t.Parallel()
	s, err := DecodeStreams(strings.NewReader(streamsJSON))
	require.NoError(t, err)
	a, err := DecodeActivity(strings.NewReader(activityJSON))
	require.NoError(t, err)

	got := a.ToActivity(s)
	assert.Equal(t, "9876543210", got.ID)
	assert.Equal(t, "Track Tuesday", got.Name)
	assert.Equal(t, "6x400", got.Description)
	assert.Equal(t, "TrailRun", got.Sport)
	assert.Equal(t, 2026, got.StartTime.Year())
	assert.Len(t, got.Samples, 5)
	assert.Len(t, got.Laps, 3)

	a.SportType = ""
	assert.Equal(t, "Run", a.ToActivity(s).Sport)
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	t.Run("streams and activity", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, StreamsFile), []byte(streamsJSON), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ActivityFile), []byte(activityJSON), 0o644))

		a, err := LoadDir(dir)
		require.NoError(t, err)
		assert.Equal(t, "9876543210", a.ID)
		assert.Len(t, a.Laps, 3)

		analysis, err := segments.Analyze(*a, segments.AnalyzeOptions{})
		require.NoError(t, err)
		assert.Equal(t, segments.KindInterval, analysis.Kind)
	})

	t.Run("streams only", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "12345")
		require.NoError(t, os.Mkdir(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, StreamsFile), []byte(streamsJSON), 0o644))

		a, err := LoadDir(dir)
		require.NoError(t, err)
		assert.Equal(t, "12345", a.ID)
		assert.Empty(t, a.Laps)
		assert.Len(t, a.Samples, 5)
	})

	t.Run("missing streams", func(t *testing.T) {
		t.Parallel()
		_, err := LoadDir(t.TempDir())
		assert.ErrorContains(t, err, "open streams")
	})

	t.Run("bad activity", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, StreamsFile), []byte(streamsJSON), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ActivityFile), []byte(`{"id": "x"`), 0o644))

		_, err := LoadDir(dir)
		assert.ErrorContains(t, err, "decode activity")
	})
}
