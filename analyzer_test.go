package segments

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tormoder/fit"
)

func TestAnalyzeStreamPath(t *testing.T) {
	a, err := Analyze(Activity{ID: "repeats", Samples: repeatSamples()}, AnalyzeOptions{})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Source != SourceStream || a.Kind != KindInterval {
		t.Fatalf("unexpected source/kind %s/%s", a.Source, a.Kind)
	}
	checkPartition(t, a.Stream, a.Segments)

	const wantLabel = "warmup 1.5km + 3x400m @4:10/km w/ 1:32 rest + cooldown 1.2km"
	if a.Structure.CanonicalLabel != wantLabel {
		t.Fatalf("canonical label = %q, want %q", a.Structure.CanonicalLabel, wantLabel)
	}
	if a.Structure.MainSet == nil || a.Structure.MainSet.Reps != 3 {
		t.Fatalf("expected a 3-rep main set, got %+v", a.Structure.MainSet)
	}
	var blockTypes []string
	for _, b := range a.Structure.Blocks {
		blockTypes = append(blockTypes, b.BlockType)
	}
	if got := strings.Join(blockTypes, ","); got != "warmup,main_set,cooldown" {
		t.Fatalf("unexpected blocks %s", got)
	}
	if !strings.Contains(a.Notes, "WORKOUT 3") || !strings.Contains(a.Notes, wantLabel) {
		t.Fatalf("notes missing timeline rows or label:\n%s", a.Notes)
	}
}

func TestAnalyzeRecordedLaps(t *testing.T) {
	laps := speedLaps(3.0, 3.1, 5.0, 2.0, 5.0, 3.1, 3.0)
	activity := Activity{ID: "laps", Samples: buildSamples(phase{2100, 3.0}), Laps: laps}

	a, err := Analyze(activity, AnalyzeOptions{Kind: KindInterval})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Source != SourceLaps {
		t.Fatalf("expected lap classification, got source %s", a.Source)
	}
	if len(a.Segments) != len(laps) {
		t.Fatalf("expected one segment per lap, got %d", len(a.Segments))
	}
	if a.Segments[2].Type != TypeWorkout || a.Segments[4].Type != TypeWorkout {
		t.Fatalf("expected laps 3 and 5 as WORKOUT, got %v", segmentTypes(a.Segments))
	}
	if a.Structure.MainSet == nil || a.Structure.MainSet.Reps != 2 {
		t.Fatalf("expected a 2-rep main set, got %+v", a.Structure.MainSet)
	}

	a, err = Analyze(activity, AnalyzeOptions{Kind: KindInterval, IgnoreLaps: true})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Source != SourceStream {
		t.Fatalf("IgnoreLaps should segment the stream, got %s", a.Source)
	}
}

func TestAnalyzeAutoLapsUseStream(t *testing.T) {
	laps := speedLaps(3.0, 5.0, 3.0)
	for i := range laps {
		laps[i].Trigger = "distance"
	}
	activity := Activity{ID: "autolaps", Samples: buildSamples(phase{900, 3.0}), Laps: laps}

	a, err := Analyze(activity, AnalyzeOptions{Kind: KindInterval})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Source != SourceStream {
		t.Fatalf("auto-lap splits should not drive classification, got %s", a.Source)
	}

	a, err = Analyze(activity, AnalyzeOptions{Kind: KindInterval, ForceLaps: true})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Source != SourceLaps {
		t.Fatalf("ForceLaps should classify recorded laps, got %s", a.Source)
	}
}

func TestAnalyzeEasyRun(t *testing.T) {
	activity := Activity{
		ID:          "easy",
		Description: "Easy run",
		Samples:     buildSamples(phase{1200, 3.0}),
		Laps:        speedLaps(3.0, 3.2),
	}
	a, err := Analyze(activity, AnalyzeOptions{})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Kind != KindEasy || a.Source != SourceStream {
		t.Fatalf("unexpected kind/source %s/%s", a.Kind, a.Source)
	}
	for _, s := range a.Segments {
		if s.Type != TypeActivity {
			t.Fatalf("easy run should only have ACTIVITY splits, got %s", s.Type)
		}
	}
	if a.Structure.CanonicalLabel != "easy 3.6km @5:34/km" {
		t.Fatalf("unexpected label %q", a.Structure.CanonicalLabel)
	}
}

func TestAnalyzeHillFromDescription(t *testing.T) {
	a, err := Analyze(Activity{ID: "h", Description: "Hill repeats", Samples: buildSamples(phase{600, 3.0})}, AnalyzeOptions{})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Kind != KindHill {
		t.Fatalf("expected hill kind, got %s", a.Kind)
	}
	// No elevation means no climbs, so the run falls back to 1 km splits.
	if a.Source != SourceStream || len(a.Segments) == 0 {
		t.Fatalf("expected stream segments, got %s with %d", a.Source, len(a.Segments))
	}
	for _, s := range a.Segments {
		if s.Type != TypeActivity {
			t.Fatalf("expected only ACTIVITY splits, got %v", segmentTypes(a.Segments))
		}
	}
}

func TestAnalyzeEmptyActivity(t *testing.T) {
	a, err := Analyze(Activity{ID: "empty"}, AnalyzeOptions{Kind: KindInterval})
	if err != nil {
		t.Fatalf("empty activity should not be an error: %v", err)
	}
	if len(a.Segments) != 0 {
		t.Fatalf("expected no segments, got %d", len(a.Segments))
	}
	if !strings.Contains(a.Notes, "No segments") {
		t.Fatalf("unexpected notes:\n%s", a.Notes)
	}
}

func TestAnalyzeRejectsUnknownKind(t *testing.T) {
	if _, err := Analyze(Activity{}, AnalyzeOptions{Kind: "tempo"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestAnalyzeCustomConfig(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.MinSpeedMps = 2.8
	a, err := Analyze(Activity{ID: "b", Samples: buildSamples(phase{1200, 3.0})}, AnalyzeOptions{Kind: KindInterval, Config: &cfg})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Segments[0].Type != TypeWorkout && a.Segments[0].Type != TypeWarmup {
		t.Fatalf("lowered threshold should detect an effort, got %v", segmentTypes(a.Segments))
	}
	if a.Config.MinSpeedMps != 2.8 {
		t.Fatalf("analysis should record the config used")
	}
}

func TestDecodeFIT(t *testing.T) {
	data := buildTestFIT(t)
	activity, err := DecodeFIT(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeFIT error: %v", err)
	}

	if len(activity.Samples) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(activity.Samples))
	}
	s := activity.Samples[3]
	if s.T != 3 || s.DistanceM != 9 {
		t.Fatalf("unexpected sample %+v", s)
	}
	if s.HeartRate == nil || *s.HeartRate != 140 {
		t.Fatalf("expected heart rate 140, got %v", s.HeartRate)
	}
	if s.ElevationM == nil || *s.ElevationM != 103 {
		t.Fatalf("expected elevation 103, got %v", s.ElevationM)
	}

	if len(activity.Laps) != 2 {
		t.Fatalf("expected 2 laps, got %d", len(activity.Laps))
	}
	first, second := activity.Laps[0], activity.Laps[1]
	if first.StartSec != 0 || first.EndSec != 4 || first.Trigger != "manual" || first.Name != "Lap 1" {
		t.Fatalf("unexpected first lap %+v", first)
	}
	if second.StartSec != 5 || second.EndSec != 9 || second.Trigger != "session_end" {
		t.Fatalf("unexpected second lap %+v", second)
	}
	if first.MovingDurationSec != 5 || first.DistanceM != 15 {
		t.Fatalf("unexpected first lap totals %+v", first)
	}
}

func TestAnalyzeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "morning_run.fit")
	if err := os.WriteFile(path, buildTestFIT(t), 0o644); err != nil {
		t.Fatalf("write fit: %v", err)
	}
	a, err := AnalyzeFile(path, AnalyzeOptions{Kind: KindInterval, IgnoreLaps: true})
	if err != nil {
		t.Fatalf("AnalyzeFile error: %v", err)
	}
	if a.ActivityID != "morning_run" {
		t.Fatalf("expected activity id from file name, got %q", a.ActivityID)
	}
	checkPartition(t, a.Stream, a.Segments)
}

func buildTestFIT(t *testing.T) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}
	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	start := time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		record := fit.NewRecordMsg()
		record.Timestamp = start.Add(time.Duration(i) * time.Second)
		record.Distance = uint32(i * 300)
		record.Speed = 3000
		record.HeartRate = 140
		record.Altitude = uint16((100 + i + 500) * 5)
		activity.Records = append(activity.Records, record)
	}

	for i, trigger := range []fit.LapTrigger{fit.LapTriggerManual, fit.LapTriggerSessionEnd} {
		lap := fit.NewLapMsg()
		lap.StartTime = start.Add(time.Duration(i*5) * time.Second)
		lap.Timestamp = lap.StartTime.Add(4 * time.Second)
		lap.TotalTimerTime = 5000
		lap.TotalElapsedTime = 5000
		lap.TotalDistance = 1500
		lap.AvgSpeed = 3000
		lap.LapTrigger = trigger
		activity.Laps = append(activity.Laps, lap)
	}

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}
