package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	segments "github.com/lucasjlepore/workout-segments"
	"github.com/lucasjlepore/workout-segments/store"
)

// ManifestFormatVersion identifies the on-disk layout of an output directory.
const ManifestFormatVersion = "workout_segments_v1"

// Input names one activity. Exactly one field is set.
type Input struct {
	FitPath    string `json:"fit_path,omitempty"`
	StravaDir  string `json:"strava_dir,omitempty"`
	ActivityID string `json:"activity_id,omitempty"`
}

// Kind returns fit, strava or store, or "" when no field is set.
func (in Input) Kind() string {
	switch {
	case strings.TrimSpace(in.FitPath) != "":
		return "fit"
	case strings.TrimSpace(in.StravaDir) != "":
		return "strava"
	case strings.TrimSpace(in.ActivityID) != "":
		return "store"
	}
	return ""
}

// Name is a filesystem-safe label for the input, used for batch output directories.
func (in Input) Name() string {
	switch in.Kind() {
	case "fit":
		base := filepath.Base(in.FitPath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	case "strava":
		return filepath.Base(filepath.Clean(in.StravaDir))
	case "store":
		return in.ActivityID
	}
	return ""
}

// validate checks that exactly one field is set and that a stored activity ID can
// name an output directory.
func (in Input) validate() error {
	if n := in.count(); n != 1 {
		return fmt.Errorf("exactly one of fit path, strava dir or activity id is required (got %d)", n)
	}
	if in.Kind() == "store" {
		id := strings.TrimSpace(in.ActivityID)
		if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
			return fmt.Errorf("invalid activity id %q", in.ActivityID)
		}
	}
	return nil
}

func (in Input) count() int {
	n := 0
	for _, v := range []string{in.FitPath, in.StravaDir, in.ActivityID} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// Options configures a single pipeline run.
type Options struct {
	Input

	// OutDir receives the artifacts. It may be empty when Store is set, in
	// which case nothing is written to disk.
	OutDir     string
	Format     string // parquet|csv
	Overwrite  bool
	CopySource bool
	Chart      bool

	Analyze segments.AnalyzeOptions

	// Store, when set, receives the activity and its segments. It is also the
	// source for Input.ActivityID.
	Store *store.Store
}

// Result returns generated output paths.
type Result struct {
	ActivityID     string             `json:"activity_id"`
	InputKind      string             `json:"input_kind"`
	Source         string             `json:"source"`
	SegmentCount   int                `json:"segment_count"`
	OutputDir      string             `json:"output_dir,omitempty"`
	ManifestPath   string             `json:"manifest_path,omitempty"`
	SegmentsPath   string             `json:"segments_path,omitempty"`
	SegmentsTable  string             `json:"segments_table_path,omitempty"`
	StreamPath     string             `json:"stream_path,omitempty"`
	TimelinePath   string             `json:"timeline_path,omitempty"`
	ChartPath      string             `json:"chart_path,omitempty"`
	SourceCopyPath string             `json:"source_copy_path,omitempty"`
	RunID          string             `json:"run_id,omitempty"`
	CanonicalLabel string             `json:"canonical_label"`
	Analysis       *segments.Analysis `json:"-"`
}

// Manifest captures run metadata and the files written next to it.
type Manifest struct {
	FormatVersion  string               `json:"format_version"`
	GeneratedAt    time.Time            `json:"generated_at"`
	Input          Input                `json:"input"`
	InputKind      string               `json:"input_kind"`
	SourceSHA256   string               `json:"source_sha256,omitempty"`
	ActivityID     string               `json:"activity_id"`
	ActivityName   string               `json:"activity_name,omitempty"`
	Kind           segments.WorkoutKind `json:"kind"`
	Source         string               `json:"source"`
	SampleCount    int                  `json:"sample_count"`
	LapCount       int                  `json:"lap_count"`
	SegmentCount   int                  `json:"segment_count"`
	CanonicalLabel string               `json:"canonical_label"`
	RunID          string               `json:"run_id,omitempty"`
	Files          []string             `json:"files"`
}

// SegmentsFile is the JSON form of one analysis.
type SegmentsFile struct {
	ActivityID string                    `json:"activity_id"`
	Name       string                    `json:"name,omitempty"`
	Kind       segments.WorkoutKind      `json:"kind"`
	Source     string                    `json:"source"`
	Config     segments.DetectorConfig   `json:"config"`
	Segments   []segments.Segment        `json:"segments"`
	Structure  segments.WorkoutStructure `json:"workout_structure"`
}
