// Package pipeline runs activities end to end: load from a FIT file, a Strava
// export or the store, segment, write the artifacts and optionally persist.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	segments "github.com/lucasjlepore/workout-segments"
	"github.com/lucasjlepore/workout-segments/chart"
	"github.com/lucasjlepore/workout-segments/strava"
)

// ErrNoSamples is returned for inputs without any samples or recorded laps.
var ErrNoSamples = errors.New("activity has no samples or laps")

// Run executes the pipeline for one activity and writes all requested artifacts.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Input.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.OutDir) == "" && opts.Store == nil {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.OutDir) != "" {
		if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
			return nil, err
		}
	}

	activity, err := loadActivity(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(activity.Samples) == 0 && len(activity.Laps) == 0 {
		return nil, fmt.Errorf("%s: %w", opts.Input.Name(), ErrNoSamples)
	}

	analysis, err := segments.Analyze(*activity, opts.Analyze)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", activity.ID, err)
	}
	logf("activity %s: %d segments from %s (%s)", activity.ID, len(analysis.Segments), analysis.Source, analysis.Kind)

	res := &Result{
		ActivityID:     activity.ID,
		InputKind:      opts.Input.Kind(),
		Source:         analysis.Source,
		SegmentCount:   len(analysis.Segments),
		CanonicalLabel: analysis.Structure.CanonicalLabel,
		Analysis:       analysis,
	}

	if opts.Store != nil {
		if opts.Input.Kind() != "store" {
			if err := opts.Store.SaveActivity(ctx, activity, opts.Input.Kind()); err != nil {
				return nil, fmt.Errorf("save activity: %w", err)
			}
		}
		if res.RunID, err = opts.Store.ReplaceSegments(ctx, analysis); err != nil {
			return nil, fmt.Errorf("save segments: %w", err)
		}
	}

	if strings.TrimSpace(opts.OutDir) == "" {
		return res, nil
	}
	if err := writeArtifacts(opts, format, activity, analysis, res); err != nil {
		return nil, err
	}
	return res, nil
}

func loadActivity(ctx context.Context, opts Options) (*segments.Activity, error) {
	switch opts.Input.Kind() {
	case "fit":
		a, err := segments.LoadFIT(opts.FitPath)
		if err != nil {
			return nil, fmt.Errorf("load fit: %w", err)
		}
		return a, nil
	case "strava":
		a, err := strava.LoadDir(opts.StravaDir)
		if err != nil {
			return nil, fmt.Errorf("load strava export: %w", err)
		}
		return a, nil
	default:
		if opts.Store == nil {
			return nil, fmt.Errorf("activity id %s requires a store", opts.ActivityID)
		}
		a, err := opts.Store.LoadActivity(ctx, opts.ActivityID)
		if err != nil {
			return nil, fmt.Errorf("load stored activity: %w", err)
		}
		return a, nil
	}
}

func writeArtifacts(opts Options, format string, activity *segments.Activity, analysis *segments.Analysis, res *Result) error {
	res.OutputDir = opts.OutDir

	res.SegmentsPath = filepath.Join(opts.OutDir, "segments.json")
	if err := writeJSON(res.SegmentsPath, SegmentsFile{
		ActivityID: analysis.ActivityID,
		Name:       analysis.Name,
		Kind:       analysis.Kind,
		Source:     analysis.Source,
		Config:     analysis.Config,
		Segments:   analysis.Segments,
		Structure:  analysis.Structure,
	}); err != nil {
		return fmt.Errorf("write segments.json: %w", err)
	}

	res.SegmentsTable = filepath.Join(opts.OutDir, "segments."+format)
	res.StreamPath = filepath.Join(opts.OutDir, "stream."+format)
	switch format {
	case "csv":
		if err := writeSegmentsCSV(res.SegmentsTable, analysis.Segments); err != nil {
			return fmt.Errorf("write segments csv: %w", err)
		}
		if err := writeStreamCSV(res.StreamPath, analysis.Stream); err != nil {
			return fmt.Errorf("write stream csv: %w", err)
		}
	case "parquet":
		if err := writeParquet(res.SegmentsTable, segmentRows(analysis.Segments)); err != nil {
			return fmt.Errorf("write segments parquet: %w", err)
		}
		if err := writeParquet(res.StreamPath, streamRows(analysis.Stream)); err != nil {
			return fmt.Errorf("write stream parquet: %w", err)
		}
	}

	res.TimelinePath = filepath.Join(opts.OutDir, "timeline.txt")
	if err := os.WriteFile(res.TimelinePath, []byte(analysis.Notes), 0o644); err != nil {
		return fmt.Errorf("write timeline.txt: %w", err)
	}

	if opts.Chart {
		if analysis.Stream.Len() == 0 {
			logf("activity %s: no stream, chart skipped", activity.ID)
		} else {
			res.ChartPath = filepath.Join(opts.OutDir, "segments.png")
			title := activity.Name
			if title == "" {
				title = activity.ID
			}
			if err := chart.RenderSegments(analysis.Stream, analysis.Segments, title, res.ChartPath); err != nil {
				return fmt.Errorf("render chart: %w", err)
			}
		}
	}

	sha := ""
	if opts.Input.Kind() == "fit" {
		var err error
		if sha, err = fileSHA256(opts.FitPath); err != nil {
			return fmt.Errorf("hash source: %w", err)
		}
		if opts.CopySource {
			res.SourceCopyPath = filepath.Join(opts.OutDir, "source.fit")
			if err := copyFile(opts.FitPath, res.SourceCopyPath); err != nil {
				return fmt.Errorf("copy source fit file: %w", err)
			}
		}
	}

	var files []string
	for _, p := range []string{res.SegmentsPath, res.SegmentsTable, res.StreamPath, res.TimelinePath, res.ChartPath, res.SourceCopyPath} {
		if p != "" {
			files = append(files, filepath.Base(p))
		}
	}
	res.ManifestPath = filepath.Join(opts.OutDir, "manifest.json")
	manifest := Manifest{
		FormatVersion:  ManifestFormatVersion,
		GeneratedAt:    time.Now().UTC(),
		Input:          opts.Input,
		InputKind:      opts.Input.Kind(),
		SourceSHA256:   sha,
		ActivityID:     activity.ID,
		ActivityName:   activity.Name,
		Kind:           analysis.Kind,
		Source:         analysis.Source,
		SampleCount:    len(activity.Samples),
		LapCount:       len(activity.Laps),
		SegmentCount:   len(analysis.Segments),
		CanonicalLabel: analysis.Structure.CanonicalLabel,
		RunID:          res.RunID,
		Files:          files,
	}
	if err := writeJSON(res.ManifestPath, manifest); err != nil {
		return fmt.Errorf("write manifest.json: %w", err)
	}
	return nil
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func logf(format string, v ...interface{}) {
	segments.Logf("[pipeline] "+format, v...)
}

