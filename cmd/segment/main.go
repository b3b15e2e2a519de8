package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	segments "github.com/lucasjlepore/workout-segments"
	"github.com/lucasjlepore/workout-segments/pipeline"
	"github.com/lucasjlepore/workout-segments/store"
)

func main() {
	var (
		fitPath    = flag.String("fit", "", "Path to input .fit file")
		stravaDir  = flag.String("strava", "", "Strava export directory (streams.json [+ activity.json])")
		activityID = flag.String("id", "", "Reprocess an activity already in the database")
		outDir     = flag.String("out", "", "Output directory")
		format     = flag.String("format", "parquet", "Segment and stream table format: parquet|csv")
		overwrite  = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
		chart      = flag.Bool("chart", false, "Render segments.png")
		kind       = flag.String("kind", "auto", "Workout kind: auto|interval|hill|easy")
		configPath = flag.String("config", "", "Detector threshold overrides (.json)")
		forceLaps  = flag.Bool("force-laps", false, "Classify recorded laps even when they were auto-triggered")
		ignoreLaps = flag.Bool("ignore-laps", false, "Always segment the per-second stream")
		dbDriver   = flag.String("db-driver", "sqlite", "Database driver: sqlite|pgx")
		dbDSN      = flag.String("db", "", "Database file (sqlite) or connection string (pgx); empty disables persistence")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s (--fit input.fit | --strava dir | --id activity --db segments.db) [--out outdir] [--format parquet|csv]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	input := pipeline.Input{FitPath: *fitPath, StravaDir: *stravaDir, ActivityID: *activityID}
	if input.Kind() == "" || (strings.TrimSpace(*outDir) == "" && strings.TrimSpace(*dbDSN) == "") {
		flag.Usage()
		os.Exit(2)
	}
	workoutKind, err := segments.ParseWorkoutKind(*kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	cfg, err := segments.LoadDetectorConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := pipeline.Options{
		Input:      input,
		OutDir:     *outDir,
		Format:     *format,
		Overwrite:  *overwrite,
		CopySource: true,
		Chart:      *chart,
		Analyze: segments.AnalyzeOptions{
			Kind:       workoutKind,
			Config:     &cfg,
			ForceLaps:  *forceLaps,
			IgnoreLaps: *ignoreLaps,
		},
	}
	if strings.TrimSpace(*dbDSN) != "" {
		db, err := store.Open(ctx, store.Config{Driver: *dbDriver, DSN: *dbDSN})
		if err != nil {
			fmt.Fprintf(os.Stderr, "open database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		opts.Store = db
	}

	result, err := pipeline.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "segment failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("segment complete\n")
	fmt.Printf("Activity:            %s (%s, %s)\n", result.ActivityID, result.InputKind, result.Source)
	fmt.Printf("Segments:            %d\n", result.SegmentCount)
	if result.CanonicalLabel != "" {
		fmt.Printf("Workout:             %s\n", result.CanonicalLabel)
	}
	if result.OutputDir != "" {
		fmt.Printf("Output dir:          %s\n", result.OutputDir)
		fmt.Printf("manifest.json:       %s\n", result.ManifestPath)
		fmt.Printf("segments.json:       %s\n", result.SegmentsPath)
		fmt.Printf("segments table:      %s\n", result.SegmentsTable)
		fmt.Printf("stream table:        %s\n", result.StreamPath)
		fmt.Printf("timeline:            %s\n", result.TimelinePath)
	}
	if result.ChartPath != "" {
		fmt.Printf("chart:               %s\n", result.ChartPath)
	}
	if result.SourceCopyPath != "" {
		fmt.Printf("source copy:         %s\n", result.SourceCopyPath)
	}
	if result.RunID != "" {
		fmt.Printf("run id:              %s\n", result.RunID)
	}
}
