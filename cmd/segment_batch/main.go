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
		inDir      = flag.String("in", "", "Directory of .fit files and Strava export directories")
		reprocess  = flag.Bool("reprocess", false, "Re-segment every activity already in the database instead of reading --in")
		outDir     = flag.String("out", "", "Output root; each activity writes to <out>/<name>")
		format     = flag.String("format", "parquet", "Segment and stream table format: parquet|csv")
		overwrite  = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
		chart      = flag.Bool("chart", false, "Render segments.png for each activity")
		workers    = flag.Int("workers", 0, "Activities processed in parallel (0 = GOMAXPROCS)")
		kind       = flag.String("kind", "auto", "Workout kind: auto|interval|hill|easy")
		configPath = flag.String("config", "", "Detector threshold overrides (.json)")
		dbDriver   = flag.String("db-driver", "sqlite", "Database driver: sqlite|pgx")
		dbDSN      = flag.String("db", "", "Database file (sqlite) or connection string (pgx)")
		quiet      = flag.Bool("quiet", false, "Suppress per-activity log lines")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s (--in dir | --reprocess) [--out outdir] [--db segments.db] [--workers 4]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if (strings.TrimSpace(*inDir) == "") == !*reprocess {
		flag.Usage()
		os.Exit(2)
	}
	if *reprocess && strings.TrimSpace(*dbDSN) == "" {
		fmt.Fprintln(os.Stderr, "--reprocess requires --db")
		os.Exit(2)
	}
	if strings.TrimSpace(*outDir) == "" && strings.TrimSpace(*dbDSN) == "" {
		fmt.Fprintln(os.Stderr, "one of --out or --db is required")
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
	if *quiet {
		segments.SetLogger(nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var db *store.Store
	if strings.TrimSpace(*dbDSN) != "" {
		db, err = store.Open(ctx, store.Config{Driver: *dbDriver, DSN: *dbDSN})
		if err != nil {
			fmt.Fprintf(os.Stderr, "open database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var inputs []pipeline.Input
	if *reprocess {
		inputs, err = pipeline.StoredInputs(ctx, db)
	} else {
		inputs, err = pipeline.DiscoverInputs(*inDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "list activities: %v\n", err)
		os.Exit(1)
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "no activities found")
		os.Exit(1)
	}

	result, err := pipeline.RunBatch(ctx, pipeline.BatchOptions{
		Inputs:    inputs,
		OutDir:    *outDir,
		Workers:   *workers,
		Format:    *format,
		Overwrite: *overwrite,
		Chart:     *chart,
		Analyze:   segments.AnalyzeOptions{Kind: workoutKind, Config: &cfg},
		Store:     db,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "segment_batch failed: %v\n", err)
		os.Exit(1)
	}

	for _, item := range result.Items {
		if item.Err != nil {
			fmt.Printf("FAIL  %-24s %v\n", item.Input.Name(), item.Err)
			continue
		}
		fmt.Printf("ok    %-24s %3d segments  %s\n", item.Input.Name(), item.Result.SegmentCount, item.Result.CanonicalLabel)
	}
	fmt.Printf("segment_batch complete: %d succeeded, %d failed\n", result.Succeeded, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}
