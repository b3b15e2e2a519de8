package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	segments "github.com/lucasjlepore/workout-segments"
	"github.com/lucasjlepore/workout-segments/strava"
)

func main() {
	var (
		kind       = flag.String("kind", "auto", "Workout kind: auto|interval|hill|easy (auto reads the activity description)")
		configPath = flag.String("config", "", "Detector threshold overrides (.json)")
		forceLaps  = flag.Bool("force-laps", false, "Classify recorded laps even when they were auto-triggered")
		ignoreLaps = flag.Bool("ignore-laps", false, "Always segment the per-second stream")
		jsonOut    = flag.Bool("json", false, "Emit full analysis as JSON")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <activity.fit | strava-export-dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
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

	path := flag.Arg(0)
	activity, err := load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}
	analysis, err := segments.Analyze(*activity, segments.AnalyzeOptions{
		Kind:       workoutKind,
		Config:     &cfg,
		ForceLaps:  *forceLaps,
		IgnoreLaps: *ignoreLaps,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(analysis.Notes)
}

func load(path string) (*segments.Activity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return strava.LoadDir(path)
	}
	return segments.LoadFIT(path)
}
