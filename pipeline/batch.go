package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	segments "github.com/lucasjlepore/workout-segments"
	"github.com/lucasjlepore/workout-segments/store"
	"github.com/lucasjlepore/workout-segments/strava"
)

// BatchOptions configures RunBatch. Each input writes to OutDir/<input name>; inputs
// whose names collide get the input kind and then a counter appended.
type BatchOptions struct {
	Inputs    []Input
	OutDir    string
	Workers   int // defaults to GOMAXPROCS
	Format    string
	Overwrite bool
	Chart     bool
	Analyze   segments.AnalyzeOptions
	Store     *store.Store
}

// BatchItem is the outcome of one input.
type BatchItem struct {
	Input  Input
	Result *Result
	Err    error
}

// BatchResult lists the outcomes in input order.
type BatchResult struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
}

// RunBatch runs every input through Run with at most Workers in flight. A failing
// input is recorded in its item and does not stop the others; only context
// cancellation aborts the batch.
func RunBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	if strings.TrimSpace(opts.OutDir) == "" && opts.Store == nil {
		return nil, fmt.Errorf("output directory or store is required")
	}
	if _, err := normalizeFormat(opts.Format); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	dirs := outputDirNames(opts.Inputs)
	items := make([]BatchItem, len(opts.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range opts.Inputs {
		i, in := i, in
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runOpts := Options{
				Input:     in,
				Format:    opts.Format,
				Overwrite: opts.Overwrite,
				Chart:     opts.Chart,
				Analyze:   opts.Analyze,
				Store:     opts.Store,
			}
			if opts.OutDir != "" {
				runOpts.OutDir = filepath.Join(opts.OutDir, dirs[i])
			}
			res, err := Run(gctx, runOpts)
			items[i] = BatchItem{Input: in, Result: res, Err: err}
			if err != nil {
				logf("%s: %v", in.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &BatchResult{Items: items}
	for _, item := range items {
		if item.Err != nil {
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	logf("batch finished: %d succeeded, %d failed", out.Succeeded, out.Failed)
	return out, nil
}

// outputDirNames gives every input its own directory name. Names are compared
// case-insensitively so they stay distinct on case-folding filesystems.
func outputDirNames(inputs []Input) []string {
	used := make(map[string]bool, len(inputs))
	names := make([]string, len(inputs))
	for i, in := range inputs {
		candidates := []string{in.Name(), in.Name() + "_" + in.Kind()}
		name := ""
		for _, c := range candidates {
			if !used[strings.ToLower(c)] {
				name = c
				break
			}
		}
		for n := 2; name == ""; n++ {
			if c := fmt.Sprintf("%s_%s_%d", in.Name(), in.Kind(), n); !used[strings.ToLower(c)] {
				name = c
			}
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// DiscoverInputs lists the activities under dir: every .fit file and every
// subdirectory holding a Strava streams.json, sorted by name.
func DiscoverInputs(dir string) ([]Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var inputs []Input
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			if _, err := os.Stat(filepath.Join(path, strava.StreamsFile)); err == nil {
				inputs = append(inputs, Input{StravaDir: path})
			}
		case strings.EqualFold(filepath.Ext(e.Name()), ".fit"):
			inputs = append(inputs, Input{FitPath: path})
		}
	}
	sort.Slice(inputs, func(i, j int) bool {
		if a, b := inputs[i].Name(), inputs[j].Name(); a != b {
			return a < b
		}
		return inputs[i].Kind() < inputs[j].Kind()
	})
	return inputs, nil
}

// StoredInputs lists every activity in the store as a reprocessing input.
func StoredInputs(ctx context.Context, s *store.Store) ([]Input, error) {
	ids, err := s.ListActivities(ctx)
	if err != nil {
		return nil, err
	}
	inputs := make([]Input, 0, len(ids))
	for _, id := range ids {
		inputs = append(inputs, Input{ActivityID: id})
	}
	return inputs, nil
}
