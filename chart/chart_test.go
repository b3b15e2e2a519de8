package chart

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	segments "github.com/lucasjlepore/workout-segments"
)

func intervalAnalysis(t *testing.T) *segments.Analysis {
	t.Helper()
	samples := make([]segments.Sample, 0, 900)
	dist := 0.0
	for i := 0; i < 900; i++ {
		speed := 2.6
		if (i/120)%2 == 1 {
			speed = 4.4
		}
		dist += speed
		samples = append(samples, segments.Sample{T: i, DistanceM: dist})
	}
	a, err := segments.Analyze(segments.Activity{ID: "chart", Samples: samples}, segments.AnalyzeOptions{Kind: segments.KindInterval})
	require.NoError(t, err)
	return a
}

func TestPlot(t *testing.T) {
	t.Parallel()
	a := intervalAnalysis(t)

	p, err := Plot(a.Stream, a.Segments, "Intervals")
	require.NoError(t, err)
	assert.Equal(t, "Intervals", p.Title.Text)
	assert.Equal(t, 0.0, p.Y.Min)
	assert.Greater(t, p.Y.Max, 4.4)
	assert.InDelta(t, 0, p.X.Min, 1e-9)
	assert.InDelta(t, 15, p.X.Max, 1e-9)
}

func TestPlotEmptyStream(t *testing.T) {
	t.Parallel()
	_, err := Plot(segments.Stream{}, nil, "")
	assert.True(t, errors.Is(err, ErrEmptyStream))
}

func TestRenderSegments(t *testing.T) {
	t.Parallel()
	a := intervalAnalysis(t)
	dir := t.TempDir()

	for _, name := range []string{"segments.png", "segments.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, RenderSegments(a.Stream, a.Segments, a.ActivityID, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}
