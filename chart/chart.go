// Package chart renders a segmented activity: the smoothed speed trace with
// each timeline segment shaded by its type.
package chart

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	segments "github.com/lucasjlepore/workout-segments"
)

const (
	Width  = 14 * vg.Inch
	Height = 6 * vg.Inch
)

// ErrEmptyStream is returned when there is nothing to draw.
var ErrEmptyStream = errors.New("chart: empty stream")

var typeColors = map[segments.SegmentType]color.RGBA{
	segments.TypeWarmup:     {R: 250, G: 200, B: 90, A: 90},
	segments.TypeWorkout:    {R: 220, G: 60, B: 60, A: 90},
	segments.TypeHillRepeat: {R: 220, G: 60, B: 60, A: 90},
	segments.TypeRest:       {R: 90, G: 160, B: 230, A: 90},
	segments.TypeCooldown:   {R: 120, G: 200, B: 140, A: 90},
	segments.TypeSteady:     {R: 170, G: 170, B: 170, A: 70},
	segments.TypeRun:        {R: 170, G: 170, B: 170, A: 70},
	segments.TypeActivity:   {R: 150, G: 120, B: 200, A: 70},
}

// Plot builds the speed chart for a stream and its segments. The X axis is
// minutes from the stream start.
func Plot(stream segments.Stream, segs []segments.Segment, title string) (*plot.Plot, error) {
	if stream.Len() == 0 {
		return nil, ErrEmptyStream
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (min)"
	p.Y.Label.Text = "Speed (m/s)"
	p.Legend.Top = true

	pts := make(plotter.XYs, 0, stream.Len())
	top := 0.0
	for _, pt := range stream.Points {
		pts = append(pts, plotter.XY{X: minutes(stream, pt.T), Y: pt.SpeedMps})
		if pt.SpeedMps > top {
			top = pt.SpeedMps
		}
	}
	if top <= 0 {
		top = 1
	}
	top *= 1.05

	legend := map[segments.SegmentType]bool{}
	for _, seg := range segs {
		fill, ok := typeColors[seg.Type]
		if !ok {
			fill = typeColors[segments.TypeRun]
		}
		x0, x1 := minutes(stream, seg.StartSec), minutes(stream, seg.EndSec+1)
		band, err := plotter.NewPolygon(plotter.XYs{{X: x0, Y: 0}, {X: x1, Y: 0}, {X: x1, Y: top}, {X: x0, Y: top}})
		if err != nil {
			return nil, fmt.Errorf("segment %s %d: %w", seg.Type, seg.Index, err)
		}
		band.Color = fill
		band.LineStyle.Width = 0
		p.Add(band)
		if !legend[seg.Type] {
			legend[seg.Type] = true
			p.Legend.Add(string(seg.Type), band)
		}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("speed line: %w", err)
	}
	line.Color = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("speed", line)

	p.Y.Min = 0
	p.Y.Max = top
	return p, nil
}

// RenderSegments writes the chart to path. The extension selects the format
// (png, svg, pdf, ...).
func RenderSegments(stream segments.Stream, segs []segments.Segment, title, path string) error {
	p, err := Plot(stream, segs, title)
	if err != nil {
		return err
	}
	if err := p.Save(Width, Height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

func minutes(stream segments.Stream, sec int) float64 {
	return float64(sec-stream.Start) / 60
}
