package segments

import "gonum.org/v1/gonum/stat"

// entryIndex is the point a span is measured from: the point just before it, or
// its own first point at the start of the stream.
func entryIndex(span Span) int {
	if span.Lo > 0 {
		return span.Lo - 1
	}
	return span.Lo
}

// Summarize reduces a span of the stream to one labeled segment.
func Summarize(stream Stream, span Span, typ SegmentType, cfg DetectorConfig) Segment {
	entry := stream.Points[entryIndex(span)]
	last := stream.Points[span.Hi]

	seg := Segment{
		Type:             typ,
		StartSec:         stream.Points[span.Lo].T,
		EndSec:           last.T,
		DistanceM:        last.DistanceM - entry.DistanceM,
		TotalDurationSec: last.T - entry.T,
	}

	hr := make([]float64, 0, span.Len())
	for i := span.Lo; i <= span.Hi; i++ {
		p := stream.Points[i]
		if p.SpeedMps > cfg.MinMovingSpeedMps {
			seg.MovingDurationSec++
		}
		if p.HeartRate != nil {
			hr = append(hr, *p.HeartRate)
		}
	}
	if len(hr) > 0 {
		seg.AvgHeartRate = stat.Mean(hr, nil)
	}
	seg.AvgPaceSecPerKm = paceSecPerKm(seg.DistanceM, float64(seg.MovingDurationSec))
	return seg
}

// SummarizeClimb is Summarize plus elevation gain, average grade and VAM.
// The climb metrics stay nil when elevation is unknown at either end.
func SummarizeClimb(stream Stream, span Span, typ SegmentType, cfg DetectorConfig) Segment {
	seg := Summarize(stream, span, typ, cfg)

	from := stream.Points[entryIndex(span)].ElevationM
	if from == nil {
		from = stream.Points[span.Lo].ElevationM
	}
	to := stream.Points[span.Hi].ElevationM
	if from == nil || to == nil {
		return seg
	}

	gain := *to - *from
	grade := safeDiv(gain, seg.DistanceM) * 100
	vam := safeDiv(gain, float64(seg.MovingDurationSec)) * secondsPerHour
	seg.ElevationGainM = &gain
	seg.AvgGradePct = &grade
	seg.VAMMPerHr = &vam
	return seg
}

// SplitByDistance partitions a span into consecutive chunks of cfg.SplitDistanceM
// in arrival order. A chunk closes on the first second that reaches the split
// distance; the final partial chunk is always kept.
func SplitByDistance(stream Stream, span Span, typ SegmentType, cfg DetectorConfig) []Segment {
	if span.Empty() {
		return nil
	}

	var out []Segment
	chunkLo := span.Lo
	entryDist := stream.Points[entryIndex(span)].DistanceM
	for i := span.Lo; i <= span.Hi; i++ {
		d := stream.Points[i].DistanceM
		if d-entryDist < cfg.SplitDistanceM {
			continue
		}
		seg := Summarize(stream, Span{Lo: chunkLo, Hi: i}, typ, cfg)
		seg.Index = len(out) + 1
		out = append(out, seg)
		chunkLo = i + 1
		entryDist = d
	}
	if chunkLo <= span.Hi {
		seg := Summarize(stream, Span{Lo: chunkLo, Hi: span.Hi}, typ, cfg)
		seg.Index = len(out) + 1
		out = append(out, seg)
	}
	return out
}

func paceSecPerKm(distanceM, movingSec float64) float64 {
	speed := safeDiv(distanceM, movingSec)
	if speed <= 0 {
		return 0
	}
	return 1000 / speed
}
