package segments

import (
	"math"
	"sort"
)

// Point is one second of the normalized stream.
type Point struct {
	T int `json:"t"`

	// DistanceM is the cumulative distance carried across unknown seconds so that
	// span distances are always defined. DistanceKnown is false where the value was
	// carried rather than recorded or interpolated.
	DistanceM     float64 `json:"distance_total_m"`
	DistanceKnown bool    `json:"distance_known"`

	SpeedMps         float64  `json:"speed_m_s"`
	PaceSecPerKm     *float64 `json:"pace_sec_per_km,omitempty"`
	HeartRate        *float64 `json:"heart_rate,omitempty"`
	ElevationM       *float64 `json:"elevation_m,omitempty"`
	GradePct         float64  `json:"grade_percent"`
	VerticalSpeedMps float64  `json:"vertical_speed_m_s"`
}

// Stream is a dense, contiguous per-second series: Points[i].T == Start+i.
type Stream struct {
	Start  int
	Points []Point
}

// Len returns the number of seconds in the stream.
func (s Stream) Len() int { return len(s.Points) }

// End returns the last second of the stream, or Start-1 for an empty stream.
func (s Stream) End() int { return s.Start + len(s.Points) - 1 }

// Full returns the span covering every point.
func (s Stream) Full() Span { return Span{Lo: 0, Hi: len(s.Points) - 1} }

// TotalDistanceM returns the distance covered between the first and last second.
func (s Stream) TotalDistanceM() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].DistanceM - s.Points[0].DistanceM
}

// Normalize turns sparse, unordered samples into a dense smoothed stream covering
// every second from the first to the last sample. When two samples share a second
// the later one in the input wins.
func Normalize(samples []Sample, cfg DetectorConfig) Stream {
	if len(samples) == 0 {
		return Stream{}
	}

	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].T < ordered[j].T })

	start := ordered[0].T
	n := ordered[len(ordered)-1].T - start + 1

	dist := nanSeries(n)
	hr := nanSeries(n)
	elev := nanSeries(n)
	for _, s := range ordered {
		i := s.T - start
		dist[i] = s.DistanceM
		hr[i] = valueOrNaN(s.HeartRate)
		elev[i] = valueOrNaN(s.ElevationM)
	}

	interpolateGaps(dist, cfg.DistanceGapLimitSec)
	interpolateGaps(hr, cfg.HeartRateGapLimitSec)
	interpolateGaps(elev, cfg.ElevationGapLimitSec)

	rawSpeed := deltas(dist)
	speed := centeredMean(rawSpeed, cfg.SpeedSmoothWindow)
	hrSmooth := ewma(hr, cfg.HeartRateAlpha)

	elevSmooth := centeredMean(elev, cfg.ElevationSmoothWindow)
	elevDelta := deltas(elevSmooth)
	distDelta := deltas(dist)
	vertical := centeredMean(elevDelta, cfg.VerticalSpeedWindow)

	carried := carryDistance(dist)

	points := make([]Point, n)
	for i := range points {
		p := Point{
			T:             start + i,
			DistanceM:     carried[i],
			DistanceKnown: !math.IsNaN(dist[i]),
			SpeedMps:      zeroIfNaN(speed[i]),
			HeartRate:     ptrOrNil(hrSmooth[i]),
			ElevationM:    ptrOrNil(elev[i]),
		}
		if p.SpeedMps > cfg.MinMovingSpeedMps {
			pace := 1000 / p.SpeedMps
			p.PaceSecPerKm = &pace
		}
		if !math.IsNaN(elevDelta[i]) && !math.IsNaN(distDelta[i]) && distDelta[i] > 0 {
			p.GradePct = clip(elevDelta[i]/distDelta[i]*100, -cfg.GradeClipPct, cfg.GradeClipPct)
		}
		p.VerticalSpeedMps = zeroIfNaN(vertical[i])
		points[i] = p
	}
	return Stream{Start: start, Points: points}
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// interpolateGaps fills runs of missing values linearly when the two known
// neighbours are at most limit seconds apart. Leading and trailing runs stay missing.
func interpolateGaps(series []float64, limit int) {
	prev := -1
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 && i-prev <= limit {
			v0 := series[prev]
			step := (v - v0) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				series[j] = v0 + step*float64(j-prev)
			}
		}
		prev = i
	}
}

// deltas returns the per-second difference of series. The first element is 0 when
// known, and a delta is missing when either side is missing.
func deltas(series []float64) []float64 {
	out := nanSeries(len(series))
	for i := range series {
		if i == 0 {
			if !math.IsNaN(series[0]) {
				out[0] = 0
			}
			continue
		}
		if math.IsNaN(series[i]) || math.IsNaN(series[i-1]) {
			continue
		}
		out[i] = series[i] - series[i-1]
	}
	return out
}

// centeredMean is a centered rolling mean that accepts partial windows at the edges
// and skips missing values. A window with no known values yields NaN.
func centeredMean(series []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := nanSeries(len(series))
	for i := range series {
		lo := i - window/2
		hi := lo + window - 1
		if lo < 0 {
			lo = 0
		}
		if hi > len(series)-1 {
			hi = len(series) - 1
		}
		sum := 0.0
		count := 0
		for j := lo; j <= hi; j++ {
			if math.IsNaN(series[j]) {
				continue
			}
			sum += series[j]
			count++
		}
		if count > 0 {
			out[i] = sum / float64(count)
		}
	}
	return out
}

// ewma is a causal exponentially weighted moving average. Missing inputs produce
// missing outputs; the running state carries over them.
func ewma(series []float64, alpha float64) []float64 {
	out := nanSeries(len(series))
	state := math.NaN()
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(state) {
			state = v
		} else {
			state = alpha*v + (1-alpha)*state
		}
		out[i] = state
	}
	return out
}

// carryDistance forward-fills missing cumulative distance and back-fills the
// leading run from the first known value.
func carryDistance(dist []float64) []float64 {
	out := make([]float64, len(dist))
	first := math.NaN()
	for _, v := range dist {
		if !math.IsNaN(v) {
			first = v
			break
		}
	}
	if math.IsNaN(first) {
		return out
	}
	last := first
	for i, v := range dist {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out
}
