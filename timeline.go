package segments

import "gonum.org/v1/gonum/stat"

// BuildTimeline segments a normalized stream into
// WARMUP splits, (effort, REST)*, an optional trailing REST and COOLDOWN splits.
// When the strategy finds no effort the whole stream is split into ACTIVITY chunks.
// The result partitions the stream: consecutive segments share no second and leave
// none uncovered.
func BuildTimeline(stream Stream, strategy Strategy, cfg DetectorConfig) []Segment {
	if stream.Len() == 0 {
		return nil
	}

	blocks := strategy.Detect(stream)
	if len(blocks) == 0 {
		return numberLaps(SplitByDistance(stream, stream.Full(), TypeActivity, cfg))
	}

	var (
		out       []Segment
		restSecs  []float64
		restDists []float64
	)

	out = append(out, SplitByDistance(stream, Span{Lo: 0, Hi: blocks[0].Lo - 1}, TypeWarmup, cfg)...)

	for i, block := range blocks {
		effort := strategy.Summarize(stream, block, strategy.Label, cfg)
		effort.Index = i + 1
		out = append(out, effort)

		if i == len(blocks)-1 {
			break
		}
		gap := Span{Lo: block.Hi + 1, Hi: blocks[i+1].Lo - 1}
		if gap.Empty() {
			continue
		}
		rest := Summarize(stream, gap, TypeRest, cfg)
		rest.Index = i + 1
		out = append(out, rest)
		restSecs = append(restSecs, float64(gap.Len()))
		restDists = append(restDists, rest.DistanceM)
	}

	avgRestSec := cfg.DefaultRestSec
	avgRestDist := 0.0
	if len(restSecs) > 0 {
		avgRestSec = stat.Mean(restSecs, nil)
		avgRestDist = stat.Mean(restDists, nil)
	}

	last := blocks[len(blocks)-1]
	cooldownStart := findCooldownStart(stream, last.Hi, avgRestSec, avgRestDist, cfg)

	if trailing := (Span{Lo: last.Hi + 1, Hi: cooldownStart - 1}); !trailing.Empty() {
		rest := Summarize(stream, trailing, TypeRest, cfg)
		rest.Index = len(blocks)
		out = append(out, rest)
	}
	out = append(out, SplitByDistance(stream, Span{Lo: cooldownStart, Hi: stream.Len() - 1}, TypeCooldown, cfg)...)

	return numberLaps(out)
}

// findCooldownStart returns the index of the first cooldown point after the last
// effort ending at lastHi. Recovery continues while the athlete is slower than the
// cooldown threshold or still inside the session's average rest duration; it ends
// once the distance since the effort exceeds the average rest distance by the
// configured margin, or once the athlete is past the average rest duration and
// moving at or above the threshold.
func findCooldownStart(stream Stream, lastHi int, avgRestSec, avgRestDist float64, cfg DetectorConfig) int {
	origin := stream.Points[lastHi]
	start := lastHi + 1
	for i := lastHi + 1; i < stream.Len(); i++ {
		p := stream.Points[i]
		elapsed := float64(p.T - origin.T)
		covered := p.DistanceM - origin.DistanceM

		if avgRestDist > 0 && covered > avgRestDist*(1+cfg.CooldownDistanceMargin) {
			break
		}
		if elapsed > avgRestSec && p.SpeedMps >= cfg.CooldownSpeedThresholdMps {
			break
		}
		start = i + 1
	}
	return start
}

func numberLaps(segs []Segment) []Segment {
	for i := range segs {
		segs[i].LapIndex = i + 1
	}
	return segs
}
