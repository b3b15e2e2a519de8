package segments

// scanState is the block scanner's position: outside any effort, or inside one.
type scanState int

const (
	stateIdle scanState = iota
	stateInBlock
)

// blockAccumulator tracks the open block during a scan. Points appended while the
// effort predicate fails are tentative: they are kept until the break limit is hit
// and then trimmed off, because they belong to whatever follows the block.
type blockAccumulator struct {
	state scanState
	lo    int
	hi    int
	gap   int
}

func (a *blockAccumulator) open(i int) {
	a.state = stateInBlock
	a.lo = i
	a.hi = i
	a.gap = 0
}

func (a *blockAccumulator) extend(i int) {
	a.hi = i
	a.gap = 0
}

func (a *blockAccumulator) extendTentative(i int) {
	a.hi = i
	a.gap++
}

// close ends the open block and returns it without its trailing tentative points.
func (a *blockAccumulator) close() Span {
	span := Span{Lo: a.lo, Hi: a.hi - a.gap}
	*a = blockAccumulator{}
	return span
}

// DetectBlocks scans items left to right and returns the valid effort blocks.
//
// A block opens on the first item satisfying effort and absorbs up to maxBreak
// consecutive failing items; the next failure closes it. Trailing failing items
// are trimmed from a closed block before valid is consulted.
func DetectBlocks[T any](items []T, effort func(T) bool, valid func(Span) bool, maxBreak int) []Span {
	var (
		blocks []Span
		acc    blockAccumulator
	)
	emit := func() {
		span := acc.close()
		if !span.Empty() && valid(span) {
			blocks = append(blocks, span)
		}
	}

	for i, item := range items {
		hit := effort(item)
		switch acc.state {
		case stateIdle:
			if hit {
				acc.open(i)
			}
		case stateInBlock:
			switch {
			case hit:
				acc.extend(i)
			case acc.gap < maxBreak:
				acc.extendTentative(i)
			default:
				emit()
			}
		}
	}
	if acc.state == stateInBlock {
		emit()
	}
	return blocks
}

// Strategy parameterizes the block scan and the labeling of detected efforts.
type Strategy struct {
	Name     string
	Label    SegmentType
	MaxBreak int
	Effort   func(Point) bool
	Valid    func(Stream, Span) bool
	// Summarize reduces one detected block to its segment.
	Summarize func(Stream, Span, SegmentType, DetectorConfig) Segment
}

// Detect runs the strategy over the stream.
func (s Strategy) Detect(stream Stream) []Span {
	return DetectBlocks(stream.Points, s.Effort, func(span Span) bool {
		return s.Valid(stream, span)
	}, s.MaxBreak)
}

// IntervalStrategy detects speed efforts: seconds at or above MinSpeedMps, kept
// when the block covers at least MinBlockDistM.
func IntervalStrategy(cfg DetectorConfig) Strategy {
	return Strategy{
		Name:     "interval",
		Label:    TypeWorkout,
		MaxBreak: cfg.MaxBreakAllowedSec,
		Effort: func(p Point) bool {
			return p.SpeedMps >= cfg.MinSpeedMps
		},
		Valid: func(stream Stream, span Span) bool {
			return blockDistance(stream, span) >= cfg.MinBlockDistM
		},
		Summarize: Summarize,
	}
}

// HillStrategy detects climbs: seconds with positive grade or vertical speed, kept
// when the climb gains MinElevationGainM at MinGradePct or more. Climbs that start
// before HillMinStartDistM are treated as part of the warmup and dropped.
func HillStrategy(cfg DetectorConfig) Strategy {
	return Strategy{
		Name:     "hill",
		Label:    TypeHillRepeat,
		MaxBreak: cfg.HillMaxBreakAllowedSec,
		Effort: func(p Point) bool {
			return p.GradePct > 1.0 || p.VerticalSpeedMps > 0.05
		},
		Valid: func(stream Stream, span Span) bool {
			first := stream.Points[span.Lo]
			if first.DistanceM-stream.Points[0].DistanceM < cfg.HillMinStartDistM {
				return false
			}
			last := stream.Points[span.Hi]
			if first.ElevationM == nil || last.ElevationM == nil {
				return false
			}
			gain := *last.ElevationM - *first.ElevationM
			grade := safeDiv(gain, blockDistance(stream, span)) * 100
			return gain >= cfg.MinElevationGainM && grade >= cfg.MinGradePct
		},
		Summarize: SummarizeClimb,
	}
}

// blockDistance is the distance from the block's first to its last point.
func blockDistance(stream Stream, span Span) float64 {
	return stream.Points[span.Hi].DistanceM - stream.Points[span.Lo].DistanceM
}
