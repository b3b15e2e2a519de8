package segments

import (
	"fmt"
	"math"
	"strings"
)

// BuildTimelineNotes renders the segmented timeline as a plain-text table followed by
// the workout structure.
func BuildTimelineNotes(a *Analysis) string {
	if a == nil {
		return ""
	}

	var b strings.Builder

	title := a.ActivityID
	if a.Name != "" {
		title = fmt.Sprintf("%s (%s)", a.Name, a.ActivityID)
	}
	fmt.Fprintf(&b, "Activity: %s\n", title)
	fmt.Fprintf(
		&b,
		"Kind %s | Source %s | Duration %s | Distance %.2f km\n",
		a.Kind,
		a.Source,
		formatDuration(float64(a.Stream.Len())),
		a.Stream.TotalDistanceM()/1000.0,
	)

	if len(a.Segments) == 0 {
		b.WriteString("\nNo segments: the activity has no usable samples.\n")
		return strings.TrimSpace(b.String())
	}

	b.WriteString("\nTimeline\n")
	fmt.Fprintf(&b, "%3s  %-14s %8s %8s %9s %8s %9s %5s\n", "lap", "segment", "start", "end", "dist_m", "moving", "pace", "hr")
	for _, s := range a.Segments {
		fmt.Fprintf(
			&b,
			"%3d  %-14s %8s %8s %9.0f %8s %9s %5s",
			s.LapIndex,
			fmt.Sprintf("%s %d", s.Type, s.Index),
			formatDuration(float64(s.StartSec)),
			formatDuration(float64(s.EndSec)),
			s.DistanceM,
			formatDuration(float64(s.MovingDurationSec)),
			formatPace(s.AvgPaceSecPerKm),
			formatHeartRate(s.AvgHeartRate),
		)
		if s.ElevationGainM != nil && s.VAMMPerHr != nil {
			fmt.Fprintf(&b, "  +%.0fm %.1f%% VAM %.0f", *s.ElevationGainM, deref(s.AvgGradePct), *s.VAMMPerHr)
		}
		b.WriteByte('\n')
	}

	ws := a.Structure
	if ws.CanonicalLabel != "" {
		b.WriteString("\nWorkout Structure\n")
		fmt.Fprintf(&b, "- %s\n", ws.CanonicalLabel)
		if ws.MainSet != nil {
			fmt.Fprintf(
				&b,
				"- Main set execution: %s, drift %+.1f%% pace / %+.0f bpm HR (first to last rep).\n",
				ws.MainSet.Prescription,
				ws.MainSet.PaceDriftPct,
				ws.MainSet.HeartRateDriftBPM,
			)
		}
	}

	return strings.TrimSpace(b.String())
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

func formatPace(secPerKm float64) string {
	if secPerKm <= 0 {
		return "-"
	}
	return clockDuration(secPerKm) + "/km"
}

func formatHeartRate(bpm float64) string {
	if bpm <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", bpm)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
