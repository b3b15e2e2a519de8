package segments

import (
	"fmt"
	"regexp"
	"strings"
)

// WorkoutKind selects how an activity is segmented.
type WorkoutKind string

const (
	KindAuto     WorkoutKind = "auto"
	KindEasy     WorkoutKind = "easy"
	KindInterval WorkoutKind = "interval"
	KindHill     WorkoutKind = "hill"
)

var (
	hillKeywords     = []string{"hill", "subida", "elevação"}
	intervalKeywords = []string{"tiro", "interval", "split"}

	// 10x400, 5 x 1000, 8X1km, 6*200, 5x3', 10 x 1:30
	seriesPattern = regexp.MustCompile(`\d+\s*[xX*]\s*\d+`)
)

// ClassifyWorkout infers the workout kind from the athlete's activity description.
func ClassifyWorkout(description string) WorkoutKind {
	d := strings.ToLower(description)
	for _, k := range hillKeywords {
		if strings.Contains(d, k) {
			return KindHill
		}
	}
	for _, k := range intervalKeywords {
		if strings.Contains(d, k) {
			return KindInterval
		}
	}
	if seriesPattern.MatchString(d) {
		return KindInterval
	}
	return KindEasy
}

// ParseWorkoutKind parses a kind name as given on the command line.
func ParseWorkoutKind(s string) (WorkoutKind, error) {
	switch k := WorkoutKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindEasy, KindInterval, KindHill:
		return k, nil
	default:
		return "", fmt.Errorf("unknown workout kind %q (expected auto|easy|interval|hill)", s)
	}
}

// resolveKind turns KindAuto into a concrete kind using the description.
// Without a description the activity is treated as an interval session so the
// detector still gets a chance to find structure.
func resolveKind(kind WorkoutKind, description string) WorkoutKind {
	if kind != KindAuto && kind != "" {
		return kind
	}
	if strings.TrimSpace(description) == "" {
		return KindInterval
	}
	return ClassifyWorkout(description)
}
