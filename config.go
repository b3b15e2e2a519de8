package segments

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DetectorConfig holds every threshold used by the segmentation engine.
// Values are not sanity-checked: a pathological configuration yields degenerate
// but well-formed output.
type DetectorConfig struct {
	// Interval detection
	MinSpeedMps        float64 `json:"min_speed_m_s"`
	MaxBreakAllowedSec int     `json:"max_break_allowed_sec"`
	MinBlockDistM      float64 `json:"min_block_dist_m"`

	// Hill detection
	MinElevationGainM      float64 `json:"min_elevation_gain_m"`
	MinGradePct            float64 `json:"min_grade_percent"`
	HillMaxBreakAllowedSec int     `json:"hill_max_break_allowed_sec"`
	HillMinStartDistM      float64 `json:"hill_min_start_dist_m"`

	// Cooldown boundary
	CooldownSpeedThresholdMps float64 `json:"cooldown_speed_threshold_m_s"`
	CooldownDistanceMargin    float64 `json:"cooldown_distance_margin"`
	DefaultRestSec            float64 `json:"default_rest_sec"`

	// Summaries
	MinMovingSpeedMps float64 `json:"min_moving_speed_m_s"`
	SplitDistanceM    float64 `json:"split_distance_m"`

	// Normalization
	DistanceGapLimitSec   int     `json:"distance_gap_limit_sec"`
	ElevationGapLimitSec  int     `json:"elevation_gap_limit_sec"`
	HeartRateGapLimitSec  int     `json:"heart_rate_gap_limit_sec"`
	SpeedSmoothWindow     int     `json:"speed_smooth_window"`
	HeartRateAlpha        float64 `json:"heart_rate_alpha"`
	ElevationSmoothWindow int     `json:"elevation_smooth_window"`
	VerticalSpeedWindow   int     `json:"vertical_speed_window"`
	GradeClipPct          float64 `json:"grade_clip_percent"`

	// Recorded-lap classification
	LapSpeedStdFloor float64 `json:"lap_speed_std_floor"`
	LapVAMStdFloor   float64 `json:"lap_vam_std_floor"`
	LapSpeedWorkoutZ float64 `json:"lap_speed_workout_z"`
	LapVAMWorkoutZ   float64 `json:"lap_vam_workout_z"`
	LapRestZ         float64 `json:"lap_rest_z"`
}

// DefaultDetectorConfig returns the documented default thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinSpeedMps:        3.3,
		MaxBreakAllowedSec: 15,
		MinBlockDistM:      150,

		MinElevationGainM:      5,
		MinGradePct:            2,
		HillMaxBreakAllowedSec: 5,
		HillMinStartDistM:      1000,

		CooldownSpeedThresholdMps: 2.2,
		CooldownDistanceMargin:    0.10,
		DefaultRestSec:            60,

		MinMovingSpeedMps: 0.3,
		SplitDistanceM:    1000,

		DistanceGapLimitSec:   20,
		ElevationGapLimitSec:  10,
		HeartRateGapLimitSec:  15,
		SpeedSmoothWindow:     5,
		HeartRateAlpha:        0.2,
		ElevationSmoothWindow: 7,
		VerticalSpeedWindow:   5,
		GradeClipPct:          40,

		LapSpeedStdFloor: 0.1,
		LapVAMStdFloor:   50,
		LapSpeedWorkoutZ: 0.45,
		LapVAMWorkoutZ:   0.5,
		LapRestZ:         -0.5,
	}
}

// DetectorOverrides is the on-disk form of a partial DetectorConfig.
// Omitted fields keep the value they are applied to.
type DetectorOverrides struct {
	MinSpeedMps               *float64 `json:"min_speed_m_s,omitempty"`
	MaxBreakAllowedSec        *int     `json:"max_break_allowed_sec,omitempty"`
	MinBlockDistM             *float64 `json:"min_block_dist_m,omitempty"`
	MinElevationGainM         *float64 `json:"min_elevation_gain_m,omitempty"`
	MinGradePct               *float64 `json:"min_grade_percent,omitempty"`
	HillMaxBreakAllowedSec    *int     `json:"hill_max_break_allowed_sec,omitempty"`
	HillMinStartDistM         *float64 `json:"hill_min_start_dist_m,omitempty"`
	CooldownSpeedThresholdMps *float64 `json:"cooldown_speed_threshold_m_s,omitempty"`
	CooldownDistanceMargin    *float64 `json:"cooldown_distance_margin,omitempty"`
	DefaultRestSec            *float64 `json:"default_rest_sec,omitempty"`
	MinMovingSpeedMps         *float64 `json:"min_moving_speed_m_s,omitempty"`
	SplitDistanceM            *float64 `json:"split_distance_m,omitempty"`
	DistanceGapLimitSec       *int     `json:"distance_gap_limit_sec,omitempty"`
	ElevationGapLimitSec      *int     `json:"elevation_gap_limit_sec,omitempty"`
	HeartRateGapLimitSec      *int     `json:"heart_rate_gap_limit_sec,omitempty"`
	SpeedSmoothWindow         *int     `json:"speed_smooth_window,omitempty"`
	HeartRateAlpha            *float64 `json:"heart_rate_alpha,omitempty"`
	ElevationSmoothWindow     *int     `json:"elevation_smooth_window,omitempty"`
	VerticalSpeedWindow       *int     `json:"vertical_speed_window,omitempty"`
	GradeClipPct              *float64 `json:"grade_clip_percent,omitempty"`
	LapSpeedStdFloor          *float64 `json:"lap_speed_std_floor,omitempty"`
	LapVAMStdFloor            *float64 `json:"lap_vam_std_floor,omitempty"`
	LapSpeedWorkoutZ          *float64 `json:"lap_speed_workout_z,omitempty"`
	LapVAMWorkoutZ            *float64 `json:"lap_vam_workout_z,omitempty"`
	LapRestZ                  *float64 `json:"lap_rest_z,omitempty"`
}

// Apply returns cfg with every non-nil override set.
func (o DetectorOverrides) Apply(cfg DetectorConfig) DetectorConfig {
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setI := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&cfg.MinSpeedMps, o.MinSpeedMps)
	setI(&cfg.MaxBreakAllowedSec, o.MaxBreakAllowedSec)
	setF(&cfg.MinBlockDistM, o.MinBlockDistM)
	setF(&cfg.MinElevationGainM, o.MinElevationGainM)
	setF(&cfg.MinGradePct, o.MinGradePct)
	setI(&cfg.HillMaxBreakAllowedSec, o.HillMaxBreakAllowedSec)
	setF(&cfg.HillMinStartDistM, o.HillMinStartDistM)
	setF(&cfg.CooldownSpeedThresholdMps, o.CooldownSpeedThresholdMps)
	setF(&cfg.CooldownDistanceMargin, o.CooldownDistanceMargin)
	setF(&cfg.DefaultRestSec, o.DefaultRestSec)
	setF(&cfg.MinMovingSpeedMps, o.MinMovingSpeedMps)
	setF(&cfg.SplitDistanceM, o.SplitDistanceM)
	setI(&cfg.DistanceGapLimitSec, o.DistanceGapLimitSec)
	setI(&cfg.ElevationGapLimitSec, o.ElevationGapLimitSec)
	setI(&cfg.HeartRateGapLimitSec, o.HeartRateGapLimitSec)
	setI(&cfg.SpeedSmoothWindow, o.SpeedSmoothWindow)
	setF(&cfg.HeartRateAlpha, o.HeartRateAlpha)
	setI(&cfg.ElevationSmoothWindow, o.ElevationSmoothWindow)
	setI(&cfg.VerticalSpeedWindow, o.VerticalSpeedWindow)
	setF(&cfg.GradeClipPct, o.GradeClipPct)
	setF(&cfg.LapSpeedStdFloor, o.LapSpeedStdFloor)
	setF(&cfg.LapVAMStdFloor, o.LapVAMStdFloor)
	setF(&cfg.LapSpeedWorkoutZ, o.LapSpeedWorkoutZ)
	setF(&cfg.LapVAMWorkoutZ, o.LapVAMWorkoutZ)
	setF(&cfg.LapRestZ, o.LapRestZ)
	return cfg
}

const maxConfigFileSize = 1 << 20

// LoadDetectorConfig reads a JSON override file and applies it on top of the defaults.
// An empty path returns the defaults.
func LoadDetectorConfig(path string) (DetectorConfig, error) {
	cfg := DefaultDetectorConfig()
	if path == "" {
		return cfg, nil
	}

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var overrides DetectorOverrides
	if err := json.Unmarshal(data, &overrides); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return overrides.Apply(cfg), nil
}
