package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	segments "github.com/lucasjlepore/workout-segments"
)

// runTimeLayout is fixed-width so created_at sorts lexically.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one stored segmentation of an activity.
type Run struct {
	ID         string
	ActivityID string
	Kind       segments.WorkoutKind
	Source     string
	Label      string
	Config     segments.DetectorConfig
	CreatedAt  time.Time
}

// ReplaceSegments stores the analysis as the activity's only run, dropping
// earlier runs, and returns the new run ID. The activity must already be saved.
func (s *Store) ReplaceSegments(ctx context.Context, a *segments.Analysis) (string, error) {
	if a == nil || a.ActivityID == "" {
		return "", errors.New("analysis activity id is required")
	}
	config, err := json.Marshal(a.Config)
	if err != nil {
		return "", fmt.Errorf("encode detector config: %w", err)
	}
	runID := uuid.NewString()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`
DELETE FROM activity_laps WHERE run_id IN (SELECT id FROM analysis_runs WHERE activity_id = ?)`), a.ActivityID); err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM analysis_runs WHERE activity_id = ?`), a.ActivityID); err != nil {
			return fmt.Errorf("clear runs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO analysis_runs (id, activity_id, kind, source, label, config_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
			runID, a.ActivityID, string(a.Kind), a.Source, a.Structure.CanonicalLabel, string(config),
			time.Now().UTC().Format(runTimeLayout)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.rebind(`
INSERT INTO activity_laps (run_id, lap_type, type_index, lap_index, start_sec, end_sec, distance_m,
    total_duration_sec, moving_duration_sec, avg_pace_sec_km, avg_hr, elev_gain_m, avg_grade_percent, vam)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare segment insert: %w", err)
		}
		defer stmt.Close()
		for _, seg := range a.Segments {
			if _, err := stmt.ExecContext(ctx, runID, string(seg.Type), seg.Index, seg.LapIndex, seg.StartSec, seg.EndSec,
				seg.DistanceM, seg.TotalDurationSec, seg.MovingDurationSec, seg.AvgPaceSecPerKm, seg.AvgHeartRate,
				seg.ElevationGainM, seg.AvgGradePct, seg.VAMMPerHr); err != nil {
				return fmt.Errorf("insert segment %d: %w", seg.LapIndex, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	logf("stored %d segments for activity %s (run %s)", len(a.Segments), a.ActivityID, runID)
	return runID, nil
}

// LatestRun returns the most recent run for an activity.
func (s *Store) LatestRun(ctx context.Context, activityID string) (*Run, error) {
	var (
		run       Run
		kind      string
		config    string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT id, activity_id, kind, source, label, config_json, created_at
FROM analysis_runs WHERE activity_id = ? ORDER BY created_at DESC LIMIT 1`), activityID).
		Scan(&run.ID, &run.ActivityID, &kind, &run.Source, &run.Label, &config, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run for activity %s: %w", activityID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	run.Kind = segments.WorkoutKind(kind)
	if err := json.Unmarshal([]byte(config), &run.Config); err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}
	if run.CreatedAt, err = time.Parse(runTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse run time %q: %w", createdAt, err)
	}
	return &run, nil
}

// ListSegments returns a run's segments in timeline order.
func (s *Store) ListSegments(ctx context.Context, runID string) ([]segments.Segment, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT lap_type, type_index, lap_index, start_sec, end_sec, distance_m, total_duration_sec,
    moving_duration_sec, avg_pace_sec_km, avg_hr, elev_gain_m, avg_grade_percent, vam
FROM activity_laps WHERE run_id = ? ORDER BY lap_index`), runID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []segments.Segment
	for rows.Next() {
		var (
			seg              segments.Segment
			segType          string
			gain, grade, vam sql.NullFloat64
		)
		if err := rows.Scan(&segType, &seg.Index, &seg.LapIndex, &seg.StartSec, &seg.EndSec, &seg.DistanceM,
			&seg.TotalDurationSec, &seg.MovingDurationSec, &seg.AvgPaceSecPerKm, &seg.AvgHeartRate,
			&gain, &grade, &vam); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Type = segments.SegmentType(segType)
		seg.ElevationGainM = nullable(gain)
		seg.AvgGradePct = nullable(grade)
		seg.VAMMPerHr = nullable(vam)
		out = append(out, seg)
	}
	return out, rows.Err()
}
