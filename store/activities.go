package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	segments "github.com/lucasjlepore/workout-segments"
)

// SaveActivity upserts the activity and replaces its recorded laps and stream in
// one transaction. Samples sharing a second keep the last one, as Normalize does.
func (s *Store) SaveActivity(ctx context.Context, a *segments.Activity, source string) error {
	if a == nil || a.ID == "" {
		return errors.New("activity id is required")
	}
	samples := uniqueSeconds(a.Samples)

	if s.driver == DriverPostgres {
		return s.withPgxTx(ctx, func(tx pgx.Tx) error {
			exec := func(query string, args ...any) error {
				_, err := tx.Exec(ctx, s.rebind(query), args...)
				return err
			}
			if err := writeActivity(exec, a, source); err != nil {
				return err
			}
			return copySamples(ctx, tx, a.ID, samples)
		})
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		exec := func(query string, args ...any) error {
			_, err := tx.ExecContext(ctx, query, args...)
			return err
		}
		if err := writeActivity(exec, a, source); err != nil {
			return err
		}
		return insertSamples(ctx, tx, a.ID, samples)
	})
}

// SaveSamples replaces the stored per-second stream of an activity.
func (s *Store) SaveSamples(ctx context.Context, activityID string, samples []segments.Sample) error {
	samples = uniqueSeconds(samples)
	if s.driver == DriverPostgres {
		return s.withPgxTx(ctx, func(tx pgx.Tx) error {
			return copySamples(ctx, tx, activityID, samples)
		})
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertSamples(ctx, tx, activityID, samples)
	})
}

// uniqueSeconds orders samples by second, keeping the last sample given for a second.
func uniqueSeconds(samples []segments.Sample) []segments.Sample {
	last := make(map[int]int, len(samples))
	for i, sample := range samples {
		last[sample.T] = i
	}
	out := make([]segments.Sample, 0, len(last))
	for i, sample := range samples {
		if last[sample.T] == i {
			out = append(out, sample)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out
}

func writeActivity(exec func(query string, args ...any) error, a *segments.Activity, source string) error {
	startTime := ""
	if !a.StartTime.IsZero() {
		startTime = a.StartTime.UTC().Format(time.RFC3339)
	}
	err := exec(`
INSERT INTO activities (id, name, description, sport, start_time, source, imported_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    sport = excluded.sport,
    start_time = excluded.start_time,
    source = excluded.source,
    imported_at = excluded.imported_at`,
		a.ID, a.Name, a.Description, a.Sport, startTime, source, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert activity: %w", err)
	}

	if err := exec(`DELETE FROM recorded_laps WHERE activity_id = ?`, a.ID); err != nil {
		return fmt.Errorf("clear recorded laps: %w", err)
	}
	for _, lap := range a.Laps {
		if err := exec(`
INSERT INTO recorded_laps (activity_id, lap_index, start_sec, end_sec, distance_m,
    moving_duration_sec, average_speed_m_s, elevation_gain_m, name, lap_trigger)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, lap.LapIndex, lap.StartSec, lap.EndSec, lap.DistanceM,
			lap.MovingDurationSec, lap.AverageSpeedMps, lap.ElevationGainM, lap.Name, lap.Trigger); err != nil {
			return fmt.Errorf("insert lap %d: %w", lap.LapIndex, err)
		}
	}
	return nil
}

func insertSamples(ctx context.Context, tx *sql.Tx, activityID string, samples []segments.Sample) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_seconds WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO activity_seconds (activity_id, second_index, distance_m, speed_m_s, heart_rate, elevation_m)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()
	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, activityID, sample.T, sample.DistanceM,
			sample.SpeedMps, sample.HeartRate, sample.ElevationM); err != nil {
			return fmt.Errorf("insert sample %d: %w", sample.T, err)
		}
	}
	logf("saved %d samples for activity %s", len(samples), activityID)
	return nil
}

// copySamples streams the samples into PostgreSQL with COPY.
func copySamples(ctx context.Context, tx pgx.Tx, activityID string, samples []segments.Sample) error {
	rows := make([][]any, 0, len(samples))
	for _, sample := range samples {
		rows = append(rows, []any{activityID, sample.T, sample.DistanceM, sample.SpeedMps, sample.HeartRate, sample.ElevationM})
	}
	if _, err := tx.Exec(ctx, `DELETE FROM activity_seconds WHERE activity_id = $1`, activityID); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"activity_seconds"},
		[]string{"activity_id", "second_index", "distance_m", "speed_m_s", "heart_rate", "elevation_m"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy samples: %w", err)
	}
	logf("copied %d samples for activity %s", n, activityID)
	return nil
}

// withPgxTx runs fn in a native pgx transaction on one pooled connection, so COPY
// and ordinary statements share it.
func (s *Store) withPgxTx(ctx context.Context, fn func(pgx.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		direct, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected postgres driver %T", driverConn)
		}
		tx, err := direct.Conn().Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// LoadActivity reads a stored activity with its stream and recorded laps.
func (s *Store) LoadActivity(ctx context.Context, id string) (*segments.Activity, error) {
	a := &segments.Activity{ID: id}
	var startTime string
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT name, description, sport, start_time FROM activities WHERE id = ?`), id).
		Scan(&a.Name, &a.Description, &a.Sport, &startTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	if startTime != "" {
		if a.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
			return nil, fmt.Errorf("parse start time %q: %w", startTime, err)
		}
	}

	if a.Samples, err = s.LoadSamples(ctx, id); err != nil {
		return nil, err
	}
	if a.Laps, err = s.loadRecordedLaps(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

// LoadSamples returns the stored stream ordered by second.
func (s *Store) LoadSamples(ctx context.Context, activityID string) ([]segments.Sample, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT second_index, distance_m, speed_m_s, heart_rate, elevation_m
FROM activity_seconds WHERE activity_id = ? ORDER BY second_index`), activityID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []segments.Sample
	for rows.Next() {
		var (
			sample               segments.Sample
			speed, hr, elevation sql.NullFloat64
		)
		if err := rows.Scan(&sample.T, &sample.DistanceM, &speed, &hr, &elevation); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sample.SpeedMps = nullable(speed)
		sample.HeartRate = nullable(hr)
		sample.ElevationM = nullable(elevation)
		out = append(out, sample)
	}
	return out, rows.Err()
}

func (s *Store) loadRecordedLaps(ctx context.Context, activityID string) ([]segments.RecordedLap, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT lap_index, start_sec, end_sec, distance_m, moving_duration_sec,
    average_speed_m_s, elevation_gain_m, name, lap_trigger
FROM recorded_laps WHERE activity_id = ? ORDER BY lap_index`), activityID)
	if err != nil {
		return nil, fmt.Errorf("query recorded laps: %w", err)
	}
	defer rows.Close()

	var out []segments.RecordedLap
	for rows.Next() {
		var lap segments.RecordedLap
		if err := rows.Scan(&lap.LapIndex, &lap.StartSec, &lap.EndSec, &lap.DistanceM, &lap.MovingDurationSec,
			&lap.AverageSpeedMps, &lap.ElevationGainM, &lap.Name, &lap.Trigger); err != nil {
			return nil, fmt.Errorf("scan recorded lap: %w", err)
		}
		out = append(out, lap)
	}
	return out, rows.Err()
}

// ListActivities returns the stored activity IDs in import order.
func (s *Store) ListActivities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM activities ORDER BY imported_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan activity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
