package pipeline

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	segments "github.com/lucasjlepore/workout-segments"
)

var segmentColumns = []string{
	"type", "index", "lap_index", "start_sec", "end_sec", "distance_m", "moving_duration_sec", "total_duration_sec",
	"avg_pace_sec_per_km", "avg_heart_rate", "elevation_gain_m", "avg_grade_percent", "vam_m_per_hr",
}

var streamColumns = []string{
	"t", "distance_total_m", "distance_known", "speed_m_s", "pace_sec_per_km", "heart_rate", "elevation_m",
	"grade_percent", "vertical_speed_m_s",
}

type segmentParquetRow struct {
	Type              string  `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Index             int64   `parquet:"name=index, type=INT64"`
	LapIndex          int64   `parquet:"name=lap_index, type=INT64"`
	StartSec          int64   `parquet:"name=start_sec, type=INT64"`
	EndSec            int64   `parquet:"name=end_sec, type=INT64"`
	DistanceM         float64 `parquet:"name=distance_m, type=DOUBLE"`
	MovingDurationSec int64   `parquet:"name=moving_duration_sec, type=INT64"`
	TotalDurationSec  int64   `parquet:"name=total_duration_sec, type=INT64"`
	AvgPaceSecPerKm   float64 `parquet:"name=avg_pace_sec_per_km, type=DOUBLE"`
	AvgHeartRate      float64 `parquet:"name=avg_heart_rate, type=DOUBLE"`
	ElevationGainM    float64 `parquet:"name=elevation_gain_m, type=DOUBLE"`
	AvgGradePct       float64 `parquet:"name=avg_grade_percent, type=DOUBLE"`
	VAMMPerHr         float64 `parquet:"name=vam_m_per_hr, type=DOUBLE"`
}

type streamParquetRow struct {
	T                int64   `parquet:"name=t, type=INT64"`
	DistanceM        float64 `parquet:"name=distance_total_m, type=DOUBLE"`
	DistanceKnown    bool    `parquet:"name=distance_known, type=BOOLEAN"`
	SpeedMps         float64 `parquet:"name=speed_m_s, type=DOUBLE"`
	PaceSecPerKm     float64 `parquet:"name=pace_sec_per_km, type=DOUBLE"`
	HeartRate        float64 `parquet:"name=heart_rate, type=DOUBLE"`
	ElevationM       float64 `parquet:"name=elevation_m, type=DOUBLE"`
	GradePct         float64 `parquet:"name=grade_percent, type=DOUBLE"`
	VerticalSpeedMps float64 `parquet:"name=vertical_speed_m_s, type=DOUBLE"`
}

// segmentRows flattens segments for parquet; missing climb metrics are NaN.
func segmentRows(segs []segments.Segment) []segmentParquetRow {
	rows := make([]segmentParquetRow, 0, len(segs))
	for _, s := range segs {
		rows = append(rows, segmentParquetRow{
			Type:              string(s.Type),
			Index:             int64(s.Index),
			LapIndex:          int64(s.LapIndex),
			StartSec:          int64(s.StartSec),
			EndSec:            int64(s.EndSec),
			DistanceM:         s.DistanceM,
			MovingDurationSec: int64(s.MovingDurationSec),
			TotalDurationSec:  int64(s.TotalDurationSec),
			AvgPaceSecPerKm:   s.AvgPaceSecPerKm,
			AvgHeartRate:      s.AvgHeartRate,
			ElevationGainM:    valueOrNaN(s.ElevationGainM),
			AvgGradePct:       valueOrNaN(s.AvgGradePct),
			VAMMPerHr:         valueOrNaN(s.VAMMPerHr),
		})
	}
	return rows
}

func streamRows(stream segments.Stream) []streamParquetRow {
	rows := make([]streamParquetRow, 0, stream.Len())
	for _, p := range stream.Points {
		rows = append(rows, streamParquetRow{
			T:                int64(p.T),
			DistanceM:        p.DistanceM,
			DistanceKnown:    p.DistanceKnown,
			SpeedMps:         p.SpeedMps,
			PaceSecPerKm:     valueOrNaN(p.PaceSecPerKm),
			HeartRate:        valueOrNaN(p.HeartRate),
			ElevationM:       valueOrNaN(p.ElevationM),
			GradePct:         p.GradePct,
			VerticalSpeedMps: p.VerticalSpeedMps,
		})
	}
	return rows
}

func writeParquet[T any](path string, rows []T) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, new(T), 4)
	if err != nil {
		_ = fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func writeSegmentsCSV(path string, segs []segments.Segment) error {
	rows := make([][]string, 0, len(segs))
	for _, s := range segs {
		rows = append(rows, []string{
			string(s.Type),
			strconv.Itoa(s.Index),
			strconv.Itoa(s.LapIndex),
			strconv.Itoa(s.StartSec),
			strconv.Itoa(s.EndSec),
			formatFloat(s.DistanceM),
			strconv.Itoa(s.MovingDurationSec),
			strconv.Itoa(s.TotalDurationSec),
			formatFloat(s.AvgPaceSecPerKm),
			formatFloat(s.AvgHeartRate),
			formatFloatPtr(s.ElevationGainM),
			formatFloatPtr(s.AvgGradePct),
			formatFloatPtr(s.VAMMPerHr),
		})
	}
	return writeCSV(path, segmentColumns, rows)
}

func writeStreamCSV(path string, stream segments.Stream) error {
	rows := make([][]string, 0, stream.Len())
	for _, p := range stream.Points {
		rows = append(rows, []string{
			strconv.Itoa(p.T),
			formatFloat(p.DistanceM),
			strconv.FormatBool(p.DistanceKnown),
			formatFloat(p.SpeedMps),
			formatFloatPtr(p.PaceSecPerKm),
			formatFloatPtr(p.HeartRate),
			formatFloatPtr(p.ElevationM),
			formatFloat(p.GradePct),
			formatFloat(p.VerticalSpeedMps),
		})
	}
	return writeCSV(path, streamColumns, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
