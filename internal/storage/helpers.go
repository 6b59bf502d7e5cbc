package storage

import (
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/cwa"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// toNullFloat maps NaN, the marker of an empty bucket, to NULL
func toNullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: !math.IsNaN(f)}
}

func fromNullFloat(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

// toNullEpoch stores a time as epoch seconds, NULL for the zero time
func toNullEpoch(t time.Time) sql.NullFloat64 {
	if t.IsZero() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(t.UnixNano()) / 1e9, Valid: true}
}

func fromNullEpoch(f sql.NullFloat64) time.Time {
	if !f.Valid {
		return time.Time{}
	}
	sec, frac := math.Modf(f.Float64)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

func toMetadataData(runID uuid.UUID, m *cwa.Metadata) *metadataData {
	return &metadataData{
		RunID:           runID,
		DeviceID:        int64(m.DeviceID),
		SessionID:       int64(m.SessionID),
		LoggingStart:    toNullEpoch(m.LoggingStart),
		LoggingEnd:      toNullEpoch(m.LoggingEnd),
		LastClear:       toNullEpoch(m.LastClear),
		LastChange:      toNullEpoch(m.LastChange),
		Capacity:        int64(m.Capacity),
		SamplingRate:    int64(m.SamplingRate),
		FirmwareVersion: int64(m.FirmwareVersion),
	}
}

func toBucketData(width time.Duration, b *bucket.Bucket) *bucketData {
	data := &bucketData{
		WidthMs:   width.Milliseconds(),
		Baselined: b.Baselined,
		Index:     int64(b.Index),
		Epoch:     b.Epoch,
		Count:     int64(b.Count),
	}
	for c, st := range b.Stats {
		data.Stats[c*4+0] = toNullFloat(st.Mean)
		data.Stats[c*4+1] = toNullFloat(st.PeakToPeak)
		data.Stats[c*4+2] = toNullFloat(st.RMS)
		data.Stats[c*4+3] = toNullFloat(st.StdDev)
	}
	return data
}

func (d *bucketData) values(runID uuid.UUID) []any {
	v := make([]any, 0, bucketColumns)
	v = append(v, runID, d.WidthMs, d.Baselined, d.Index, d.Epoch, d.Count)
	for _, s := range d.Stats {
		v = append(v, s)
	}
	return v
}

func (d *bucketData) scanTargets() []any {
	t := make([]any, 0, bucketColumns-1)
	t = append(t, &d.WidthMs, &d.Baselined, &d.Index, &d.Epoch, &d.Count)
	for i := range d.Stats {
		t = append(t, &d.Stats[i])
	}
	return t
}

func (d *bucketData) toBucket() bucket.Bucket {
	b := bucket.Bucket{
		Index:     int(d.Index),
		Epoch:     d.Epoch,
		Count:     int(d.Count),
		Baselined: d.Baselined,
	}
	for c := range b.Stats {
		b.Stats[c] = bucket.Stats{
			Mean:       fromNullFloat(d.Stats[c*4+0]),
			PeakToPeak: fromNullFloat(d.Stats[c*4+1]),
			RMS:        fromNullFloat(d.Stats[c*4+2]),
			StdDev:     fromNullFloat(d.Stats[c*4+3]),
		}
	}
	return b
}
