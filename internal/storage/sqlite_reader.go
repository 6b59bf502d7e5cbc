package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/cwa"
)

// ErrNoData indicates that nothing is stored for the given parameters
var ErrNoData = errors.New("no data available")

// ReaderOption narrows the bucket series returned by ReadBuckets
type ReaderOption func(*bucketQuery)

type bucketQuery struct {
	width     *time.Duration
	baselined *bool
	start     *float64
	end       *float64
}

// WithWidth selects buckets of the given width
func WithWidth(width time.Duration) ReaderOption {
	return func(q *bucketQuery) {
		q.width = &width
	}
}

// WithBaselined selects baselined or plain buckets
func WithBaselined(baselined bool) ReaderOption {
	return func(q *bucketQuery) {
		q.baselined = &baselined
	}
}

// WithEpochRange selects buckets starting within [start, end] epoch seconds
func WithEpochRange(start, end float64) ReaderOption {
	return func(q *bucketQuery) {
		q.start = &start
		q.end = &end
	}
}

func (q *bucketQuery) build(runID uuid.UUID) (string, []any) {
	var sb strings.Builder
	sb.WriteString(selectBucketsSQL)
	sb.WriteString("\nWHERE run_id = ?")
	args := []any{runID}

	if q.width != nil {
		sb.WriteString(" AND width_ms = ?")
		args = append(args, q.width.Milliseconds())
	}
	if q.baselined != nil {
		sb.WriteString(" AND baselined = ?")
		args = append(args, *q.baselined)
	}
	if q.start != nil {
		sb.WriteString(" AND epoch >= ?")
		args = append(args, *q.start)
	}
	if q.end != nil {
		sb.WriteString(" AND epoch <= ?")
		args = append(args, *q.end)
	}
	sb.WriteString("\nORDER BY width_ms, baselined, idx")
	return sb.String(), args
}

// ReadBuckets returns the bucket series stored for a run, ordered by width,
// baselining and index. Without options every series of the run is returned,
// use WithWidth and WithBaselined to select a single one.
//
// Returns ErrNoData when no bucket matches.
func (s *SqliteStore) ReadBuckets(ctx context.Context, runID uuid.UUID, opts ...ReaderOption) (buckets []bucket.Bucket, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var q bucketQuery
	for _, opt := range opts {
		opt(&q)
	}
	query, args := q.build(runID)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying buckets: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data bucketData
		if err = rows.Scan(data.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scanning bucket: %w", err)
		}
		buckets = append(buckets, data.toBucket())
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buckets: %w", err)
	}
	if len(buckets) == 0 {
		return nil, ErrNoData
	}
	return buckets, nil
}

// ReadMetadata returns the log metadata stored for a run. Only the fields
// kept in the database are filled in.
func (s *SqliteStore) ReadMetadata(ctx context.Context, runID uuid.UUID) (m *cwa.Metadata, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var data metadataData
	err = db.QueryRowContext(ctx, selectMetadataSQL, runID).Scan(
		&data.RunID,
		&data.DeviceID,
		&data.SessionID,
		&data.LoggingStart,
		&data.LoggingEnd,
		&data.LastClear,
		&data.LastChange,
		&data.Capacity,
		&data.SamplingRate,
		&data.FirmwareVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("scanning metadata: %w", err)
	}

	m = &cwa.Metadata{
		DeviceID:        uint32(data.DeviceID),
		SessionID:       uint32(data.SessionID),
		LoggingStart:    fromNullEpoch(data.LoggingStart),
		LoggingEnd:      fromNullEpoch(data.LoggingEnd),
		LastClear:       fromNullEpoch(data.LastClear),
		LastChange:      fromNullEpoch(data.LastChange),
		Capacity:        uint32(data.Capacity),
		SamplingRate:    uint8(data.SamplingRate),
		FirmwareVersion: uint8(data.FirmwareVersion),
	}

	rows, err := db.QueryContext(ctx, selectAnnotationsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("querying annotations: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var a annotationData
		if err = rows.Scan(&a.Name, &a.Value, &a.Time); err != nil {
			return nil, fmt.Errorf("scanning annotation: %w", err)
		}
		m.Annotations = append(m.Annotations, cwa.Annotation{Name: a.Name, Value: a.Value, Time: fromNullEpoch(a.Time)})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating annotations: %w", err)
	}
	return m, nil
}
