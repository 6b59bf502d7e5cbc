package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/cwa"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s := NewSqliteStore(filepath.Join(t.TempDir(), "crunch.db"))
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func testSeries(n int, baselined bool) []bucket.Bucket {
	buckets := make([]bucket.Bucket, n)
	for i := range buckets {
		b := &buckets[i]
		b.Index = i
		b.Epoch = 1_574_504_100 + float64(i)*60
		b.Baselined = baselined
		if i%5 == 2 {
			nan := math.NaN()
			for c := range b.Stats {
				b.Stats[c] = bucket.Stats{Mean: nan, PeakToPeak: nan, RMS: nan, StdDev: nan}
			}
			continue
		}
		b.Count = 100 + i
		for c := range b.Stats {
			v := float64(i) + float64(c)/10
			b.Stats[c] = bucket.Stats{Mean: v, PeakToPeak: v * 2, RMS: v + 0.5, StdDev: v / 3}
		}
	}
	return buckets
}

func TestSqliteStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateRun(ctx, "data/first.cwa")
	require.NoError(t, err)
	second, err := s.CreateRun(ctx, "data/second.cwa")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	run, err := s.Run(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first, run.ID)
	assert.Equal(t, "data/first.cwa", run.Source)
	assert.WithinDuration(t, time.Now(), run.StartTime, time.Minute)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)

	_, err = s.Run(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSqliteStore_Metadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	runID, err := s.CreateRun(ctx, "subject.cwa")
	require.NoError(t, err)

	start := time.Date(2019, 11, 23, 10, 0, 0, 0, time.UTC)
	m := &cwa.Metadata{
		DeviceID:        0x10023,
		SessionID:       42,
		LoggingStart:    start,
		LastChange:      start.Add(-time.Hour),
		Capacity:        1024,
		SamplingRate:    0x4a,
		FirmwareVersion: 45,
		Annotations: []cwa.Annotation{
			{Name: "studyCode", Value: "AX3"},
			{Name: "startTime", Value: "23/11/2019", Time: time.Date(2019, 11, 23, 0, 0, 0, 0, time.UTC)},
		},
	}
	require.NoError(t, s.StoreMetadata(ctx, runID, m))

	got, err := s.ReadMetadata(ctx, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.LoggingEnd.IsZero())

	// Storing again replaces the annotations
	m.Annotations = m.Annotations[:1]
	require.NoError(t, s.StoreMetadata(ctx, runID, m))
	got, err = s.ReadMetadata(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, got.Annotations, 1)

	_, err = s.ReadMetadata(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSqliteStore_Buckets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	runID, err := s.CreateRun(ctx, "subject.cwa")
	require.NoError(t, err)

	minutes := testSeries(1234, false)
	baselined := testSeries(20, true)
	seconds := testSeries(3, false)

	require.NoError(t, s.StoreBuckets(ctx, runID, bucket.Minute, minutes))
	require.NoError(t, s.StoreBuckets(ctx, runID, bucket.Minute, baselined))
	require.NoError(t, s.StoreBuckets(ctx, runID, bucket.Second, seconds))
	require.NoError(t, s.StoreBuckets(ctx, runID, bucket.Second, nil))

	testCases := []struct {
		name string
		opts []ReaderOption
		want []bucket.Bucket
	}{
		{"minutes", []ReaderOption{WithWidth(bucket.Minute), WithBaselined(false)}, minutes},
		{"baselined minutes", []ReaderOption{WithWidth(bucket.Minute), WithBaselined(true)}, baselined},
		{"seconds", []ReaderOption{WithWidth(bucket.Second)}, seconds},
		{"epoch range", []ReaderOption{WithWidth(bucket.Minute), WithBaselined(false), WithEpochRange(minutes[10].Epoch, minutes[12].Epoch)}, minutes[10:13]},
		{"every series", nil, append(append(append([]bucket.Bucket{}, seconds...), minutes...), baselined...)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ReadBuckets(ctx, runID, tc.opts...)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateNaNs()); diff != "" {
				t.Errorf("buckets mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err = s.ReadBuckets(ctx, runID, WithWidth(100*time.Millisecond))
	assert.ErrorIs(t, err, ErrNoData)

	_, err = s.ReadBuckets(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSqliteStore_StoreBucketsReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	runID, err := s.CreateRun(ctx, "subject.cwa")
	require.NoError(t, err)

	series := testSeries(4, false)
	require.NoError(t, s.StoreBuckets(ctx, runID, bucket.Minute, series))

	series[1].Stats[bucket.Total].Mean = 99
	require.NoError(t, s.StoreBuckets(ctx, runID, bucket.Minute, series))

	got, err := s.ReadBuckets(ctx, runID, WithWidth(bucket.Minute))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 99.0, got[1].Channel(bucket.Total).Mean)
}

func TestSqliteStore_UnknownRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.StoreBuckets(ctx, uuid.New(), bucket.Minute, testSeries(1, false))
	assert.Error(t, err, "foreign key constraint")
}

func TestSqliteStore_CloseTwice(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "crunch.db"))
	_, err := s.CreateRun(context.Background(), "subject.cwa")
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
