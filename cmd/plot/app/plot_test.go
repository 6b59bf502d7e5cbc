package app

import (
	"bytes"
	"context"
	"flag"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/storage"
)

const start = 1_574_504_100.0 // 2019-11-23 10:15:00 UTC

func testBuckets(means ...float64) []bucket.Bucket {
	buckets := make([]bucket.Bucket, len(means))
	for i, m := range means {
		b := &buckets[i]
		b.Index = i
		b.Epoch = start + float64(i)*60
		b.Stats[bucket.Total] = bucket.Stats{Mean: m, PeakToPeak: 2 * m, RMS: m, StdDev: 0}
		if !math.IsNaN(m) {
			b.Count = 600
		}
	}
	return buckets
}

func parseArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return newConfigFromArgs(fs, args)
}

func TestConfig(t *testing.T) {
	c, err := parseArgs(t, "-db", "crunch.sqlite", "-o", "minutes", "-c", "x", "-s", "RMS", "-f", "JPEG", "-max", "2.5", "-w", "1s")
	require.NoError(t, err)

	assert.Equal(t, "crunch.sqlite", c.DBPath)
	assert.Equal(t, "minutes.jpeg", c.OutputFile)
	assert.Equal(t, ImageFormat(ImageJPEG), c.Format)
	assert.Equal(t, bucket.X, c.Channel)
	assert.Equal(t, StatRMS, c.Statistic)
	assert.Equal(t, time.Second, c.BucketWidth)
	assert.Equal(t, uuid.Nil, c.RunID)
	assert.Nil(t, c.MinValue)
	require.NotNil(t, c.MaxValue)
	assert.Equal(t, 2.5, *c.MaxValue)
	assert.Equal(t, time.UTC, c.TimeZone)

	id := uuid.New()
	c, err = parseArgs(t, "-csv", "minutes.csv", "-o", "plot", "-run", id.String())
	require.NoError(t, err)
	assert.Equal(t, id, c.RunID)
	assert.Equal(t, bucket.Total, c.Channel)
	assert.Equal(t, "plot.png", c.OutputFile)
}

func TestConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"no source", []string{"-o", "plot"}},
		{"both sources", []string{"-db", "a", "-csv", "b", "-o", "plot"}},
		{"no output", []string{"-db", "a"}},
		{"bad format", []string{"-db", "a", "-o", "plot", "-f", "gif"}},
		{"bad channel", []string{"-db", "a", "-o", "plot", "-c", "w"}},
		{"bad statistic", []string{"-db", "a", "-o", "plot", "-s", "median"}},
		{"bad theme", []string{"-db", "a", "-o", "plot", "-theme", "neon"}},
		{"bad run", []string{"-db", "a", "-o", "plot", "-run", "seven"}},
		{"bad zone", []string{"-db", "a", "-o", "plot", "-tz", "Mars/Olympus"}},
		{"inverted range", []string{"-db", "a", "-o", "plot", "-min", "2", "-max", "1"}},
		{"tiny plot", []string{"-db", "a", "-o", "plot", "-width", "1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseArgs(t, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestNewValueBounds(t *testing.T) {
	b := NewValueBounds([]float64{1, 2, math.NaN(), 3, math.Inf(1)})
	assert.InDelta(t, 0.8, b.Min, 1e-9)
	assert.InDelta(t, 3.2, b.Max, 1e-9)
	assert.InDelta(t, 2.0, b.Mean, 1e-9)

	constant := NewValueBounds([]float64{0.98, 0.98})
	assert.InDelta(t, 0.48, constant.Min, 1e-12)
	assert.InDelta(t, 1.48, constant.Max, 1e-12)

	assert.Equal(t, ValueBounds{Min: -1, Max: 1}, NewValueBounds([]float64{math.NaN()}))

	lo, hi := 0.0, 0.5
	assert.Equal(t, ValueBounds{Min: 0, Max: 0.5, Mean: 2}, b.Override(&lo, &hi))
	assert.Equal(t, ValueBounds{Min: 4, Max: 5, Mean: 2}, b.Override(ptr(4.0), nil))
}

func ptr(v float64) *float64 {
	return &v
}

func TestNewPlotData(t *testing.T) {
	nan := math.NaN()
	buckets := testBuckets(1, 3, nan, nan, 2, 4)

	data, err := NewPlotData(buckets, bucket.Minute, bucket.Total, StatMean, 3, 100)
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Min: 1, Max: 3, Valid: true},
		{Min: math.Inf(1), Max: math.Inf(-1)},
		{Min: 2, Max: 4, Valid: true},
	}, data.Columns)
	assert.Equal(t, 6, data.Buckets)
	assert.Equal(t, 2, data.Empty)
	assert.Equal(t, "tot mean", data.Label)
	assert.Equal(t, time.Date(2019, 11, 23, 10, 15, 0, 0, time.UTC), data.Start)
	assert.Equal(t, time.Date(2019, 11, 23, 10, 21, 0, 0, time.UTC), data.End)
	assert.Equal(t, 2*time.Minute, data.PixelDuration())

	// Fewer buckets than columns
	wide, err := NewPlotData(buckets[:2], bucket.Minute, bucket.Total, StatPeakToPeak, 4, 100)
	require.NoError(t, err)
	assert.Equal(t, Column{Min: 2, Max: 2, Valid: true}, wide.Columns[1])
	assert.Equal(t, Column{Min: 6, Max: 6, Valid: true}, wide.Columns[3])

	_, err = NewPlotData(nil, bucket.Minute, bucket.Total, StatMean, 3, 100)
	assert.Error(t, err)
}

func TestPlotData_Y(t *testing.T) {
	data := PlotData{Height: 101, Bounds: ValueBounds{Min: 0, Max: 1}}

	assert.Equal(t, 100, data.Y(0))
	assert.Equal(t, 0, data.Y(1))
	assert.Equal(t, 50, data.Y(0.5))
	assert.Equal(t, 0, data.Y(7), "clamped to the top")
	assert.Equal(t, 100, data.Y(-7), "clamped to the bottom")
}

func TestCalculateNiceSteps(t *testing.T) {
	assert.Equal(t, 0.2, calculateNiceValueStep(1, 400))
	assert.Equal(t, 5.0, calculateNiceValueStep(23, 400))
	assert.Equal(t, "0.40", formatValue(0.4, 0.05))
	assert.Equal(t, "0.0", formatValue(1e-17, 0.2))

	assert.Equal(t, 4*time.Hour, calculateNiceTimeStep(24*time.Hour, 1440))
	assert.Equal(t, time.Minute, calculateNiceTimeStep(6*time.Minute, 1440))
	assert.Equal(t, 24*time.Hour, calculateNiceTimeStep(30*24*time.Hour, 1440))
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}

func TestLineRenderer_Render(t *testing.T) {
	nan := math.NaN()
	data, err := NewPlotData(testBuckets(1, 1, nan, 1), bucket.Minute, bucket.Total, StatMean, 4, 50)
	require.NoError(t, err)

	for _, annotate := range []bool{true, false} {
		img, err := NewLineRenderer(RenderConfig{NoAnnotations: !annotate}).Render(data)
		require.NoError(t, err)

		size := img.Bounds().Size()
		assert.Equal(t, 4+defaultLeftBorder+defaultRightBorder, size.X)
		assert.Equal(t, 50+defaultTopBorder+defaultBottomBorder, size.Y)

		y := defaultTopBorder + data.Y(1)
		assert.False(t, isWhite(img.At(defaultLeftBorder, y)), "line pixel")
		assert.NotEqual(t, img.At(defaultLeftBorder, y), img.At(defaultLeftBorder+2, y), "empty bucket gap")
		assert.False(t, isWhite(img.At(defaultLeftBorder+3, y)), "line pixel")

		assert.Equal(t, annotate, !isWhite(img.At(defaultLeftBorder-1, defaultTopBorder-1)), "frame corner")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_FromCSV(t *testing.T) {
	dir := t.TempDir()

	var csv bytes.Buffer
	require.NoError(t, bucket.WriteCSV(&csv, testBuckets(1, 1.2, 0.9, 1.1), bucket.WithHeader()))
	csvPath := filepath.Join(dir, "minutes.csv")
	require.NoError(t, os.WriteFile(csvPath, csv.Bytes(), 0o644))

	config := NewConfig()
	config.CSVPath = csvPath
	config.Width, config.Height = 200, 100
	config.OutputFile = filepath.Join(dir, "minutes.png")

	require.NoError(t, Run(context.Background(), config, testLogger()))

	f, err := os.Open(config.OutputFile)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200+defaultLeftBorder+defaultRightBorder, img.Bounds().Dx())
}

func TestRun_FromStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "crunch.sqlite")

	store := storage.NewSqliteStore(dbPath)
	runID, err := store.CreateRun(ctx, "subject.cwa")
	require.NoError(t, err)
	require.NoError(t, store.StoreBuckets(ctx, runID, bucket.Minute, testBuckets(1, 2, 3)))
	require.NoError(t, store.Close())

	config := NewConfig()
	config.DBPath = dbPath
	config.Format = ImageJPEG
	config.OutputFile = filepath.Join(dir, "plot.jpeg")

	require.NoError(t, Run(ctx, config, testLogger()))
	assert.FileExists(t, config.OutputFile)

	config.Baselined = true
	assert.ErrorIs(t, Run(ctx, config, testLogger()), storage.ErrNoData)

	config.DBPath = filepath.Join(dir, "missing.sqlite")
	assert.ErrorIs(t, Run(ctx, config, testLogger()), os.ErrNotExist)
}
