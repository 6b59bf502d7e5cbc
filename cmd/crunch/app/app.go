package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/chart"
	"github.com/roman-kulish/accel-crunch/internal/cwa"
	"github.com/roman-kulish/accel-crunch/internal/filter"
	"github.com/roman-kulish/accel-crunch/internal/sample"
	"github.com/roman-kulish/accel-crunch/internal/storage"
)

const dbFileName = "crunch.sqlite"

// Run processes every input log: decode, split by day, aggregate, filter and
// store. Cancelling ctx stops processing before the next file.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var store storage.Store
	if !config.Storage.Disabled {
		s, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.Error("closing storage", slog.String("error", err.Error()))
			}
		}()
		store = s
	}

	p := pipeline{
		config: config,
		store:  store,
		logger: logger,
		decoder: cwa.NewDecoder(
			cwa.WithLogger(logger),
			cwa.WithStandardGravity(config.Decode.StandardGravity),
			cwa.WithLimit(config.Decode.Limit),
		),
		loader: sample.NewLoader(sample.WithLoaderLogger(logger)),
	}
	if config.Charts.Enabled {
		options := []func(*chart.Plotter){
			chart.WithLogger(logger),
			chart.WithFormat(config.Charts.Format),
			chart.WithGrid(config.Charts.Grid),
		}
		if config.Charts.ShowTime {
			options = append(options, chart.WithShowTime(time.UTC))
		}
		p.charts = chart.NewPlotter(options...)
	}

	for _, path := range config.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processLog(ctx, path); err != nil {
			return fmt.Errorf("processing %s: %w", path, err)
		}
	}
	return nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = defaultDataDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory '%s': %w", dir, err)
	}
	return storage.NewSqliteStore(filepath.Join(dir, dbFileName)), nil
}

type pipeline struct {
	config  *Config
	store   storage.Store
	logger  *slog.Logger
	decoder *cwa.Decoder
	loader  *sample.Loader
	charts  *chart.Plotter
}

func (p *pipeline) processLog(ctx context.Context, path string) error {
	csvPath, metadataPath := cwa.OutputPaths(path, p.config.Decode.OutputDirectory)

	var metadata *cwa.Metadata
	if _, err := os.Stat(csvPath); err == nil {
		p.logger.Info("not regenerating existing file", slog.String("path", csvPath))
	} else {
		res, err := p.decoder.DecodeFile(path, csvPath, metadataPath,
			cwa.WithLinuxLineEndings(p.config.Decode.Linux),
			cwa.WithHeader(!p.config.Decode.NoHeader))
		if err != nil {
			return err
		}
		metadata = res.Metadata
		p.logger.Info("decoded log",
			slog.String("output", csvPath),
			slog.String("metadata", metadataPath),
			slog.String("samples", humanize.Comma(int64(res.Samples))))
	}

	if !p.config.Aggregate.SplitByDay {
		runID, err := p.createRun(ctx, path, metadata)
		if err != nil {
			return err
		}
		return p.processSamples(ctx, runID, csvPath)
	}

	files, err := sample.SplitByDay(csvPath, "")
	if err != nil {
		return fmt.Errorf("splitting %s: %w", csvPath, err)
	}
	p.logger.Info("split sample file", slog.String("path", csvPath), slog.Int("days", len(files)))

	// Bucket indices restart every day, so each day file gets a run of its own
	for _, file := range files {
		if err = ctx.Err(); err != nil {
			return err
		}
		runID, err := p.createRun(ctx, file, metadata)
		if err != nil {
			return err
		}
		if err = p.processSamples(ctx, runID, file); err != nil {
			return fmt.Errorf("processing %s: %w", file, err)
		}
	}
	return nil
}

func (p *pipeline) createRun(ctx context.Context, path string, metadata *cwa.Metadata) (uuid.UUID, error) {
	if p.store == nil {
		return uuid.Nil, nil
	}

	runID, err := p.store.CreateRun(ctx, path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating run: %w", err)
	}
	if metadata != nil {
		if err = p.store.StoreMetadata(ctx, runID, metadata); err != nil {
			return uuid.Nil, fmt.Errorf("storing metadata: %w", err)
		}
	}
	p.logger.Info("created run", slog.String("runID", runID.String()), slog.String("source", path))
	return runID, nil
}

func (p *pipeline) processSamples(ctx context.Context, runID uuid.UUID, path string) error {
	series, err := p.loader.Load(path)
	if err != nil {
		return err
	}
	if series.Len() == 0 {
		p.logger.Warn("no samples", slog.String("path", path))
		return nil
	}
	p.logSummary(path, sample.Summarise(series))

	dir := filepath.Dir(path)
	date := series.FirstDate()

	outputs := []struct {
		name     string
		width    time.Duration
		baseline bool
		chart    bool
		options  []bucket.WriterOption
	}{
		{"minutes", bucket.Minute, false, true, []bucket.WriterOption{bucket.WithHeader(), bucket.WithSkipEmpty()}},
		{"baselined_minutes", bucket.Minute, true, true, []bucket.WriterOption{bucket.WithHeader(), bucket.WithSkipEmpty()}},
		{"seconds", bucket.Second, false, false, []bucket.WriterOption{bucket.WithHeader()}},
	}

	var seconds []bucket.Bucket
	for _, o := range outputs {
		buckets, err := p.aggregate(series, o.width, o.baseline)
		if err != nil {
			return err
		}

		out := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", o.name, date))
		if err = writeFile(out, func(f *os.File) error {
			return bucket.WriteCSV(f, buckets, o.options...)
		}); err != nil {
			return fmt.Errorf("writing %s: %w", o.name, err)
		}
		p.logger.Info("wrote buckets", slog.String("path", out), slog.Int("buckets", len(buckets)))

		if err = p.storeBuckets(ctx, runID, o.width, buckets); err != nil {
			return err
		}
		if o.chart && p.charts != nil {
			if _, err = p.charts.WriteAll(buckets, o.width, dir, date); err != nil {
				return fmt.Errorf("charting %s: %w", o.name, err)
			}
		}
		if o.width == bucket.Second && !o.baseline {
			seconds = buckets
		}
	}

	if err = p.average(ctx, runID, series, path); err != nil {
		return err
	}
	if err = p.wear(series, path); err != nil {
		return err
	}
	if err = p.median(series, path); err != nil {
		return err
	}

	if limit := p.config.Aggregate.SweepLimit; limit > 0 {
		kept := bucket.Sweep(seconds, bucket.Total, limit)
		out := filepath.Join(dir, fmt.Sprintf("sweep_%s.csv", date))
		if err = writeFile(out, func(f *os.File) error {
			return bucket.WriteSweepCSV(f, kept)
		}); err != nil {
			return fmt.Errorf("writing sweep: %w", err)
		}
		p.logger.Info("wrote sweep", slog.String("path", out), slog.Int("kept", len(kept)), slog.Int("of", len(seconds)))
	}
	return nil
}

// average writes the high-pass filtered series at the configured resolution
// and logs the idle periods found in it
func (p *pipeline) average(ctx context.Context, runID uuid.UUID, series *sample.Series, path string) error {
	resolution := time.Duration(p.config.Aggregate.Resolution)

	buckets, err := p.aggregate(series, resolution, false)
	if err != nil {
		return err
	}

	rows, err := filter.Apply(buckets, p.config.Aggregate.Cutoff, resolution)
	if err != nil {
		return fmt.Errorf("filtering: %w", err)
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + "_out.csv"
	if err = writeFile(out, func(f *os.File) error {
		return filter.WriteCSV(f, rows, false)
	}); err != nil {
		return fmt.Errorf("writing averaged series: %w", err)
	}
	p.logger.Info("wrote averaged series",
		slog.String("path", out),
		slog.String("resolution", resolution.String()),
		slog.Float64("cutoff", p.config.Aggregate.Cutoff))

	if resolution != bucket.Second && resolution != bucket.Minute {
		if err = p.storeBuckets(ctx, runID, resolution, buckets); err != nil {
			return err
		}
	}

	periods := filter.IdlePeriods(rows, p.config.Aggregate.IdleThreshold, time.Duration(p.config.Aggregate.Window))
	for _, period := range periods {
		p.logger.Info("idle period",
			slog.String("start", sample.FormatTimestamp(period.Start)),
			slog.String("end", sample.FormatTimestamp(period.End)),
			slog.String("duration", period.Duration().Round(time.Second).String()))
	}
	return nil
}

// wear writes the per-second peak and wear state and logs the spans the
// device was not worn
func (p *pipeline) wear(series *sample.Series, path string) error {
	threshold := p.config.Aggregate.WearThreshold
	if threshold == 0 {
		return nil
	}

	seconds := filter.PeakPerSecond(series)
	filter.MarkWear(seconds, threshold, time.Duration(p.config.Aggregate.WearWindow))

	out := prefixedPath(path, fmt.Sprintf("wearing_%g_", threshold))
	if err := writeFile(out, func(f *os.File) error {
		return filter.WriteWearCSV(f, seconds)
	}); err != nil {
		return fmt.Errorf("writing wear state: %w", err)
	}
	p.logger.Info("wrote wear state", slog.String("path", out), slog.Int("seconds", len(seconds)))

	for _, period := range filter.NotWorn(seconds) {
		p.logger.Info("not worn",
			slog.String("start", sample.FormatTimestamp(period.Start)),
			slog.String("end", sample.FormatTimestamp(period.End)),
			slog.String("duration", period.Duration().String()))
	}
	return nil
}

// median writes the running median of the samples next to the sample file
func (p *pipeline) median(series *sample.Series, path string) error {
	window := p.config.Aggregate.MedianWindow
	if window == 0 {
		return nil
	}

	smoothed, err := filter.MedianSeries(series, window)
	if err != nil {
		return fmt.Errorf("median filtering: %w", err)
	}

	out := prefixedPath(path, "median_")
	if err = writeFile(out, func(f *os.File) error {
		return filter.WriteSeries(f, smoothed)
	}); err != nil {
		return fmt.Errorf("writing median series: %w", err)
	}
	p.logger.Info("wrote median series", slog.String("path", out), slog.Int("window", window))
	return nil
}

func prefixedPath(path, prefix string) string {
	return filepath.Join(filepath.Dir(path), prefix+filepath.Base(path))
}

func (p *pipeline) aggregate(series *sample.Series, width time.Duration, baseline bool) ([]bucket.Bucket, error) {
	a, err := bucket.NewAggregator(width, bucket.WithBaseline(baseline), bucket.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	buckets, err := a.Aggregate(series)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s buckets: %w", width, err)
	}
	return buckets, nil
}

func (p *pipeline) storeBuckets(ctx context.Context, runID uuid.UUID, width time.Duration, buckets []bucket.Bucket) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.StoreBuckets(ctx, runID, width, buckets); err != nil {
		return fmt.Errorf("storing %s buckets: %w", width, err)
	}
	return nil
}

func (p *pipeline) logSummary(path string, s sample.Summary) {
	attrs := []any{slog.String("path", path)}
	for _, c := range s.Channels {
		group := []any{
			slog.String("n", humanize.Comma(int64(c.N))),
			slog.Float64("min", c.Min),
			slog.Float64("max", c.Max),
			slog.Float64("mean", c.Mean),
			slog.Float64("stdDev", c.StdDev),
			slog.Float64("peakToPeak", c.PeakToPeak),
		}
		for i, threshold := range sample.Thresholds {
			group = append(group, slog.Int(fmt.Sprintf("above%gg", threshold), c.Above[i]))
		}
		attrs = append(attrs, slog.Group(c.Name, group...))
	}
	p.logger.Info("sample summary", attrs...)
}

func writeFile(path string, write func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()
	return write(f)
}
