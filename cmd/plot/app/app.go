package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var (
		buckets []bucket.Bucket
		title   string
		err     error
	)
	if config.CSVPath != "" {
		buckets, err = readCSV(config.CSVPath)
	} else {
		buckets, title, err = readStore(ctx, config, logger)
	}
	if err != nil {
		return err
	}

	data, err := NewPlotData(buckets, config.BucketWidth, config.Channel, config.Statistic, config.Width, config.Height)
	if err != nil {
		return err
	}
	data.Title = title
	data.Bounds = data.Bounds.Override(config.MinValue, config.MaxValue)

	logger.Info("finished reading buckets",
		slog.Group("stats",
			slog.String("start", data.Start.In(config.TimeZone).Format(time.DateTime)),
			slog.String("end", data.End.In(config.TimeZone).Format(time.DateTime)),
			slog.Int("buckets", data.Buckets),
			slog.Int("empty", data.Empty),
			slog.String("min", fmt.Sprintf("%0.4f", data.Bounds.Min)),
			slog.String("max", fmt.Sprintf("%0.4f", data.Bounds.Max)),
		))

	renderer := NewLineRenderer(RenderConfig{
		Location:      config.TimeZone,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})

	logger.Info("rendering plot",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.String("series", data.Label),
			slog.Int("width", data.Width),
			slog.Int("height", data.Height),
		))

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}
	return writeImage(config.OutputFile, config.Format, img)
}

func readCSV(path string) (buckets []bucket.Bucket, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bucket file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if buckets, err = bucket.ReadCSV(f); err != nil {
		return nil, fmt.Errorf("reading bucket file: %w", err)
	}
	return buckets, nil
}

func readStore(ctx context.Context, config *Config, logger *slog.Logger) ([]bucket.Bucket, string, error) {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return nil, "", fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	runID := config.RunID
	if runID == uuid.Nil {
		runs, err := store.Runs(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("listing runs: %w", err)
		}
		if len(runs) == 0 {
			return nil, "", fmt.Errorf("database '%s' holds no runs: %w", config.DBPath, storage.ErrNoData)
		}
		runID = runs[len(runs)-1].ID
	}

	run, err := store.Run(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	logger.Info("reading run",
		slog.String("runID", run.ID.String()),
		slog.String("source", run.Source),
		slog.String("width", config.BucketWidth.String()),
		slog.Bool("baselined", config.Baselined))

	buckets, err := store.ReadBuckets(ctx, run.ID,
		storage.WithWidth(config.BucketWidth),
		storage.WithBaselined(config.Baselined))
	if err != nil {
		return nil, "", fmt.Errorf("reading buckets: %w", err)
	}

	title := run.Source
	m, err := store.ReadMetadata(ctx, run.ID)
	switch {
	case err == nil:
		title = fmt.Sprintf("%s (device %d, session %d)", run.Source, m.DeviceID, m.SessionID)
	case !errors.Is(err, storage.ErrNoData):
		return nil, "", fmt.Errorf("reading metadata: %w", err)
	}
	return buckets, title, nil
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		err = png.Encode(out, img)
	}
	return err
}
