package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// Statistic selects which bucket statistic is plotted
type Statistic string

const (
	StatMean       Statistic = "mean"
	StatPeakToPeak Statistic = "ptp"
	StatRMS        Statistic = "rms"
	StatStdDev     Statistic = "stddev"
)

// Value returns the selected statistic of s
func (st Statistic) Value(s bucket.Stats) float64 {
	switch st {
	case StatPeakToPeak:
		return s.PeakToPeak
	case StatRMS:
		return s.RMS
	case StatStdDev:
		return s.StdDev
	default:
		return s.Mean
	}
}

var validStatistics = map[Statistic]struct{}{
	StatMean:       {},
	StatPeakToPeak: {},
	StatRMS:        {},
	StatStdDev:     {},
}

type Config struct {
	DBPath        string
	CSVPath       string
	RunID         uuid.UUID // uuid.Nil selects the latest run
	BucketWidth   time.Duration
	Baselined     bool
	Channel       bucket.Channel
	Statistic     Statistic
	OutputFile    string
	Format        ImageFormat
	Theme         ColorTheme
	Width         int
	Height        int
	TimeZone      *time.Location
	MinValue      *float64
	MaxValue      *float64
	Verbose       bool
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		BucketWidth: bucket.Minute,
		Channel:     bucket.Total,
		Statistic:   StatMean,
		Format:      ImagePNG,
		Theme:       ClassicTheme,
		Width:       defaultPlotWidth,
		Height:      defaultPlotHeight,
		TimeZone:    time.UTC,
	}
}

func NewConfigFromCLI() (*Config, error) {
	return newConfigFromArgs(flag.CommandLine, os.Args[1:])
}

func newConfigFromArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var runID, channel, statistic, imageFormat, theme, tz string
	var minValue, maxValue float64
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.StringVar(&c.CSVPath, "csv", "", "Path to a bucket CSV file, used instead of the database")
	fs.StringVar(&runID, "run", "", "Run ID, defaults to the latest run")
	fs.DurationVar(&c.BucketWidth, "w", c.BucketWidth, "Bucket width of the series to plot")
	fs.BoolVar(&c.Baselined, "baselined", false, "Plot the baselined series")
	fs.StringVar(&channel, "c", c.Channel.String(), "Channel to plot. [x, y, z, tot]")
	fs.StringVar(&statistic, "s", string(c.Statistic), "Statistic to plot. [mean, ptp, rms, stddev]")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(c.Theme), "Line color theme. [classic, grayscale, jungle, thermal, marine]")
	fs.IntVar(&c.Width, "width", c.Width, "Plot area width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "Plot area height in pixels")
	fs.StringVar(&tz, "tz", "UTC", "Time zone of the time scale")
	fs.Float64Var(&minValue, "min", 0, "Define a manual minimum of the value scale")
	fs.Float64Var(&maxValue, "max", 0, "Define a manual maximum of the value scale")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and value scales")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "min" {
			c.MinValue = &minValue
		}
		if f.Name == "max" {
			c.MaxValue = &maxValue
		}
	})

	imageFormat = strings.ToLower(imageFormat)
	c.Statistic = Statistic(strings.ToLower(statistic))
	c.Theme = ColorTheme(strings.ToLower(theme))

	var err error
	switch {
	case c.DBPath == "" && c.CSVPath == "":
		err = errors.New("db path or csv path is required")
	case c.DBPath != "" && c.CSVPath != "":
		err = errors.New("db path and csv path are mutually exclusive")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.Width < 2 || c.Height < 2:
		err = fmt.Errorf("invalid plot size: %dx%d", c.Width, c.Height)
	case c.BucketWidth <= 0:
		err = fmt.Errorf("invalid bucket width: %s", c.BucketWidth)
	case c.MinValue != nil && c.MaxValue != nil && *c.MinValue >= *c.MaxValue:
		err = fmt.Errorf("minimum %g must be below maximum %g", *c.MinValue, *c.MaxValue)
	}
	if err == nil {
		if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
			err = fmt.Errorf("invalid image format: %s", imageFormat)
		} else if _, ok = validStatistics[c.Statistic]; !ok {
			err = fmt.Errorf("invalid statistic: %s", c.Statistic)
		} else if _, ok = validThemes[c.Theme]; !ok {
			err = fmt.Errorf("invalid color theme: %s", c.Theme)
		}
	}
	if err == nil {
		c.Channel, err = bucket.ParseChannel(strings.ToLower(channel))
	}
	if err == nil && runID != "" {
		if c.RunID, err = uuid.Parse(runID); err != nil {
			err = fmt.Errorf("invalid run id: %w", err)
		}
	}
	if err == nil {
		if c.TimeZone, err = time.LoadLocation(tz); err != nil {
			err = fmt.Errorf("invalid time zone: %w", err)
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
