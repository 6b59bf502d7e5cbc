// Package chart draws one chart per bucket statistic, the quick look overview
// produced next to the bucket CSV files.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
)

const (
	defaultWidth  = 10 * vg.Inch
	defaultHeight = 5 * vg.Inch
	defaultFormat = "pdf"
)

// ErrNoPoints is returned for a series whose buckets are all empty
var ErrNoPoints = errors.New("no non-empty buckets to chart")

// Statistic selects one field of bucket.Stats
type Statistic struct {
	Name  string // Used in file names
	Title string
	Value func(bucket.Stats) float64
}

// Statistics lists every charted statistic in CSV column order
var Statistics = []Statistic{
	{"mean", "Mean", func(s bucket.Stats) float64 { return s.Mean }},
	{"peak_to_peak", "peak to peak", func(s bucket.Stats) float64 { return s.PeakToPeak }},
	{"rms", "RMS", func(s bucket.Stats) float64 { return s.RMS }},
	{"std_dev", "std dev", func(s bucket.Stats) float64 { return s.StdDev }},
}

var channelNames = map[bucket.Channel]string{
	bucket.X:     "x",
	bucket.Y:     "y",
	bucket.Z:     "z",
	bucket.Total: "total",
}

var lineColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}

// Plotter writes the charts of a bucket series
type Plotter struct {
	logger   *slog.Logger
	format   string
	width    vg.Length
	height   vg.Length
	showTime bool
	grid     bool
	location *time.Location
	minValue *float64
	maxValue *float64
}

func WithLogger(logger *slog.Logger) func(*Plotter) {
	return func(p *Plotter) {
		p.logger = logger
	}
}

// WithFormat selects the file format by extension: pdf, png, svg, eps, jpg or tif
func WithFormat(format string) func(*Plotter) {
	return func(p *Plotter) {
		if format != "" {
			p.format = format
		}
	}
}

// WithShowTime labels the X axis with the time of day instead of the bucket index
func WithShowTime(loc *time.Location) func(*Plotter) {
	return func(p *Plotter) {
		p.showTime = true
		if loc != nil {
			p.location = loc
		}
	}
}

func WithGrid(grid bool) func(*Plotter) {
	return func(p *Plotter) {
		p.grid = grid
	}
}

// WithRange fixes the Y axis limits, a nil bound is computed from the data
func WithRange(minValue, maxValue *float64) func(*Plotter) {
	return func(p *Plotter) {
		p.minValue, p.maxValue = minValue, maxValue
	}
}

func NewPlotter(options ...func(*Plotter)) *Plotter {
	p := Plotter{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		format:   defaultFormat,
		width:    defaultWidth,
		height:   defaultHeight,
		location: time.UTC,
	}
	for _, option := range options {
		option(&p)
	}
	return &p
}

// Name returns the file name of the chart of st over channel c, e.g.
// "baselined_plot_mean_x_2019-11-23.pdf"
func (p *Plotter) Name(c bucket.Channel, st Statistic, baselined bool, suffix string) string {
	name := fmt.Sprintf("plot_%s_%s_%s.%s", st.Name, channelNames[c], suffix, p.format)
	if baselined {
		name = "baselined_" + name
	}
	return name
}

// Title returns the chart title of st over channel c for buckets of width
func Title(c bucket.Channel, st Statistic, width time.Duration, baselined bool) string {
	title := fmt.Sprintf("%s of %s acceleration over %s", st.Title, channelNames[c], unitName(width))
	if baselined {
		title = "Baselined " + title
	}
	return title
}

func unitName(width time.Duration) string {
	switch width {
	case bucket.Minute:
		return "minute"
	case bucket.Second:
		return "second"
	default:
		return width.String()
	}
}

// WriteAll writes one chart per channel and statistic into dir and returns the
// created paths. Series with no samples at all are skipped.
func (p *Plotter) WriteAll(buckets []bucket.Bucket, width time.Duration, dir, suffix string) ([]string, error) {
	if len(buckets) == 0 {
		return nil, ErrNoPoints
	}
	baselined := buckets[0].Baselined

	var paths []string
	for _, c := range bucket.Channels {
		for _, st := range Statistics {
			path := filepath.Join(dir, p.Name(c, st, baselined, suffix))

			err := p.Write(path, buckets, c, st, width)
			if errors.Is(err, ErrNoPoints) {
				p.logger.Debug("skipping empty chart", slog.String("path", path))
				continue
			}
			if err != nil {
				return paths, fmt.Errorf("charting %s %s: %w", c, st.Name, err)
			}
			paths = append(paths, path)
		}
	}

	p.logger.Info("wrote charts", slog.String("dir", dir), slog.Int("count", len(paths)))
	return paths, nil
}

// Write draws statistic st of channel c as a line and saves it to path. Empty
// buckets are left out of the line.
func (p *Plotter) Write(path string, buckets []bucket.Bucket, c bucket.Channel, st Statistic, width time.Duration) error {
	pts := make(plotter.XYs, 0, len(buckets))
	for i := range buckets {
		b := &buckets[i]
		v := st.Value(b.Channel(c))
		if b.Empty() || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		x := float64(b.Index)
		if p.showTime {
			x = b.Epoch
		}
		pts = append(pts, plotter.XY{X: x, Y: v})
	}
	if len(pts) == 0 {
		return ErrNoPoints
	}

	plt := plot.New()
	plt.Title.Text = Title(c, st, width, buckets[0].Baselined)
	plt.Y.Label.Text = "acceleration (g)"

	if p.showTime {
		plt.X.Label.Text = "time"
		plt.X.Tick.Marker = plot.TimeTicks{Format: "15:04", Time: plot.UnixTimeIn(p.location)}
	} else {
		plt.X.Label.Text = unitName(width)
	}

	if p.grid {
		plt.Add(plotter.NewGrid())
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("creating line: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(1)
	plt.Add(line)

	if p.minValue != nil {
		plt.Y.Min = *p.minValue
	}
	if p.maxValue != nil {
		plt.Y.Max = *p.maxValue
	}

	if err = plt.Save(p.width, p.height, path); err != nil {
		return fmt.Errorf("saving chart: %w", err)
	}
	return nil
}
