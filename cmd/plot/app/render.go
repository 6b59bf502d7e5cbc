package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 120.0
	fontSize       = 9.0
	tickMarkLength = 5
	pixelsPerLabel = 150.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	defaultDatetimeFormat = time.DateTime
)

var (
	gridColor  = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	frameColor = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
)

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Space for time scale
	Left   int // Space for value scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for the line plot
type RenderConfig struct {
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display

	FontSize      float64
	ColorTheme    ColorTheme
	NoAnnotations bool

	BorderConfig BorderConfig
}

// LineRenderer draws a bucket series as a line plot
type LineRenderer struct {
	config RenderConfig
}

// NewLineRenderer creates a new renderer with the given configuration
func NewLineRenderer(config RenderConfig) *LineRenderer {
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &LineRenderer{config: config}
}

// Render creates an image of the plot data with annotations
func (r *LineRenderer) Render(data *PlotData) (*image.RGBA, error) {
	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, data.Width+b.Left+b.Right, data.Height+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(b.Left, b.Top, b.Left+data.Width, b.Top+data.Height)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			FontSize:       r.config.FontSize,
			Borders:        b,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, area, data); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderLine(img, area, data)
	return img, nil
}

// renderLine draws every column as a vertical segment over its value range,
// joined to the previous column so the line stays continuous
func (r *LineRenderer) renderLine(img *image.RGBA, area image.Rectangle, data *PlotData) {
	colors := NewColorMapper(r.config.ColorTheme, data.Bounds)

	prevY := -1
	for x, col := range data.Columns {
		if !col.Valid {
			prevY = -1
			continue
		}

		top, bottom := data.Y(col.Max), data.Y(col.Min)
		if prevY >= 0 {
			top, bottom = min(top, prevY), max(bottom, prevY)
		}

		c := colors.GetColor(col.Max)
		for y := top; y <= bottom; y++ {
			img.Set(area.Min.X+x, area.Min.Y+y, c)
		}
		prevY = data.Y((col.Min + col.Max) / 2)
	}
}

type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, data *PlotData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, image.Rectangle, *PlotData) error
	}{
		{"drawing value scale", a.drawValueScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, area, data); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	drawRect(img, area, frameColor)
	return nil
}

func (a *annotator) fontHeight() (height, descent int) {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round(), metrics.Descent.Round()
}

func (a *annotator) drawValueScale(img *image.RGBA, area image.Rectangle, data *PlotData) error {
	step := calculateNiceValueStep(data.Bounds.Max-data.Bounds.Min, data.Height)
	fontHeight, descent := a.fontHeight()

	for v := math.Ceil(data.Bounds.Min/step) * step; v <= data.Bounds.Max; v += step {
		y := area.Min.Y + data.Y(v)

		// Grid line across the plot and tick mark in the border
		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatValue(v, step)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(area.Min.X-tickMarkLength-3-width, y+fontHeight/2-descent)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing value label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, data *PlotData) error {
	duration := data.End.Sub(data.Start)
	step := calculateNiceTimeStep(duration, data.Width)

	layout := "15:04"
	if step < time.Minute {
		layout = "15:04:05"
	}

	fontHeight, _ := a.fontHeight()
	textY := a.config.Borders.Top - tickMarkLength - fontHeight/2

	start := data.Start.In(a.config.Location)
	for t := start.Truncate(step); !t.After(data.End); t = t.Add(step) {
		if t.Before(start) {
			continue
		}
		x := area.Min.X + int(float64(data.Width)*float64(t.Sub(start))/float64(duration))

		for y := area.Min.Y - tickMarkLength; y < area.Min.Y; y++ {
			img.Set(x, y, color.Black)
		}

		label := t.Format(layout)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(x-width/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, area image.Rectangle, data *PlotData) error {
	var sb strings.Builder

	if data.Title != "" {
		sb.WriteString(data.Title)
		sb.WriteString("; ")
	}
	sb.WriteString(data.Label)
	sb.WriteString(fmt.Sprintf("; Time: %s - %s",
		data.Start.In(a.config.Location).Format(a.config.DatetimeFormat),
		data.End.In(a.config.Location).Format(a.config.DatetimeFormat)))
	sb.WriteString(fmt.Sprintf("; %s buckets of %s", humanize.Comma(int64(data.Buckets)), data.BucketWidth))
	if data.Empty > 0 {
		sb.WriteString(fmt.Sprintf(" (%s empty)", humanize.Comma(int64(data.Empty))))
	}
	sb.WriteString(fmt.Sprintf("; 1px = %s", data.PixelDuration().Round(time.Millisecond)))

	fontHeight, descent := a.fontHeight()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - descent

	pt := freetype.Pt(area.Min.X, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X - 1; x <= r.Max.X; x++ {
		img.Set(x, r.Min.Y-1, c)
		img.Set(x, r.Max.Y, c)
	}
	for y := r.Min.Y - 1; y <= r.Max.Y; y++ {
		img.Set(r.Min.X-1, y, c)
		img.Set(r.Max.X, y, c)
	}
}

// calculateNiceValueStep returns a 1, 2 or 5 times power of ten step giving
// labels roughly every pixelsPerLabel/2 pixels
func calculateNiceValueStep(span float64, height int) float64 {
	desiredSteps := math.Max(float64(height)/(pixelsPerLabel/2), 1)
	rough := span / desiredSteps

	magnitude := math.Pow(10, math.Floor(math.Log10(rough)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= rough {
			return step
		}
	}
	return 10 * magnitude
}

func formatValue(v, step float64) string {
	decimals := max(0, int(-math.Floor(math.Log10(step))))
	if math.Abs(v) < step/2 {
		v = 0
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

func calculateNiceTimeStep(duration time.Duration, width int) time.Duration {
	roughStep := duration / time.Duration(max(float64(width)/pixelsPerLabel, 1))

	niceIntervals := []time.Duration{
		time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
		time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
		2 * time.Hour,
		4 * time.Hour,
		6 * time.Hour,
		12 * time.Hour,
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return interval
		}
	}
	return 24 * time.Hour
}
