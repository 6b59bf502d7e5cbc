package app

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
)

const (
	defaultPlotWidth  = 1440
	defaultPlotHeight = 400
)

// Column is the value range of the buckets drawn in one pixel column
type Column struct {
	Min, Max float64
	Valid    bool // False when every bucket of the column is empty
}

// PlotData is a bucket series reduced to one Column per pixel
type PlotData struct {
	Width, Height int
	Start, End    time.Time
	BucketWidth   time.Duration
	Columns       []Column
	Bounds        ValueBounds

	Label   string // Channel and statistic
	Title   string // Recording details, may be empty
	Buckets int
	Empty   int
}

// NewPlotData reduces buckets to width columns of height pixels. When there
// are fewer buckets than columns a bucket spans several columns.
func NewPlotData(buckets []bucket.Bucket, bucketWidth time.Duration, ch bucket.Channel, st Statistic, width, height int) (*PlotData, error) {
	if len(buckets) == 0 {
		return nil, errors.New("no buckets to plot")
	}

	values := make([]float64, len(buckets))
	empty := 0
	for i := range buckets {
		if buckets[i].Empty() {
			empty++
		}
		values[i] = st.Value(buckets[i].Channel(ch))
	}

	first := buckets[0].Epoch
	start := epochToTime(first)
	data := PlotData{
		Width:       width,
		Height:      height,
		Start:       start,
		End:         start.Add(time.Duration(len(buckets)) * bucketWidth),
		BucketWidth: bucketWidth,
		Columns:     make([]Column, width),
		Bounds:      NewValueBounds(values),
		Label:       fmt.Sprintf("%s %s", ch, st),
		Buckets:     len(buckets),
		Empty:       empty,
	}

	n := len(values)
	for x := range data.Columns {
		lo := x * n / width
		hi := max((x+1)*n/width, lo+1)

		col := Column{Min: math.Inf(1), Max: math.Inf(-1)}
		for _, v := range values[lo:hi] {
			if math.IsNaN(v) {
				continue
			}
			col.Valid = true
			col.Min = math.Min(col.Min, v)
			col.Max = math.Max(col.Max, v)
		}
		data.Columns[x] = col
	}
	return &data, nil
}

// PixelDuration returns the time covered by one pixel column
func (d *PlotData) PixelDuration() time.Duration {
	return d.End.Sub(d.Start) / time.Duration(d.Width)
}

// Y maps a value to a row of the plot area, 0 being the top
func (d *PlotData) Y(v float64) int {
	ratio := (v - d.Bounds.Min) / (d.Bounds.Max - d.Bounds.Min)
	y := int(math.Round((1 - ratio) * float64(d.Height-1)))
	return min(max(y, 0), d.Height-1)
}

func epochToTime(epoch float64) time.Time {
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
