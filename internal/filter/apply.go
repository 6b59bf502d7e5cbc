package filter

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/sample"
)

// Header names the columns written by WriteCSV
const Header = "timestamp,epoch,x,y,z,tot,fx,fy,fz,ftot"

// Row is one bucket of the averaged series with its high-pass filtered means
type Row struct {
	Epoch    float64
	Count    int
	Mean     [4]float64 // x, y, z and total acceleration means
	Filtered [4]float64 // Filtered x, y, z and their magnitude
}

// Empty reports a row without samples, its values are NaN
func (r *Row) Empty() bool {
	return r.Count == 0
}

// FilteredTotal returns the magnitude of the filtered axis means
func (r *Row) FilteredTotal() float64 {
	return r.Filtered[3]
}

// Apply high-pass filters the x, y and z mean series of buckets, sampled at
// one bucket per width, and derives the filtered total from the three
// filtered axes. A cutoff of zero leaves the means unfiltered.
//
// An empty bucket feeds the last known mean into the filter to keep its
// state continuous and is reported with NaN filtered values.
func Apply(buckets []bucket.Bucket, cutoff float64, width time.Duration) ([]Row, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid bucket width %s", width)
	}
	sampleRate := 1 / width.Seconds()

	rows := make([]Row, len(buckets))
	for i := range buckets {
		b := &buckets[i]
		rows[i] = Row{Epoch: b.Epoch, Count: b.Count}
		for c, ch := range bucket.Channels {
			rows[i].Mean[c] = b.Channel(ch).Mean
		}
	}

	for axis := 0; axis < 3; axis++ {
		series := make([]float64, len(rows))
		last := 0.0
		for i := range rows {
			if !rows[i].Empty() {
				last = rows[i].Mean[axis]
			}
			series[i] = last
		}

		filtered, err := Highpass(series, cutoff, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("filtering axis %d: %w", axis, err)
		}
		for i := range rows {
			rows[i].Filtered[axis] = filtered[i]
		}
	}

	for i := range rows {
		r := &rows[i]
		if r.Empty() {
			nan := math.NaN()
			r.Filtered = [4]float64{nan, nan, nan, nan}
			continue
		}
		fx, fy, fz := r.Filtered[0], r.Filtered[1], r.Filtered[2]
		r.Filtered[3] = math.Sqrt(fx*fx + fy*fy + fz*fz)
	}
	return rows, nil
}

// WriteCSV writes rows with a timestamp column, the epoch, the four means and
// the four filtered values. Values are written with 6 decimals, empty rows are
// skipped when skipEmpty is set.
func WriteCSV(out io.Writer, rows []Row, skipEmpty bool) error {
	w := bufio.NewWriter(out)
	if _, err := w.WriteString(Header + "\n"); err != nil {
		return err
	}

	b := make([]byte, 0, 160)
	for i := range rows {
		r := &rows[i]
		if skipEmpty && r.Empty() {
			continue
		}

		b = b[:0]
		b = append(b, sample.FormatTimestamp(r.Epoch)...)
		b = append(b, ',')
		b = strconv.AppendFloat(b, r.Epoch, 'f', 3, 64)
		for _, v := range r.Mean {
			b = append(b, ',')
			b = strconv.AppendFloat(b, v, 'f', 6, 64)
		}
		for _, v := range r.Filtered {
			b = append(b, ',')
			b = strconv.AppendFloat(b, v, 'f', 6, 64)
		}
		b = append(b, '\n')

		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return w.Flush()
}
