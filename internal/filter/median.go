package filter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/accel-crunch/internal/sample"
)

// DefaultMedianWindow is the running median length in samples
const DefaultMedianWindow = 25

// ErrInvalidWindow is returned for median windows that are not odd and positive
var ErrInvalidWindow = errors.New("median window must be odd and positive")

// Median smooths in with a running median over window points centred on each
// point. Points past either end repeat the first or last value.
func Median(in []float64, window int) ([]float64, error) {
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	out := make([]float64, len(in))
	if len(in) == 0 {
		return out, nil
	}

	half := window / 2
	last := len(in) - 1
	scratch := make([]float64, window)
	for i := range in {
		for j := range scratch {
			scratch[j] = in[min(max(i-half+j, 0), last)]
		}
		sort.Float64s(scratch)
		out[i] = stat.Quantile(0.5, stat.Empirical, scratch, nil)
	}
	return out, nil
}

// MedianSeries returns a copy of s with each axis median filtered and the
// total acceleration recomputed from the filtered axes.
func MedianSeries(s *sample.Series, window int) (*sample.Series, error) {
	out := sample.Series{
		Timestamp: s.Timestamp,
		Epoch:     s.Epoch,
		Skipped:   s.Skipped,
	}

	var err error
	for _, axis := range []struct {
		in  []float64
		out *[]float64
	}{
		{s.X, &out.X},
		{s.Y, &out.Y},
		{s.Z, &out.Z},
	} {
		if *axis.out, err = Median(axis.in, window); err != nil {
			return nil, err
		}
	}

	out.Total = make([]float64, len(out.X))
	for i := range out.Total {
		out.Total[i] = math.Sqrt(out.X[i]*out.X[i] + out.Y[i]*out.Y[i] + out.Z[i]*out.Z[i])
	}
	return &out, nil
}

// WriteSeries writes s as a sample CSV file with a header line
func WriteSeries(out io.Writer, s *sample.Series) error {
	w := bufio.NewWriter(out)
	if _, err := w.WriteString(sample.Header + "\n"); err != nil {
		return err
	}
	for i := 0; i < s.Len(); i++ {
		if _, err := w.WriteString(sample.FormatLine(s.Epoch[i], s.X[i], s.Y[i], s.Z[i]) + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
