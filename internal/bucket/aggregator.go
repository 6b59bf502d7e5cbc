package bucket

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/accel-crunch/internal/sample"
)

const (
	// Second and Minute are the standard bucket widths
	Second = time.Second
	Minute = time.Minute
)

var (
	// ErrEmptyInput is returned when there is no sample to aggregate
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidWidth is returned for a bucket width that is not a positive whole number of milliseconds
	ErrInvalidWidth = errors.New("invalid bucket width")
)

// Aggregator bins a time ordered sample series into contiguous fixed-width buckets
type Aggregator struct {
	width    time.Duration
	widthMs  int64
	baseline bool
	logger   *slog.Logger
}

// WithBaseline subtracts each bucket's own mean from its samples before the
// statistics are computed
func WithBaseline(baseline bool) func(*Aggregator) {
	return func(a *Aggregator) {
		a.baseline = baseline
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) func(*Aggregator) {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func NewAggregator(width time.Duration, options ...func(*Aggregator)) (*Aggregator, error) {
	if width < time.Millisecond || width%time.Millisecond != 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWidth, width)
	}

	a := Aggregator{
		width:   width,
		widthMs: width.Milliseconds(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&a)
	}
	return &a, nil
}

// Width returns the bucket width
func (a *Aggregator) Width() time.Duration {
	return a.width
}

// Aggregate returns one bucket for every width-sized interval between the
// first and the last sample, empty intervals included. The series must be
// sorted by epoch; samples falling before the first bucket are dropped.
//
// Construction takes three passes over the series in the same order: count
// samples per bucket, copy them into per-bucket slices of one backing array
// per channel, then reduce each slice to statistics.
func (a *Aggregator) Aggregate(s *sample.Series) ([]Bucket, error) {
	n := s.Len()
	if n == 0 {
		return nil, ErrEmptyInput
	}

	first := floorDiv(toMillis(s.Epoch[0]), a.widthMs)
	index := func(i int) int {
		return int(floorDiv(toMillis(s.Epoch[i]), a.widthMs) - first)
	}

	// Pass 1: size every bucket
	var counts []int
	dropped := 0
	for i := 0; i < n; i++ {
		idx := index(i)
		if idx < 0 {
			dropped++
			continue
		}
		if idx >= len(counts) {
			counts = append(counts, make([]int, idx+1-len(counts))...)
		}
		counts[idx]++
	}
	if dropped > 0 {
		a.logger.Warn("samples before the first bucket dropped, input is not sorted",
			slog.Int("dropped", dropped))
	}

	// Pass 2: fill per-bucket slices carved out of one array per channel
	starts := make([]int, len(counts)+1)
	for i, c := range counts {
		starts[i+1] = starts[i] + c
	}
	total := starts[len(counts)]

	var values [numChannels][]float64
	for c := range values {
		values[c] = make([]float64, total)
	}
	next := make([]int, len(counts))
	copy(next, starts)

	sources := [numChannels][]float64{s.X, s.Y, s.Z, s.Total}
	for i := 0; i < n; i++ {
		idx := index(i)
		if idx < 0 {
			continue
		}
		pos := next[idx]
		for c := range values {
			values[c][pos] = sources[c][i]
		}
		next[idx]++
	}

	// Pass 3: reduce
	buckets := make([]Bucket, len(counts))
	scratch := make([]float64, maxInt(counts))
	empty := 0
	for i := range buckets {
		b := &buckets[i]
		b.Index = i
		b.Epoch = float64((first+int64(i))*a.widthMs) / 1000
		b.Count = counts[i]
		b.Baselined = a.baseline
		if b.Count == 0 {
			empty++
		}

		for c := range values {
			b.Stats[c] = computeStats(values[c][starts[i]:starts[i+1]], a.baseline, scratch)
		}
	}

	a.logger.Info("aggregated samples",
		slog.String("width", a.width.String()),
		slog.String("samples", humanize.Comma(int64(total))),
		slog.Int("buckets", len(buckets)),
		slog.Int("empty", empty),
		slog.Bool("baselined", a.baseline))

	return buckets, nil
}

const millisSlack = 1e-3

// toMillis floors epoch to whole milliseconds. The microsecond slack absorbs
// the representation error of millisecond timestamps, e.g. 10.1*1000.
func toMillis(epoch float64) int64 {
	return int64(math.Floor(epoch*1000 + millisSlack))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func maxInt(vals []int) int {
	m := 0
	for _, v := range vals {
		m = max(m, v)
	}
	return m
}
