package app

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	lowerPercentile = 0.005
	upperPercentile = 0.995

	boundsMargin = 0.1
)

// ValueBounds is the range of the value scale
type ValueBounds struct {
	Min  float64
	Max  float64
	Mean float64
}

// NewValueBounds returns the 0.5th to 99.5th percentile range of the finite
// values, widened by a margin so the line stays off the plot edges. A
// constant series gets a range of one unit around its value.
func NewValueBounds(values []float64) ValueBounds {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return ValueBounds{Min: -1, Max: 1}
	}
	sort.Float64s(finite)

	b := ValueBounds{
		Min:  stat.Quantile(lowerPercentile, stat.Empirical, finite, nil),
		Max:  stat.Quantile(upperPercentile, stat.Empirical, finite, nil),
		Mean: stat.Mean(finite, nil),
	}

	span := b.Max - b.Min
	if span == 0 {
		b.Min -= 0.5
		b.Max += 0.5
		return b
	}
	b.Min -= span * boundsMargin
	b.Max += span * boundsMargin
	return b
}

// Override replaces the computed limits with the manual ones that are set
func (b ValueBounds) Override(minValue, maxValue *float64) ValueBounds {
	if minValue != nil {
		b.Min = *minValue
	}
	if maxValue != nil {
		b.Max = *maxValue
	}
	if b.Max <= b.Min {
		if minValue != nil {
			b.Max = b.Min + 1
		} else {
			b.Min = b.Max - 1
		}
	}
	return b
}
