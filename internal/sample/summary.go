package sample

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Thresholds are the |acceleration| levels, in g, counted per axis by Summarise.
var Thresholds = []float64{1, 6, 7, 8}

// ChannelSummary describes the distribution of one channel of a series
type ChannelSummary struct {
	Name       string
	N          int
	Min, Max   float64
	Mean       float64
	StdDev     float64 // Population standard deviation
	PeakToPeak float64
	Above      []int // Sample counts with |v| >= Thresholds[i]
}

// Summary holds descriptive statistics for x, y, z and total acceleration
type Summary struct {
	Channels [4]ChannelSummary
}

// Summarise computes descriptive statistics for every channel of s.
func Summarise(s *Series) Summary {
	var sum Summary
	for i, ch := range [4]struct {
		name string
		vals []float64
	}{
		{"x", s.X},
		{"y", s.Y},
		{"z", s.Z},
		{"total", s.Total},
	} {
		sum.Channels[i] = summariseChannel(ch.name, ch.vals)
	}
	return sum
}

func summariseChannel(name string, vals []float64) ChannelSummary {
	cs := ChannelSummary{
		Name:  name,
		N:     len(vals),
		Above: make([]int, len(Thresholds)),
	}
	if len(vals) == 0 {
		nan := math.NaN()
		cs.Min, cs.Max, cs.Mean, cs.StdDev, cs.PeakToPeak = nan, nan, nan, nan, nan
		return cs
	}

	cs.Min = floats.Min(vals)
	cs.Max = floats.Max(vals)
	cs.PeakToPeak = cs.Max - cs.Min

	var variance float64
	cs.Mean, variance = stat.PopMeanVariance(vals, nil)
	cs.StdDev = math.Sqrt(variance)

	for _, v := range vals {
		for i, limit := range Thresholds {
			if math.Abs(v) >= limit {
				cs.Above[i]++
			}
		}
	}
	return cs
}
