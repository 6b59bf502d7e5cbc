package bucket

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Channel selects one of the statistics series of a bucket
type Channel int

const (
	X Channel = iota
	Y
	Z
	Total

	numChannels = 4
)

// Channels lists every channel in CSV column order
var Channels = [numChannels]Channel{X, Y, Z, Total}

var channelNames = [numChannels]string{"x", "y", "z", "tot"}

func (c Channel) String() string {
	if c < 0 || int(c) >= numChannels {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel returns the channel called name ("x", "y", "z" or "tot")
func ParseChannel(name string) (Channel, error) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	if name == "total" {
		return Total, nil
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Stats are the statistics of one channel over one bucket. All values are NaN
// for a bucket without samples.
type Stats struct {
	Mean       float64
	PeakToPeak float64
	RMS        float64
	StdDev     float64 // Population standard deviation
}

func emptyStats() Stats {
	nan := math.NaN()
	return Stats{Mean: nan, PeakToPeak: nan, RMS: nan, StdDev: nan}
}

// Bucket aggregates the samples falling into one fixed-width time interval
type Bucket struct {
	Index     int     // Offset from the first bucket
	Epoch     float64 // Start edge in epoch seconds
	Count     int     // Number of samples, zero for a gap in the data
	Baselined bool
	Stats     [numChannels]Stats
}

// Empty reports a bucket without samples, its statistics are NaN
func (b *Bucket) Empty() bool {
	return b.Count == 0
}

// Channel returns the statistics of channel c
func (b *Bucket) Channel(c Channel) Stats {
	return b.Stats[c]
}

// computeStats reduces vals to mean, peak-to-peak, RMS and population
// standard deviation. With baseline set the values are first centred on
// their mean, scratch holds the centred copy so vals stays untouched.
func computeStats(vals []float64, baseline bool, scratch []float64) Stats {
	n := len(vals)
	if n == 0 {
		return emptyStats()
	}

	if baseline {
		centred := scratch[:n]
		copy(centred, vals)
		floats.AddConst(-floats.Sum(vals)/float64(n), centred)
		vals = centred
	}

	mean, variance := stat.PopMeanVariance(vals, nil)
	return Stats{
		Mean:       mean,
		PeakToPeak: floats.Max(vals) - floats.Min(vals),
		RMS:        math.Sqrt(floats.Dot(vals, vals) / float64(n)),
		StdDev:     math.Sqrt(variance),
	}
}
