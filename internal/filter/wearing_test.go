package filter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/accel-crunch/internal/sample"
)

func TestPeakPerSecond(t *testing.T) {
	s := &sample.Series{
		Epoch: []float64{100.2, 100.7, 102.5, 99.9},
		Total: []float64{0.5, 1.2, 0.9, 7},
	}

	got := PeakPerSecond(s)
	assert.Equal(t, []Second{
		{Epoch: 100, Peak: 1.2},
		{Epoch: 101, Peak: 0},
		{Epoch: 102, Peak: 0.9},
	}, got)

	assert.Nil(t, PeakPerSecond(&sample.Series{}))
}

func wearSeconds(n int, peaks map[int]float64) []Second {
	seconds := make([]Second, n)
	for i := range seconds {
		seconds[i] = Second{Epoch: 1000 + float64(i), Peak: peaks[i]}
	}
	return seconds
}

func TestMarkWear(t *testing.T) {
	seconds := wearSeconds(40, map[int]float64{10: 2, 25: DefaultWearThreshold, 33: 0.99})
	MarkWear(seconds, DefaultWearThreshold, 10*time.Second)

	var active, inUse []int
	for i, s := range seconds {
		if s.Active {
			active = append(active, i)
		}
		if s.InUse {
			inUse = append(inUse, i)
		}
	}
	assert.Equal(t, []int{10, 25}, active)
	assert.Equal(t, []int{6, 7, 8, 9, 10, 11, 12, 13, 14, 21, 22, 23, 24, 25, 26, 27, 28, 29}, inUse)

	assert.Equal(t, []Period{
		{Start: 1000, End: 1006},
		{Start: 1015, End: 1021},
		{Start: 1030, End: 1040},
	}, NotWorn(seconds))
}

func TestMarkWear_DefaultWindow(t *testing.T) {
	seconds := wearSeconds(2000, map[int]float64{600: 1.5, 1199: 1.5})
	MarkWear(seconds, DefaultWearThreshold, DefaultWearWindow)

	// Movements less than ten minutes apart keep the sleeve worn in between
	got := NotWorn(seconds)
	require.Len(t, got, 2)
	assert.Equal(t, Period{Start: 1000, End: 1000 + 301}, got[0])
	assert.Equal(t, Period{Start: 1000 + 1499, End: 1000 + 2000}, got[1])
	assert.Equal(t, 501*time.Second, got[1].Duration())

	seconds = wearSeconds(2000, map[int]float64{600: 1.5, 1200: 1.5})
	MarkWear(seconds, DefaultWearThreshold, DefaultWearWindow)
	assert.Equal(t, Period{Start: 1000 + 900, End: 1000 + 901}, NotWorn(seconds)[1])
}

func TestNotWorn_AllWorn(t *testing.T) {
	seconds := wearSeconds(5, map[int]float64{2: 3})
	MarkWear(seconds, DefaultWearThreshold, time.Minute)
	assert.Empty(t, NotWorn(seconds))
	assert.Empty(t, NotWorn(nil))
}

func TestWriteWearCSV(t *testing.T) {
	seconds := wearSeconds(2, map[int]float64{1: 2.5})
	MarkWear(seconds, DefaultWearThreshold, time.Second)

	var out bytes.Buffer
	require.NoError(t, WriteWearCSV(&out, seconds))
	assert.Equal(t, WearHeader+"\n1000,0,0.000000,0,0\n1001,1,2.500000,1,1\n", out.String())
}
