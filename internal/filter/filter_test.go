package filter

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
)

func rms(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(vals)))
}

func TestHighpass_ZeroCutoffPassesThrough(t *testing.T) {
	in := []float64{1, -2.5, math.Pi, 0, 1e-9, 42}

	out, err := Highpass(in, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out[0] = 100
	assert.Equal(t, 1.0, in[0], "output must not alias the input")
}

func TestHighpass_RemovesDC(t *testing.T) {
	in := make([]float64, 3000)
	for i := range in {
		in[i] = 0.98
	}

	out, err := Highpass(in, 0.1, 10)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	assert.Greater(t, out[0], 0.5, "zero initial state lets the step through")
	for _, v := range out[len(out)-100:] {
		assert.InDelta(t, 0.0, v, 1e-6)
	}
}

func TestHighpass_NyquistUnity(t *testing.T) {
	in := make([]float64, 2000)
	for i := range in {
		in[i] = 1
		if i%2 == 1 {
			in[i] = -1
		}
	}

	out, err := Highpass(in, 0.5, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rms(out[1000:]), 1e-6)
}

func TestHighpass_CutoffAttenuation(t *testing.T) {
	const (
		fs = 100.0
		fc = 5.0
	)

	testCases := []struct {
		name string
		freq float64
		gain float64
		tol  float64
	}{
		{"at cutoff", fc, 1 / math.Sqrt2, 1e-3},
		{"decade below", fc / 10, 1e-4, 1e-4},
		{"well above", 25, 1, 1e-2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := make([]float64, 20000)
			for i := range in {
				in[i] = math.Sin(2 * math.Pi * tc.freq * float64(i) / fs)
			}

			out, err := Highpass(in, fc, fs)
			require.NoError(t, err)

			// Last 10000 samples hold a whole number of periods for every frequency above
			gain := rms(out[10000:]) / rms(in[10000:])
			assert.InDelta(t, tc.gain, gain, tc.tol)
		})
	}
}

func TestNewButterworthHighpass_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		order  int
		rate   float64
		cutoff float64
		want   error
	}{
		{"negative cutoff", 4, 10, -1, ErrInvalidCutoff},
		{"zero cutoff", 4, 10, 0, ErrInvalidCutoff},
		{"at nyquist", 4, 10, 5, ErrInvalidCutoff},
		{"above nyquist", 4, 10, 7, ErrInvalidCutoff},
		{"NaN cutoff", 4, 10, math.NaN(), ErrInvalidCutoff},
		{"odd order", 3, 10, 1, ErrInvalidOrder},
		{"zero order", 0, 10, 1, ErrInvalidOrder},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewButterworthHighpass(tc.order, tc.rate, tc.cutoff)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Highpass([]float64{1}, 50, 10)
	assert.ErrorIs(t, err, ErrInvalidCutoff)
}

func TestButterworth_Reset(t *testing.T) {
	f, err := NewButterworthHighpass(Order, 10, 1)
	require.NoError(t, err)

	first := f.Process(1)
	f.Process(5)
	f.Reset()
	assert.Equal(t, first, f.Process(1))
}

func testBuckets(means ...[3]float64) []bucket.Bucket {
	buckets := make([]bucket.Bucket, len(means))
	for i, m := range means {
		b := &buckets[i]
		b.Index = i
		b.Epoch = 1_574_504_130 + float64(i)/10
		if math.IsNaN(m[0]) {
			for c := range b.Stats {
				b.Stats[c].Mean = math.NaN()
			}
			continue
		}
		b.Count = 10
		b.Stats[bucket.X].Mean = m[0]
		b.Stats[bucket.Y].Mean = m[1]
		b.Stats[bucket.Z].Mean = m[2]
		b.Stats[bucket.Total].Mean = math.Sqrt(m[0]*m[0] + m[1]*m[1] + m[2]*m[2])
	}
	return buckets
}

func TestApply_Passthrough(t *testing.T) {
	nan := math.NaN()
	buckets := testBuckets([3]float64{3, 4, 0}, [3]float64{nan, nan, nan}, [3]float64{0, 0, -2})

	rows, err := Apply(buckets, 0, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, [4]float64{3, 4, 0, 5}, rows[0].Filtered)
	assert.Equal(t, rows[0].Mean, rows[0].Filtered)

	assert.True(t, rows[1].Empty())
	for _, v := range rows[1].Filtered {
		assert.True(t, math.IsNaN(v))
	}
	assert.True(t, math.IsNaN(rows[1].Mean[0]))

	assert.Equal(t, [4]float64{0, 0, -2, 2}, rows[2].Filtered)
	assert.Equal(t, buckets[2].Epoch, rows[2].Epoch)
}

func TestApply_EmptyBucketsKeepFilterFinite(t *testing.T) {
	nan := math.NaN()
	means := make([][3]float64, 400)
	for i := range means {
		means[i] = [3]float64{0.1, -0.2, 1}
		if i%7 == 3 {
			means[i] = [3]float64{nan, nan, nan}
		}
	}

	rows, err := Apply(testBuckets(means...), 0.1, 100*time.Millisecond)
	require.NoError(t, err)

	for i, r := range rows {
		if r.Empty() {
			continue
		}
		for c, v := range r.Filtered {
			require.False(t, math.IsNaN(v), "row %d column %d", i, c)
		}
	}
	assert.InDelta(t, 0.0, rows[len(rows)-1].FilteredTotal(), 1e-3)

	_, err = Apply(testBuckets(means...), 6, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = Apply(testBuckets(means...), 0.1, 0)
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	nan := math.NaN()
	rows, err := Apply(testBuckets([3]float64{0.5, -0.25, 1}, [3]float64{nan, nan, nan}), 0, time.Second)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, rows, false))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t, "2019-11-23 10:15:30.000,1574504130.000,0.500000,-0.250000,1.000000,1.145644,"+
		"0.500000,-0.250000,1.000000,1.145644", lines[1])
	assert.Equal(t, "2019-11-23 10:15:30.100,1574504130.100,NaN,NaN,NaN,NaN,NaN,NaN,NaN,NaN", lines[2])

	out.Reset()
	require.NoError(t, WriteCSV(&out, rows, true))
	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
}

func TestIdlePeriods(t *testing.T) {
	row := func(epoch, ftot float64, count int) Row {
		return Row{Epoch: epoch, Count: count, Filtered: [4]float64{0, 0, 0, ftot}}
	}

	rows := []Row{
		row(0, 0.5, 1),
		row(10, 0.01, 1), // Idle 10..100, too short
		row(50, 0.02, 1),
		row(100, 0.3, 1),
		row(200, 0.05, 1), // Idle 200..2000
		row(900, math.NaN(), 0),
		row(1500, 0.05, 1),
		row(2000, 0.2, 1),
		row(3000, 0.0, 1), // Idle to the end of the data
		row(4500, 0.0, 1),
	}

	got := IdlePeriods(rows, DefaultIdleThreshold, DefaultIdleDuration)
	assert.Equal(t, []Period{{Start: 200, End: 2000}, {Start: 3000, End: 4500}}, got)
	assert.Equal(t, 30*time.Minute, got[0].Duration())
	assert.Equal(t, "200.000-2000.000 (30m0s)", got[0].String())

	assert.Equal(t, []Period{{Start: 3000, End: 4500}}, IdlePeriods(rows, 0.001, DefaultIdleDuration))
	assert.Len(t, IdlePeriods(rows, DefaultIdleThreshold, time.Minute), 3)
}
