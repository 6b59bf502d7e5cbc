package filter

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/roman-kulish/accel-crunch/internal/sample"
)

const (
	// DefaultWearThreshold is the per-second peak total acceleration, in g,
	// that counts as movement
	DefaultWearThreshold = 1.0

	// DefaultWearWindow is the span of seconds centred on a movement that is
	// marked as worn
	DefaultWearWindow = 10 * time.Minute
)

// WearHeader names the columns written by WriteWearCSV
const WearHeader = "epoch,second,peak,active,in_use"

// Second is the wear state of one whole second of data
type Second struct {
	Epoch  float64 // Start of the second
	Peak   float64 // Highest total acceleration, 0 for a second without samples
	Active bool    // Peak reached the threshold
	InUse  bool    // Within half a window of an active second
}

// PeakPerSecond returns the highest total acceleration of every whole second
// from the first sample to the last. Samples before the first second are
// ignored.
func PeakPerSecond(s *sample.Series) []Second {
	if s.Len() == 0 {
		return nil
	}

	first := math.Floor(s.Epoch[0])
	n := 0
	for _, e := range s.Epoch {
		n = max(n, int(math.Floor(e)-first)+1)
	}

	seconds := make([]Second, n)
	for i := range seconds {
		seconds[i].Epoch = first + float64(i)
	}
	for i, e := range s.Epoch {
		idx := int(math.Floor(e) - first)
		if idx < 0 {
			continue
		}
		seconds[idx].Peak = max(seconds[idx].Peak, s.Total[i])
	}
	return seconds
}

// MarkWear flags every second whose peak reaches threshold as active and every
// second less than half of window away from an active one as in use. A gap in
// movement longer than window leaves seconds not in use.
func MarkWear(seconds []Second, threshold float64, window time.Duration) {
	half := max(int(window/2/time.Second), 1)

	// Difference array over the in use spans
	depth := make([]int, len(seconds)+1)
	for i := range seconds {
		s := &seconds[i]
		s.Active = s.Peak >= threshold
		if !s.Active {
			continue
		}
		depth[max(i-half+1, 0)]++
		depth[min(i+half, len(seconds))]--
	}

	open := 0
	for i := range seconds {
		open += depth[i]
		seconds[i].InUse = open > 0
	}
}

// NotWorn returns the spans of seconds not in use. A span ends at the start of
// the next second in use, or at the end of the last second.
func NotWorn(seconds []Second) []Period {
	var (
		periods []Period
		off     bool
		start   float64
	)
	for i := range seconds {
		s := &seconds[i]
		if !s.InUse {
			if !off {
				off = true
				start = s.Epoch
			}
			continue
		}
		if off {
			periods = append(periods, Period{Start: start, End: s.Epoch})
			off = false
		}
	}
	if off {
		periods = append(periods, Period{Start: start, End: seconds[len(seconds)-1].Epoch + 1})
	}
	return periods
}

// WriteWearCSV writes one line per second: the epoch, the second's offset from
// the first, the peak and the active and in use flags as 0 or 1.
func WriteWearCSV(out io.Writer, seconds []Second) error {
	w := bufio.NewWriter(out)
	if _, err := w.WriteString(WearHeader + "\n"); err != nil {
		return err
	}

	b := make([]byte, 0, 64)
	for i := range seconds {
		s := &seconds[i]
		b = b[:0]
		b = strconv.AppendInt(b, int64(s.Epoch), 10)
		b = append(b, ',')
		b = strconv.AppendInt(b, int64(i), 10)
		b = append(b, ',')
		b = strconv.AppendFloat(b, s.Peak, 'f', 6, 64)
		b = append(b, ',', flag(s.Active), ',', flag(s.InUse), '\n')

		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return w.Flush()
}

func flag(v bool) byte {
	if v {
		return '1'
	}
	return '0'
}
