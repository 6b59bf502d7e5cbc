package filter

import (
	"fmt"
	"time"
)

const (
	// DefaultIdleThreshold is the filtered total acceleration, in g, below which the wearer is idle
	DefaultIdleThreshold = 0.1

	// DefaultIdleDuration is the shortest idle span reported
	DefaultIdleDuration = 20 * time.Minute
)

// Period is a span of consecutive idle rows
type Period struct {
	Start float64 // Epoch of the first idle row
	End   float64 // Epoch of the row ending the span, or of the last idle row at the end of the data
}

// Duration returns the length of the period
func (p Period) Duration() time.Duration {
	return time.Duration((p.End - p.Start) * float64(time.Second))
}

func (p Period) String() string {
	return fmt.Sprintf("%.3f-%.3f (%s)", p.Start, p.End, p.Duration().Round(time.Second))
}

// IdlePeriods returns the spans whose filtered total stays below threshold for
// longer than minDuration. Empty rows neither start nor end a span.
func IdlePeriods(rows []Row, threshold float64, minDuration time.Duration) []Period {
	var (
		periods []Period
		idle    bool
		start   float64
		last    float64
	)

	emit := func(end float64) {
		p := Period{Start: start, End: end}
		if p.Duration() > minDuration {
			periods = append(periods, p)
		}
	}

	for i := range rows {
		r := &rows[i]
		if r.Empty() {
			continue
		}

		if r.FilteredTotal() < threshold {
			if !idle {
				idle = true
				start = r.Epoch
			}
			last = r.Epoch
			continue
		}

		if idle {
			emit(r.Epoch)
			idle = false
		}
	}
	if idle {
		emit(last)
	}
	return periods
}
