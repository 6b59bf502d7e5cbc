package filter

import (
	"errors"
	"fmt"
	"math"
)

// Order is the order of the high-pass filter used by Highpass and Apply
const Order = 4

var (
	// ErrInvalidCutoff is returned for a cutoff outside (0, sampleRate/2)
	ErrInvalidCutoff = errors.New("invalid cutoff frequency")

	// ErrInvalidOrder is returned for an odd or non-positive filter order
	ErrInvalidOrder = errors.New("invalid filter order")
)

// biquad is one second-order section in transposed direct form II
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	z1, z2 float64
}

func (f *biquad) process(in float64) float64 {
	out := f.b0*in + f.z1
	f.z1 = f.b1*in - f.a1*out + f.z2
	f.z2 = f.b2*in - f.a2*out
	return out
}

// Butterworth is a cascade of second-order sections. The state starts at
// zero, so the first outputs include the filter's step response.
type Butterworth struct {
	sections []biquad
}

// NewButterworthHighpass designs a high-pass Butterworth filter with the
// bilinear transform. The cutoff is pre-warped so the -3 dB point lands on
// cutoff exactly.
func NewButterworthHighpass(order int, sampleRate, cutoff float64) (*Butterworth, error) {
	if order <= 0 || order%2 != 0 {
		return nil, fmt.Errorf("%w: %d, must be even", ErrInvalidOrder, order)
	}
	if nyquist := sampleRate / 2; !(cutoff > 0 && cutoff < nyquist) {
		return nil, fmt.Errorf("%w: %g Hz, must be within (0, %g) Hz", ErrInvalidCutoff, cutoff, nyquist)
	}

	k := math.Tan(math.Pi * cutoff / sampleRate)
	k2 := k * k

	sections := make([]biquad, order/2)
	for i := range sections {
		// Pole pair i of the analogue prototype
		theta := math.Pi * float64(2*i+1) / float64(2*order)
		q := 1 / (2 * math.Sin(theta))

		norm := 1 / (1 + k/q + k2)
		sections[i] = biquad{
			b0: norm,
			b1: -2 * norm,
			b2: norm,
			a1: 2 * (k2 - 1) * norm,
			a2: (1 - k/q + k2) * norm,
		}
	}
	return &Butterworth{sections: sections}, nil
}

// Process filters one value through every section
func (f *Butterworth) Process(in float64) float64 {
	out := in
	for i := range f.sections {
		out = f.sections[i].process(out)
	}
	return out
}

// Reset clears the filter state
func (f *Butterworth) Reset() {
	for i := range f.sections {
		f.sections[i].z1, f.sections[i].z2 = 0, 0
	}
}

// Highpass returns series filtered with a 4th order Butterworth high-pass.
// A cutoff of exactly zero returns an unchanged copy.
func Highpass(series []float64, cutoff, sampleRate float64) ([]float64, error) {
	out := make([]float64, len(series))
	if cutoff == 0 {
		copy(out, series)
		return out, nil
	}

	f, err := NewButterworthHighpass(Order, sampleRate, cutoff)
	if err != nil {
		return nil, err
	}
	for i, v := range series {
		out[i] = f.Process(v)
	}
	return out, nil
}
