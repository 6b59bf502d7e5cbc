package cwa

import (
	"math"
	"time"
)

// unpackTimestamp decodes the device's packed date-time, bit pattern
// YYYYYYMM MMDDDDDh hhhhmmmm mmssssss, year counted from 2000. Device clocks
// carry no zone; values are taken as UTC. The second result is false when the
// fields do not form a real date.
func unpackTimestamp(v uint32) (time.Time, bool) {
	year := int((v>>26)&0x3f) + 2000
	month := time.Month((v >> 22) & 0x0f)
	day := int((v >> 17) & 0x1f)
	hour := int((v >> 12) & 0x1f)
	minute := int((v >> 6) & 0x3f)
	sec := int(v & 0x3f)

	if hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// DecoderState carries the clock reconstruction between consecutive AX blocks.
// A zero DecoderState is ready for the first block.
type DecoderState struct {
	started       bool
	lastSequence  uint32
	lastOffset    float64 // Timestamp offset of the previous block minus its sample count
	lastTimestamp float64 // Epoch seconds of the previous block
}

// Reset forgets the previous block, the next one bootstraps from the nominal rate.
func (s *DecoderState) Reset() {
	*s = DecoderState{}
}

// Advance folds one block into the state and returns the epoch of the block's
// first sample (time0) and the effective sample rate between this block and the
// last. Sample i of the block is at time0 + i/localFreq.
//
// The effective rate comes from the drift between the sample counter and the
// block clock. When the sequence breaks, or on the first block, the previous
// block is synthesised one second and nominal samples in the past.
func (s *DecoderState) Advance(sequence uint32, timestamp float64, offset int, nominal float64, count int) (time0, localFreq float64) {
	off := float64(offset)
	if !s.started || (s.lastSequence+1)&0xffff != sequence&0xffff {
		s.lastOffset = off - nominal
		s.lastTimestamp = timestamp - 1
	}

	localFreq = nominal
	if dt := timestamp - s.lastTimestamp; dt != 0 {
		if f := (off - s.lastOffset) / dt; f > 0 && !math.IsInf(f, 0) {
			localFreq = f
		}
	}
	time0 = timestamp - off/localFreq

	s.started = true
	s.lastSequence = sequence
	s.lastOffset = off - float64(count)
	s.lastTimestamp = timestamp

	return time0, localFreq
}
