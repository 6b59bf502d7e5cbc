package cwa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecoderState_LocalFrequency(t *testing.T) {
	s := DecoderState{
		started:       true,
		lastSequence:  4,
		lastOffset:    0,
		lastTimestamp: 1000,
	}

	time0, freq := s.Advance(5, 1001, 80, 100, 80)

	assert.InDelta(t, 80.0, freq, 1e-9)
	assert.InDelta(t, 1000.0, time0, 1e-9)
	assert.Equal(t, uint32(5), s.lastSequence)
	assert.Equal(t, 0.0, s.lastOffset)
	assert.Equal(t, 1001.0, s.lastTimestamp)
}

func TestDecoderState_ConsecutiveBlocks(t *testing.T) {
	var s DecoderState
	const start = 1_600_000_000.0

	time0, freq := s.Advance(7, start, 0, 80, 80)
	assert.Equal(t, 80.0, freq, "first block bootstraps from the nominal rate")
	assert.Equal(t, start, time0)
	lastOfFirst := time0 + 79/freq

	time0, freq = s.Advance(8, start+1, 0, 80, 80)
	assert.InDelta(t, 80.0, freq, 1e-9)
	assert.InDelta(t, start+1, time0, 1e-6)

	prev := lastOfFirst
	for i := 0; i < 80; i++ {
		ts := time0 + float64(i)/freq
		if ts <= prev {
			t.Fatalf("Expected increasing timestamps, sample %d at %f after %f", i, ts, prev)
		}
		prev = ts
	}

	// Two samples late on the device clock
	time0, freq = s.Advance(9, start+2, 2, 80, 80)
	assert.InDelta(t, 82.0, freq, 1e-9)
	assert.InDelta(t, start+2-2.0/82, time0, 1e-6)
}

func TestDecoderState_SequenceGapBootstraps(t *testing.T) {
	var s DecoderState
	s.Advance(7, 5000, 0, 100, 100)

	// Would be 120 Hz if the sequence were contiguous
	_, freq := s.Advance(9, 5001, 20, 100, 100)
	assert.Equal(t, 100.0, freq)

	s.Reset()
	_, freq = s.Advance(10, 6000, 0, 50, 50)
	assert.Equal(t, 50.0, freq)
}

func TestDecoderState_SequenceWraps(t *testing.T) {
	s := DecoderState{started: true, lastSequence: 0xffff, lastOffset: -100, lastTimestamp: 10}

	_, freq := s.Advance(0x10000, 11, 10, 100, 100)
	assert.InDelta(t, 110.0, freq, 1e-9)
}

func TestDecoderState_DegenerateDrift(t *testing.T) {
	s := DecoderState{started: true, lastSequence: 1, lastOffset: 0, lastTimestamp: 10}

	// Same timestamp as the previous block
	time0, freq := s.Advance(2, 10, 50, 100, 100)
	assert.Equal(t, 100.0, freq)
	assert.Equal(t, 9.5, time0)

	// Counter did not move
	s = DecoderState{started: true, lastSequence: 1, lastOffset: 50, lastTimestamp: 10}
	_, freq = s.Advance(2, 11, 50, 100, 100)
	assert.Equal(t, 100.0, freq)
}
