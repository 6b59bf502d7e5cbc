package cwa

import (
	"encoding/binary"
	"time"
)

const (
	// BlockSize is the on-disk size of an AX block, tag included
	BlockSize = 512

	packetLength = 508
	payloadSize  = 480
	payloadStart = 30
	numAxes      = 3

	scaleMask = 0xfc00
)

// SampleFormat is the packing of one three-axis sample in a block payload
type SampleFormat int

const (
	// Packed4 stores three 10-bit values and a shared 2-bit exponent in one 32-bit word
	Packed4 SampleFormat = iota

	// Raw6 stores three signed 16-bit values
	Raw6
)

// BytesPerSample returns the payload bytes used by one sample
func (f SampleFormat) BytesPerSample() int {
	if f == Raw6 {
		return 6
	}
	return 4
}

func (f SampleFormat) String() string {
	if f == Raw6 {
		return "raw6"
	}
	return "packed4"
}

// Block is one decoded AX data block
type Block struct {
	PacketLength    uint16
	DeviceID        uint16 // Top bit flags a fractional timestamp in the low 15 bits
	SessionID       uint32
	SequenceID      uint32
	Time            time.Time // Zero when the packed timestamp is not a real date
	Light           uint16
	Temperature     uint16
	Events          uint8
	Battery         uint8
	RateCode        uint8
	NumAxesBPS      uint8
	TimestampOffset int16
	SampleCount     uint16
	Checksum        uint16

	format  SampleFormat
	payload []byte
}

// parseBlock decodes the fixed header of a 512-byte block. The slice is
// retained for sample access and must not be reused while the block is live.
func parseBlock(buf []byte) *Block {
	le := binary.LittleEndian

	b := Block{
		PacketLength:    le.Uint16(buf[2:]),
		DeviceID:        le.Uint16(buf[4:]),
		SessionID:       le.Uint32(buf[6:]),
		SequenceID:      le.Uint32(buf[10:]),
		Light:           le.Uint16(buf[18:]),
		Temperature:     le.Uint16(buf[20:]),
		Events:          buf[22],
		Battery:         buf[23],
		RateCode:        buf[24],
		NumAxesBPS:      buf[25],
		TimestampOffset: int16(le.Uint16(buf[26:])),
		SampleCount:     le.Uint16(buf[28:]),
		Checksum:        le.Uint16(buf[BlockSize-2:]),
		payload:         buf[payloadStart : payloadStart+payloadSize],
	}
	if t, ok := unpackTimestamp(le.Uint32(buf[14:])); ok {
		b.Time = t
	}
	return &b
}

// checksum returns the 16-bit sum of the little-endian words in buf. A valid
// block, checksum field included, sums to zero.
func checksum(buf []byte) uint16 {
	var sum uint16
	for i := 0; i+1 < len(buf); i += 2 {
		sum += binary.LittleEndian.Uint16(buf[i:])
	}
	return sum
}

// Axes returns the axis count from the top nibble of NumAxesBPS
func (b *Block) Axes() int {
	return int(b.NumAxesBPS>>4) & 0x0f
}

// Format returns the sample format resolved by validate
func (b *Block) Format() SampleFormat {
	return b.format
}

// Frequency returns the nominal sample rate in Hz
func (b *Block) Frequency() float64 {
	freq := 3200 / float64(uint(1)<<(15-(b.RateCode&0x0f)))
	if freq <= 0 {
		freq = 1
	}
	return freq
}

// HasScale reports nonzero scale bits in the light field, which are not supported
func (b *Block) HasScale() bool {
	return b.Light&scaleMask != 0
}

// validate runs the block checks in order. raw is the whole 512-byte block.
// sessionID is only compared when haveSession is set.
func (b *Block) validate(raw []byte, sessionID uint32, haveSession bool) error {
	if b.PacketLength != packetLength {
		return newRejectError(RejectPacketLength, b.SequenceID, "packet length %d, expected %d", b.PacketLength, packetLength)
	}
	if b.Time.IsZero() {
		return newRejectError(RejectTimestamp, b.SequenceID, "undefined block timestamp")
	}
	if sum := checksum(raw); sum != 0 {
		return newRejectError(RejectChecksum, b.SequenceID, "checksum residue 0x%04x", sum)
	}
	if haveSession && b.SessionID != sessionID {
		return newRejectError(RejectSession, b.SequenceID, "session %d, expected %d", b.SessionID, sessionID)
	}
	if axes := b.Axes(); axes != numAxes {
		return newRejectError(RejectAxes, b.SequenceID, "%d axes, only %d supported", axes, numAxes)
	}

	switch bps := b.NumAxesBPS & 0x0f; bps {
	case 0:
		b.format = Packed4
	case 2:
		b.format = Raw6
	default:
		return newRejectError(RejectFormat, b.SequenceID, "unsupported bytes-per-sample code %d", bps)
	}

	if n := int(b.SampleCount) * b.format.BytesPerSample(); n > payloadSize {
		return newRejectError(RejectSampleCount, b.SequenceID, "%d samples need %d bytes, payload holds %d", b.SampleCount, n, payloadSize)
	}
	return nil
}

// timing returns the block epoch, fractional part included, and the sample
// counter offset with the fractional shim undone.
func (b *Block) timing(freq float64) (timestamp float64, offset int) {
	offset = int(b.TimestampOffset)
	timestamp = float64(b.Time.Unix())

	if b.DeviceID&0x8000 != 0 {
		fraction := int(b.DeviceID&0x7fff) * 2
		offset += (fraction * int(freq)) / 65536
		timestamp += float64(fraction) / 65536
	}
	return timestamp, offset
}

// Sample returns the raw axis values of sample i in units of 1/256 g
func (b *Block) Sample(i int) (x, y, z int16) {
	le := binary.LittleEndian
	switch b.format {
	case Raw6:
		p := b.payload[i*6:]
		return int16(le.Uint16(p)), int16(le.Uint16(p[2:])), int16(le.Uint16(p[4:]))
	default:
		return unpackPacked4(le.Uint32(b.payload[i*4:]))
	}
}

// unpackPacked4 expands a shared-exponent word into three sign-extended values.
// Each 10-bit value is moved to the top of a 16-bit word and shifted back
// down arithmetically by 6 minus the exponent.
func unpackPacked4(w uint32) (x, y, z int16) {
	shift := 6 - (w >> 30)
	x = int16(uint16(w<<6)&0xffc0) >> shift
	y = int16(uint16(w>>4)&0xffc0) >> shift
	z = int16(uint16(w>>14)&0xffc0) >> shift
	return x, y, z
}
