package cwa

import (
	"bytes"
	"encoding/binary"
	"time"
)

const (
	rateCode100Hz = 0x4a // Range bits set, rate nibble 10
	axesRaw6      = 0x32
	axesPacked4   = 0x30
)

func packTimestamp(t time.Time) uint32 {
	return uint32(t.Year()-2000)<<26 |
		uint32(t.Month())<<22 |
		uint32(t.Day())<<17 |
		uint32(t.Hour())<<12 |
		uint32(t.Minute())<<6 |
		uint32(t.Second())
}

// testBlock builds AX blocks with a correct checksum
type testBlock struct {
	packetLength uint16
	deviceID     uint16
	session      uint32
	sequence     uint32
	stamp        uint32
	light        uint16
	rateCode     uint8
	axesBPS      uint8
	offset       int16
	sampleCount  uint16 // Defaults to the number of samples or words

	samples [][3]int16
	words   []uint32
}

func newRaw6Block(seq uint32, t time.Time, samples ...[3]int16) testBlock {
	return testBlock{
		session:  42,
		sequence: seq,
		stamp:    packTimestamp(t),
		rateCode: rateCode100Hz,
		axesBPS:  axesRaw6,
		samples:  samples,
	}
}

func (tb testBlock) bytes() []byte {
	le := binary.LittleEndian
	buf := make([]byte, BlockSize)

	length := tb.packetLength
	if length == 0 {
		length = packetLength
	}
	count := tb.sampleCount
	if count == 0 {
		count = uint16(len(tb.samples) + len(tb.words))
	}

	copy(buf, tagData)
	le.PutUint16(buf[2:], length)
	le.PutUint16(buf[4:], tb.deviceID)
	le.PutUint32(buf[6:], tb.session)
	le.PutUint32(buf[10:], tb.sequence)
	le.PutUint32(buf[14:], tb.stamp)
	le.PutUint16(buf[18:], tb.light)
	buf[24] = tb.rateCode
	buf[25] = tb.axesBPS
	le.PutUint16(buf[26:], uint16(tb.offset))
	le.PutUint16(buf[28:], count)

	p := buf[payloadStart:]
	for i, s := range tb.samples {
		le.PutUint16(p[i*6:], uint16(s[0]))
		le.PutUint16(p[i*6+2:], uint16(s[1]))
		le.PutUint16(p[i*6+4:], uint16(s[2]))
	}
	for i, w := range tb.words {
		le.PutUint32(p[i*4:], w)
	}

	le.PutUint16(buf[BlockSize-2:], -checksum(buf))
	return buf
}

func metadataSection(session uint32, deviceID, deviceIDUpper uint16, firmware uint8, annotations string) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 2+metadataSize)
	copy(buf, tagMetadata)

	p := buf[2:]
	le.PutUint16(p[0:], 0xffff)
	le.PutUint16(p[3:], deviceID)
	le.PutUint32(p[5:], session)
	le.PutUint16(p[9:], deviceIDUpper)
	le.PutUint32(p[11:], packTimestamp(time.Date(2019, 11, 20, 9, 0, 0, 0, time.UTC)))
	le.PutUint32(p[15:], packTimestamp(time.Date(2019, 11, 27, 9, 0, 0, 0, time.UTC)))
	le.PutUint32(p[30:], packTimestamp(time.Date(2019, 11, 19, 17, 30, 5, 0, time.UTC)))
	p[34] = rateCode100Hz
	le.PutUint32(p[35:], 0xffffffff)
	p[39] = firmware

	ann := p[annotationStart : annotationStart+annotationSize]
	for i := range ann {
		ann[i] = 0xff
	}
	copy(ann, annotations)
	return buf
}

func logOf(sections ...[]byte) *bytes.Reader {
	return bytes.NewReader(bytes.Join(sections, nil))
}

type capturedSample struct {
	epoch, x, y, z float64
}

type captureWriter struct {
	samples []capturedSample
	err     error
}

func (c *captureWriter) WriteSample(epoch, x, y, z float64) error {
	if c.err != nil {
		return c.err
	}
	c.samples = append(c.samples, capturedSample{epoch, x, y, z})
	return nil
}
