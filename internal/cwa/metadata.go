package cwa

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// metadataSize is the MD payload following the section tag
	metadataSize = 1022

	annotationStart = 62
	annotationSize  = 960

	annotationDateLayout = "02/01/2006"
)

// annotationNames maps the short keys stored on the device to readable names.
// Keys not listed here are discarded.
var annotationNames = map[string]string{
	// Set up time
	"_c":  "studyCentre",
	"_s":  "studyCode",
	"_i":  "investigator",
	"_x":  "exerciseCode",
	"_v":  "volunteerNum",
	"_p":  "bodyLocation",
	"_so": "setupOperator",
	"_n":  "notes",
	"_se": "sex",
	"_h":  "height",
	"_w":  "weight",
	"_ha": "handedness",
	"_sc": "subject code",

	// Retrieval time
	"_b":  "startTime",
	"_e":  "endTime",
	"_ro": "recoveryOperator",
	"_r":  "retrievalTime",
	"_co": "comments",
}

// dateAnnotations are re-parsed as dates
var dateAnnotations = map[string]struct{}{
	"startTime":     {},
	"endTime":       {},
	"retrievalTime": {},
}

// Annotation is one decoded key/value pair from the metadata annotation block
type Annotation struct {
	Name  string
	Value string
	Time  time.Time // Parsed value of date annotations, zero otherwise
}

// String renders the value, using the parsed date when there is one
func (a Annotation) String() string {
	if !a.Time.IsZero() {
		return a.Time.Format(time.DateTime)
	}
	return a.Value
}

// Metadata is the decoded MD section of a log
type Metadata struct {
	BlockSize       uint16
	PerformClear    uint8
	DeviceID        uint32
	SessionID       uint32
	LoggingStart    time.Time
	LoggingEnd      time.Time
	Capacity        uint32
	AllowStandby    uint8
	Debug           uint8
	BatteryMinimum  uint16
	BatteryWarning  uint16
	EnableSerial    uint8
	LastClear       time.Time
	SamplingRate    uint8
	LastChange      time.Time
	FirmwareVersion uint8

	// Annotations in the order they appear on the device
	Annotations []Annotation
}

// Annotation returns the value of the named annotation
func (m *Metadata) Annotation(name string) (Annotation, bool) {
	for _, a := range m.Annotations {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

func parseMetadata(buf []byte, logger *slog.Logger) *Metadata {
	le := binary.LittleEndian

	m := Metadata{
		BlockSize:       le.Uint16(buf[0:]),
		PerformClear:    buf[2],
		DeviceID:        uint32(le.Uint16(buf[3:])),
		SessionID:       le.Uint32(buf[5:]),
		LoggingStart:    timestampAt(buf, 11),
		LoggingEnd:      timestampAt(buf, 15),
		Capacity:        le.Uint32(buf[19:]),
		AllowStandby:    buf[23],
		Debug:           buf[24],
		BatteryMinimum:  le.Uint16(buf[25:]),
		BatteryWarning:  le.Uint16(buf[27:]),
		EnableSerial:    buf[29],
		LastClear:       timestampAt(buf, 30),
		SamplingRate:    buf[34],
		LastChange:      timestampAt(buf, 35),
		FirmwareVersion: buf[39],
	}
	if upper := le.Uint16(buf[9:]); upper != 0xffff {
		m.DeviceID |= uint32(upper) << 16
	}
	if m.FirmwareVersion == 0xff {
		m.FirmwareVersion = 0
	}

	m.Annotations = parseAnnotations(buf[annotationStart:annotationStart+annotationSize], logger)
	return &m
}

func timestampAt(buf []byte, offset int) time.Time {
	t, _ := unpackTimestamp(binary.LittleEndian.Uint32(buf[offset:]))
	return t
}

// parseAnnotations decodes the "&"-separated, URL encoded key=value text of the
// annotation block. Padding (0xff) and spaces are dropped and "?" separates
// pairs like "&" does.
func parseAnnotations(block []byte, logger *slog.Logger) []Annotation {
	text := make([]byte, 0, len(block))
	for _, c := range block {
		switch c {
		case 0xff, ' ':
			continue
		case '?':
			c = '&'
		}
		text = append(text, c)
	}

	var annotations []Annotation
	seen := make(map[string]int)
	for _, element := range strings.Split(strings.TrimSpace(string(text)), "&") {
		key, value, ok := strings.Cut(element, "=")
		if !ok {
			continue
		}
		name, known := annotationNames[key]
		if !known {
			continue
		}

		a := Annotation{Name: name, Value: urlDecode(value)}
		if _, isDate := dateAnnotations[name]; isDate {
			layout := time.DateTime
			if strings.Contains(a.Value, "/") {
				layout = annotationDateLayout
			}
			t, err := time.ParseInLocation(layout, a.Value, time.UTC)
			if err != nil {
				logger.Warn("unparsable date annotation",
					slog.String("name", name),
					slog.String("value", a.Value),
					slog.String("error", err.Error()))
			} else {
				a.Time = t
			}
		}

		// A repeated key keeps its first position and its last value
		if i, ok := seen[name]; ok {
			annotations[i] = a
			continue
		}
		seen[name] = len(annotations)
		annotations = append(annotations, a)
	}
	return annotations
}

// urlDecode resolves %XX escapes and "+" for space, then interprets the bytes
// as UTF-8. Malformed escapes are decoded leniently, invalid hex digits count
// as zero and a trailing incomplete escape is dropped.
func urlDecode(s string) string {
	var out bytes.Buffer
	nibbles, value := 0, byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%':
			nibbles, value = 2, 0
		case nibbles > 0:
			value <<= 4
			switch {
			case c >= '0' && c <= '9':
				value += c - '0'
			case c >= 'a' && c <= 'f':
				value += c - 'a' + 10
			case c >= 'A' && c <= 'F':
				value += c - 'A' + 10
			}
			if nibbles--; nibbles == 0 {
				out.WriteByte(value)
			}
		case c == '+':
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}

	if utf8.Valid(out.Bytes()) {
		return out.String()
	}
	return strings.ToValidUTF8(out.String(), string(utf8.RuneError))
}

// WriteMetadata writes the plain text side-file describing m
func WriteMetadata(w io.Writer, m *Metadata) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Device ID: %d\n", m.DeviceID)
	fmt.Fprintf(&b, "Session ID: %d\n", m.SessionID)
	fmt.Fprintf(&b, "Last clear time: %s\n", formatTime(m.LastClear))
	fmt.Fprintf(&b, "Last change time: %s\n", formatTime(m.LastChange))
	fmt.Fprintf(&b, "Logging start time: %s\n", formatTime(m.LoggingStart))
	fmt.Fprintf(&b, "Logging end time: %s\n", formatTime(m.LoggingEnd))
	fmt.Fprintf(&b, "Firmware version: %d\n", m.FirmwareVersion)
	b.WriteString("Annotations\n")
	for _, a := range m.Annotations {
		fmt.Fprintf(&b, "%s: %s\n", a.Name, a)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "undefined"
	}
	return t.Format(time.DateTime)
}
