package sample

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// Header is the optional first line of a sample CSV file
	Header = "datetime, x, y, z"

	headerField = "datetime"
	numFields   = 4

	dateTimeLayout = time.DateTime
)

var (
	// ErrRowInvalid is returned for lines that cannot be parsed as a sample
	ErrRowInvalid = errors.New("invalid row")

	// ErrHeader marks the header line, which is skipped like any invalid row
	ErrHeader = fmt.Errorf("%w: header line", ErrRowInvalid)
)

// Row is a single decoded accelerometer sample. Rows are built by Parse and
// are either fully valid, with all numeric fields populated, or invalid with
// Err describing why.
type Row struct {
	Timestamp string  // Date-time string with optional millisecond fraction
	X, Y, Z   float64 // Axis accelerations in g (or m/s² when scaled)
	Err       error   // Parse diagnostic, nil for valid rows

	epoch    float64
	total    float64
	totalSet bool
}

// Valid reports whether the row parsed successfully.
func (r *Row) Valid() bool {
	return r.Err == nil
}

// Date returns the date part of the timestamp.
func (r *Row) Date() string {
	date, _, _ := strings.Cut(r.Timestamp, " ")
	return date
}

// Epoch returns the timestamp as POSIX seconds, NaN for invalid rows.
func (r *Row) Epoch() float64 {
	if !r.Valid() {
		return math.NaN()
	}
	return r.epoch
}

// Total returns the magnitude of the acceleration vector, cached after first use.
func (r *Row) Total() float64 {
	if !r.Valid() {
		return math.NaN()
	}
	if !r.totalSet {
		r.total = math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z)
		r.totalSet = true
	}
	return r.total
}

// String renders the row with its derived epoch and total acceleration.
func (r *Row) String() string {
	if !r.Valid() {
		return fmt.Sprintf("invalid row: %s", r.Err)
	}
	return fmt.Sprintf("%s,%.3f,%.6f,%.6f,%.6f,%.6f", r.Timestamp, r.Epoch(), r.X, r.Y, r.Z, r.Total())
}

// Parser parses sample CSV lines in a fixed time zone.
type Parser struct {
	loc *time.Location
}

// WithLocation sets the time zone the date-time field is interpreted in.
func WithLocation(loc *time.Location) func(*Parser) {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// NewParser creates a Parser, interpreting timestamps as UTC unless configured otherwise.
func NewParser(options ...func(*Parser)) *Parser {
	p := Parser{loc: time.UTC}
	for _, option := range options {
		option(&p)
	}
	return &p
}

// Parse parses a single line using a UTC parser.
func Parse(line string) *Row {
	return NewParser().Parse(line)
}

// Parse parses one line of sample CSV. It never fails: malformed and header
// lines come back with Err set so callers can skip them and carry on.
func (p *Parser) Parse(line string) *Row {
	row := &Row{}

	fields := strings.Split(strings.TrimSpace(line), ",")
	if strings.TrimSpace(fields[0]) == headerField {
		row.Err = ErrHeader
		return row
	}
	if len(fields) != numFields {
		row.Err = fmt.Errorf("%w: %d fields, expected %d", ErrRowInvalid, len(fields), numFields)
		return row
	}

	row.Timestamp = strings.TrimSpace(fields[0])
	if _, _, ok := strings.Cut(row.Timestamp, " "); !ok {
		row.Err = fmt.Errorf("%w: malformed date-time %q", ErrRowInvalid, row.Timestamp)
		return row
	}

	vals := [3]*float64{&row.X, &row.Y, &row.Z}
	for i, field := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			row.Err = fmt.Errorf("%w: axis %d: %w", ErrRowInvalid, i, err)
			return row
		}
		*vals[i] = v
	}

	epoch, err := parseEpoch(row.Timestamp, p.loc)
	if err != nil {
		row.Err = fmt.Errorf("%w: %w", ErrRowInvalid, err)
		return row
	}
	row.epoch = epoch

	return row
}

func parseEpoch(timestamp string, loc *time.Location) (float64, error) {
	if loc == nil {
		loc = time.UTC
	}

	whole, fraction, _ := strings.Cut(timestamp, ".")
	t, err := time.ParseInLocation(dateTimeLayout, whole, loc)
	if err != nil {
		return 0, fmt.Errorf("parsing date-time: %w", err)
	}

	epoch := float64(t.Unix())
	if fraction != "" {
		if strings.TrimLeft(fraction, "0123456789") != "" {
			return 0, fmt.Errorf("parsing fraction %q: not a decimal", fraction)
		}
		f, err := strconv.ParseFloat("0."+fraction, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing fraction %q: %w", fraction, err)
		}
		epoch += f
	}
	return epoch, nil
}
